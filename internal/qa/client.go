// Package qa は政府調達・補助金情報のQAバックエンドを呼び出すクライアントを提供する。
// バックエンドの内部ロジックには関与せず、質問を送り回答JSONをそのまま受け取る。
package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/govqa/internal/model"
)

const (
	// DefaultEndpoint はQAバックエンドの既定のベースURL。
	DefaultEndpoint = "http://localhost:5000"
	// DefaultTimeout は1回の問い合わせのタイムアウト。
	DefaultTimeout = 30 * time.Second
	// maxResponseBytes は回答として読み取るボディの上限。
	maxResponseBytes = 1 << 20
)

// ErrEmptyQuestion は質問文が空であることを表す。
var ErrEmptyQuestion = errors.New("question is empty")

// Client はQAバックエンドのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointが空の場合はDefaultEndpointを、loggerがnilの場合はslog.Default()を使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
	}
}

// Ask は質問を送信し、回答を返す。
// 回答の中身は解釈せず、JSON値として呼び出し元に返す。
func (c *Client) Ask(ctx context.Context, question string) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	reqURL, err := url.JoinPath(c.endpoint, "ask")
	if err != nil {
		return nil, fmt.Errorf("QAエンドポイントURLの構築に失敗しました: %w", err)
	}

	payload, err := json.Marshal(model.Question{Question: question})
	if err != nil {
		return nil, fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "govqa/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("QAバックエンドの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("QAバックエンドがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("QAバックエンドがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("QAバックエンドのレスポンスが上限 %d バイトを超えています", maxResponseBytes)
	}

	var answer model.Answer
	if err := json.Unmarshal(body, &answer); err != nil {
		c.logger.Error("QAバックエンドのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(answer.Answer) == 0 {
		answer.Answer = json.RawMessage("null")
	}

	return &answer, nil
}
