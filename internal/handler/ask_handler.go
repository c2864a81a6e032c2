package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/govqa/internal/metrics"
	"github.com/hitoshi/govqa/internal/middleware"
	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/security"
)

// QAClientInterface はQAバックエンドへの問い合わせインターフェース。
// qa.Clientが実装する。
type QAClientInterface interface {
	Ask(ctx context.Context, question string) (*model.Answer, error)
}

// 質問応答失敗の理由ラベル。
const (
	askFailureTimeout       = "timeout"
	askFailureBackend       = "backend"
	askFailureInvalidAnswer = "invalid_answer"
)

// AskHandler はチャット画面からの質問をQAバックエンドへ中継するハンドラー。
type AskHandler struct {
	client    QAClientInterface
	sanitizer security.AnswerSanitizer
	metrics   metrics.MetricsCollector
}

// NewAskHandler はAskHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewAskHandler(
	client QAClientInterface,
	sanitizer security.AnswerSanitizer,
	collector metrics.MetricsCollector,
) *AskHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AskHandler{
		client:    client,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

type askResponse struct {
	Answer json.RawMessage `json:"answer"`
}

// Ask は質問をQAバックエンドへ送信し、サニタイズした回答を返す。
// POST /api/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var q model.Question
	if err := decodeJSON(w, r, &q); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMalformedBodyError())
		return
	}
	if strings.TrimSpace(q.Question) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewQuestionRequiredError())
		return
	}

	start := time.Now()
	answer, err := h.client.Ask(r.Context(), q.Question)
	h.metrics.RecordAskLatency(time.Since(start))
	if err != nil {
		reason := askFailureBackend
		if isTimeout(err) {
			reason = askFailureTimeout
		}
		h.metrics.RecordAskFailure(reason)
		slog.Warn("ask failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewQAUnavailableError())
		return
	}

	sanitized, err := h.sanitizer.SanitizeJSON(answer.Answer)
	if err != nil {
		h.metrics.RecordAskFailure(askFailureInvalidAnswer)
		slog.Warn("ask returned an unreadable answer", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewQAUnavailableError())
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: sanitized})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
