// Package security はアプリケーションのセキュリティ機能を提供する。
//
// AnswerSanitizer はQAバックエンドの回答に含まれる文字列からHTMLタグを取り除く。
// 回答はプレーンテキストとしてクライアントに渡し、エスケープは表示側が行う。
// そのためエンティティ化された文字列は返さない。
package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// AnswerSanitizer は回答コンテンツのサニタイズ機能のインターフェース。
type AnswerSanitizer interface {
	// SanitizeText は文字列からタグを除去したプレーンテキストを返す。
	// タグを含まない文字列はそのまま返す。
	SanitizeText(raw string) string
	// SanitizeJSON は任意のJSON値に含まれる全ての文字列にSanitizeTextを適用する。
	// オブジェクトのキー、数値、真偽値、nullはそのまま保持する。
	SanitizeJSON(raw json.RawMessage) (json.RawMessage, error)
}

// answerSanitizer はAnswerSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type answerSanitizer struct {
	policy *bluemonday.Policy
}

// NewAnswerSanitizer はAnswerSanitizerを生成する。
// StrictPolicyで全てのタグを除去する。script, styleは中身ごと除去される。
func NewAnswerSanitizer() *answerSanitizer {
	return &answerSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText は文字列からタグを除去する。
// bluemondayの出力はエスケープ済みのため、除去後にプレーンテキストへ戻す。
func (s *answerSanitizer) SanitizeText(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	return html.UnescapeString(s.policy.Sanitize(raw))
}

// SanitizeJSON はJSON値を走査して文字列をサニタイズし、再エンコードする。
// HTMLエスケープは行わずに再エンコードする。
func (s *answerSanitizer) SanitizeJSON(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode answer: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.walk(v)); err != nil {
		return nil, fmt.Errorf("failed to encode answer: %w", err)
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (s *answerSanitizer) walk(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return s.SanitizeText(val)
	case []interface{}:
		for i := range val {
			val[i] = s.walk(val[i])
		}
		return val
	case map[string]interface{}:
		for k := range val {
			val[k] = s.walk(val[k])
		}
		return val
	default:
		return val
	}
}
