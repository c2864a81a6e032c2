package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/govqa/internal/model"
)

// bearerRealm はWWW-Authenticateヘッダーで通知するrealm。
const bearerRealm = "govqa"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// チャット画面はcodeで分岐し、messageとactionをそのまま表示する。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAPIErrorを統一フォーマットで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteUnauthorized はセッション拒否の401を書き込む。
// トークンが提示されなかった場合はチャレンジのみ、
// 提示されたトークンが拒否された場合はerror="invalid_token"を付ける（RFC 6750）。
func WriteUnauthorized(w http.ResponseWriter, reason string) {
	challenge := `Bearer realm="` + bearerRealm + `"`
	if reason != "missing" {
		challenge += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(reason))
}

// WriteInternalServerError は内部エラーを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
