package model

import (
	"errors"
	"fmt"
)

// 認証・登録処理の失敗を表すセンチネルエラー。
// 呼び出し側はerrors.Isで判定する。
var (
	ErrMissingField     = errors.New("required field is missing")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrEmailConflict    = errors.New("email already registered")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, qa, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeMalformedBody      = "MALFORMED_BODY"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidPassword    = "INVALID_PASSWORD"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailConflict      = "EMAIL_CONFLICT"
	ErrCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeQuestionRequired   = "QUESTION_REQUIRED"
	ErrCodeQAUnavailable      = "QA_UNAVAILABLE"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewMissingFieldError は必須項目欠落エラーを生成する。
func NewMissingFieldError(fields string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("%s are required", fields),
		Category: "validation",
		Action:   "Fill in every field and submit again.",
	}
}

// NewMalformedBodyError はリクエストボディが解釈できない場合のエラーを生成する。
func NewMalformedBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedBody,
		Message:  "Request body must be a JSON object.",
		Category: "validation",
		Action:   "Send the request with Content-Type application/json.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Check the email address or sign up first.",
	}
}

// NewInvalidPasswordError はパスワード不一致エラーを生成する。
func NewInvalidPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPassword,
		Message:  "Invalid password",
		Category: "auth",
		Action:   "Check your password and try again.",
	}
}

// NewInvalidCredentialsError はユーザー不在とパスワード不一致を区別しない汎用エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewEmailConflictError は登録済みメールアドレスでの再登録エラーを生成する。
func NewEmailConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailConflict,
		Message:  "An account with this email already exists",
		Category: "auth",
		Action:   "Log in instead, or use another email address.",
	}
}

// NewPasswordTooLongError はハッシュ可能な長さを超えるパスワードのエラーを生成する。
func NewPasswordTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  "Password must be at most 72 bytes",
		Category: "validation",
		Action:   "Choose a shorter password.",
	}
}

// NewUnauthorizedError はセッション検証に失敗した場合のエラーを生成する。
// reasonには拒否理由（missing, expired 等）を渡す。
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  fmt.Sprintf("Unauthorized: %s", reason),
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewQuestionRequiredError は質問文が空の場合のエラーを生成する。
func NewQuestionRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeQuestionRequired,
		Message:  "Question is required",
		Category: "validation",
		Action:   "Type a question and send it again.",
	}
}

// NewQAUnavailableError はQAバックエンドの呼び出しに失敗した場合のエラーを生成する。
func NewQAUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeQAUnavailable,
		Message:  "Sorry, something went wrong. Please try again.",
		Category: "qa",
		Action:   "Wait a moment and ask again.",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Wait and retry after the time given in Retry-After.",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
