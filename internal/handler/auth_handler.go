// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/govqa/internal/metrics"
	"github.com/hitoshi/govqa/internal/middleware"
	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/password"
	"github.com/hitoshi/govqa/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, req model.SignupRequest) (*model.Identity, error)
	Login(ctx context.Context, creds model.Credentials) (*model.Session, error)
	Refresh(ctx context.Context, current *model.Session) (*model.Session, error)
	Logout(ctx context.Context, current *model.Session) error
}

// SessionManagerInterface は認証ハンドラーが必要とするセッション操作。
// session.Managerが実装する。
type SessionManagerInterface interface {
	Transport() session.Transport
	Authorize(ctx context.Context, r *http.Request) (*model.ClientSession, error)
	Verify(ctx context.Context, r *http.Request) (*model.Session, error)
	Attach(w http.ResponseWriter, s *model.Session)
	Clear(w http.ResponseWriter)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// CollapseLoginFailures がtrueの場合、ユーザー不在とパスワード不一致を
	// 同じ401 INVALID_CREDENTIALSで返す。
	CollapseLoginFailures bool
}

// AuthHandler はメール・パスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManagerInterface
	config   AuthHandlerConfig
	metrics  metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewAuthHandler(
	service AuthServiceInterface,
	sessions SessionManagerInterface,
	config AuthHandlerConfig,
	collector metrics.MetricsCollector,
) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
		metrics:  collector,
	}
}

// 認証操作の結果ラベル。
const (
	outcomeSuccess         = "success"
	outcomeMissingField    = "missing_field"
	outcomeMalformed       = "malformed"
	outcomeUserNotFound    = "user_not_found"
	outcomeInvalidPassword = "invalid_password"
	outcomeConflict        = "conflict"
	outcomeTooLong         = "password_too_long"
	outcomeUnauthorized    = "unauthorized"
	outcomeError           = "error"
)

// --- レスポンス型 ---

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type signupResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type sessionResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token,omitempty"`
	Expires time.Time `json:"expires"`
}

// Signup はユーザーを登録する。
// POST /api/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.RecordAuthAttempt(metrics.OperationSignup, outcomeMalformed)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMalformedBodyError())
		return
	}

	identity, err := h.service.Signup(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrMissingField):
			h.metrics.RecordAuthAttempt(metrics.OperationSignup, outcomeMissingField)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("All fields"))
		case errors.Is(err, password.ErrPasswordTooLong):
			h.metrics.RecordAuthAttempt(metrics.OperationSignup, outcomeTooLong)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewPasswordTooLongError())
		case errors.Is(err, model.ErrEmailConflict):
			h.metrics.RecordAuthAttempt(metrics.OperationSignup, outcomeConflict)
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewEmailConflictError())
		default:
			h.metrics.RecordAuthAttempt(metrics.OperationSignup, outcomeError)
			slog.Error("signup failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	h.metrics.RecordAuthAttempt(metrics.OperationSignup, outcomeSuccess)
	writeJSON(w, http.StatusOK, signupResponse{
		Message: "User created successfully",
		User: userResponse{
			ID:    identity.ID,
			Name:  identity.Name,
			Email: identity.Email,
		},
	})
}

// Login はメールアドレスとパスワードでログインし、セッションを発行する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		h.metrics.RecordAuthAttempt(metrics.OperationLogin, outcomeMalformed)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMalformedBodyError())
		return
	}

	s, err := h.service.Login(r.Context(), creds)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	h.metrics.RecordAuthAttempt(metrics.OperationLogin, outcomeSuccess)
	h.writeSession(w, "Login successful", s)
}

// writeLoginError はログイン失敗を応答する。
// 内部的な理由は常にログに残し、レスポンスで区別するかは設定に従う。
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMissingField):
		h.metrics.RecordAuthAttempt(metrics.OperationLogin, outcomeMissingField)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("Email and password"))
	case errors.Is(err, model.ErrUserNotFound):
		h.metrics.RecordAuthAttempt(metrics.OperationLogin, outcomeUserNotFound)
		slog.Info("login rejected", slog.String("reason", outcomeUserNotFound))
		if h.config.CollapseLoginFailures {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
	case errors.Is(err, model.ErrInvalidPassword):
		h.metrics.RecordAuthAttempt(metrics.OperationLogin, outcomeInvalidPassword)
		slog.Info("login rejected", slog.String("reason", outcomeInvalidPassword))
		if h.config.CollapseLoginFailures {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidPasswordError())
	default:
		h.metrics.RecordAuthAttempt(metrics.OperationLogin, outcomeError)
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// Session は現在のセッションをクライアント向けの形で返す。
// 有効なセッションが無い場合は空オブジェクトを返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	cs, err := h.sessions.Authorize(r.Context(), r)
	if err != nil {
		var denyErr *session.DenyError
		if errors.As(err, &denyErr) {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		slog.Error("failed to load session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, cs)
}

// Refresh は有効なセッションを新しいセッションに置き換え、古いものを失効させる。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	current, ok := h.verify(w, r, metrics.OperationRefresh)
	if !ok {
		return
	}

	next, err := h.service.Refresh(r.Context(), current)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			h.metrics.RecordAuthAttempt(metrics.OperationRefresh, outcomeUserNotFound)
			h.sessions.Clear(w)
			middleware.WriteUnauthorized(w, outcomeUserNotFound)
			return
		}
		h.metrics.RecordAuthAttempt(metrics.OperationRefresh, outcomeError)
		slog.Error("session refresh failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordAuthAttempt(metrics.OperationRefresh, outcomeSuccess)
	h.writeSession(w, "Session refreshed", next)
}

// Logout は提示されたセッションを失効させ、クライアント側のセッションを破棄させる。
// セッションが無効な場合も204を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	current, err := h.sessions.Verify(r.Context(), r)
	switch {
	case err == nil:
		if err := h.service.Logout(r.Context(), current); err != nil {
			h.metrics.RecordAuthAttempt(metrics.OperationLogout, outcomeError)
			slog.Error("logout failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		h.metrics.RecordAuthAttempt(metrics.OperationLogout, outcomeSuccess)
	case isDeny(err):
		h.metrics.RecordAuthAttempt(metrics.OperationLogout, outcomeUnauthorized)
	default:
		h.metrics.RecordAuthAttempt(metrics.OperationLogout, outcomeError)
		slog.Error("failed to verify session on logout", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// verify はリクエストのセッションを検証する。失敗時はレスポンスを書き込みfalseを返す。
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, operation string) (*model.Session, bool) {
	s, err := h.sessions.Verify(r.Context(), r)
	if err != nil {
		var denyErr *session.DenyError
		if errors.As(err, &denyErr) {
			h.metrics.RecordAuthAttempt(operation, outcomeUnauthorized)
			middleware.WriteUnauthorized(w, string(denyErr.Reason))
			return nil, false
		}
		h.metrics.RecordAuthAttempt(operation, outcomeError)
		slog.Error("failed to verify session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return s, true
}

// writeSession は発行したセッションをトランスポートに載せて応答する。
// Cookieトランスポートではトークンをボディに含めない。
func (h *AuthHandler) writeSession(w http.ResponseWriter, message string, s *model.Session) {
	h.sessions.Attach(w, s)

	resp := sessionResponse{
		Message: message,
		Expires: s.ExpiresAt,
	}
	if h.sessions.Transport().Name() == session.TransportBearer {
		resp.Token = s.Token
	}
	writeJSON(w, http.StatusOK, resp)
}

func isDeny(err error) bool {
	var denyErr *session.DenyError
	return errors.As(err, &denyErr)
}
