package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/govqa/internal/middleware"
	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/password"
	"github.com/hitoshi/govqa/internal/session"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn  func(ctx context.Context, req model.SignupRequest) (*model.Identity, error)
	loginFn   func(ctx context.Context, creds model.Credentials) (*model.Session, error)
	refreshFn func(ctx context.Context, current *model.Session) (*model.Session, error)
	logoutFn  func(ctx context.Context, current *model.Session) error
}

func (m *mockAuthService) Signup(ctx context.Context, req model.SignupRequest) (*model.Identity, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, req)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, creds)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, current *model.Session) (*model.Session, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, current)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, current *model.Session) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, current)
	}
	return nil
}

type mockSessionManager struct {
	transport   session.Transport
	authorizeFn func(ctx context.Context, r *http.Request) (*model.ClientSession, error)
	verifyFn    func(ctx context.Context, r *http.Request) (*model.Session, error)
	attached    *model.Session
	cleared     bool
}

func (m *mockSessionManager) Transport() session.Transport {
	if m.transport == nil {
		return session.BearerTransport{}
	}
	return m.transport
}

func (m *mockSessionManager) Authorize(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, r)
	}
	return nil, &session.DenyError{Reason: session.DenyMissing}
}

func (m *mockSessionManager) Verify(ctx context.Context, r *http.Request) (*model.Session, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, r)
	}
	return nil, &session.DenyError{Reason: session.DenyMissing}
}

func (m *mockSessionManager) Attach(w http.ResponseWriter, s *model.Session) {
	m.attached = s
	m.Transport().Attach(w, s)
}

func (m *mockSessionManager) Clear(w http.ResponseWriter) {
	m.cleared = true
	m.Transport().Clear(w)
}

type authAttempt struct {
	operation string
	outcome   string
}

type mockMetrics struct {
	mu        sync.Mutex
	attempts  []authAttempt
	decisions []string
	statuses  []int
	latencies []time.Duration
	failures  []string
}

func (m *mockMetrics) RecordAuthAttempt(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, authAttempt{operation: operation, outcome: outcome})
}

func (m *mockMetrics) RecordSessionDecision(decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision)
}

func (m *mockMetrics) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockMetrics) RecordAskLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, d)
}

func (m *mockMetrics) RecordAskFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, reason)
}

func (m *mockMetrics) RecordRevocationsCleaned(int64) {}

// --- ヘルパー ---

func testSession() *model.Session {
	issued := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return &model.Session{
		ID:        "jti-1",
		Token:     "signed.jwt.token",
		Claims:    model.ClaimSet{ID: "user-1", Name: "Alice", Email: "alice@example.com"},
		IssuedAt:  issued,
		ExpiresAt: issued.Add(24 * time.Hour),
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- Signup ---

func TestAuthHandler_Signup_Success(t *testing.T) {
	var got model.SignupRequest
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, req model.SignupRequest) (*model.Identity, error) {
			got = req
			return &model.Identity{ID: "user-1", Name: req.Name, Email: req.Email}, nil
		},
	}
	rec := &mockMetrics{}
	h := NewAuthHandler(svc, &mockSessionManager{}, AuthHandlerConfig{}, rec)

	w := httptest.NewRecorder()
	h.Signup(w, jsonRequest(http.MethodPost, "/api/signup",
		`{"name":"Alice","email":"alice@example.com","password":"pw-secret"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Password != "pw-secret" {
		t.Errorf("password not passed to service")
	}

	var body signupResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Message != "User created successfully" {
		t.Errorf("message = %q", body.Message)
	}
	if body.User.ID != "user-1" || body.User.Email != "alice@example.com" {
		t.Errorf("user = %+v", body.User)
	}
	if strings.Contains(w.Body.String(), "pw-secret") {
		t.Error("response must not contain the password")
	}
	if len(rec.attempts) != 1 || rec.attempts[0].outcome != outcomeSuccess {
		t.Errorf("attempts = %+v", rec.attempts)
	}
}

func TestAuthHandler_Signup_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"必須項目欠落は400", model.ErrMissingField, http.StatusBadRequest, model.ErrCodeMissingField},
		{"長すぎるパスワードは400", password.ErrPasswordTooLong, http.StatusBadRequest, model.ErrCodePasswordTooLong},
		{"重複メールは409", model.ErrEmailConflict, http.StatusConflict, model.ErrCodeEmailConflict},
		{"ストア障害は500", fmt.Errorf("%w: conn refused", model.ErrStoreUnavailable), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				signupFn: func(ctx context.Context, req model.SignupRequest) (*model.Identity, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, &mockSessionManager{}, AuthHandlerConfig{}, nil)

			w := httptest.NewRecorder()
			h.Signup(w, jsonRequest(http.MethodPost, "/api/signup", `{"name":"A","email":"a@x.com","password":"p"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthHandler_Signup_MalformedBody(t *testing.T) {
	called := false
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, req model.SignupRequest) (*model.Identity, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, &mockSessionManager{}, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Signup(w, jsonRequest(http.MethodPost, "/api/signup", `{"name":`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeMalformedBody {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeMalformedBody)
	}
	if called {
		t.Error("service must not be called for a malformed body")
	}
}

// --- Login ---

func TestAuthHandler_Login_Success_ReturnsToken(t *testing.T) {
	s := testSession()
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, creds model.Credentials) (*model.Session, error) {
			if creds.Email != "alice@example.com" || creds.Password != "pw" {
				t.Errorf("creds = %+v", creds)
			}
			return s, nil
		},
	}
	sessions := &mockSessionManager{}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/login", `{"email":"alice@example.com","password":"pw"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Message != "Login successful" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Token != s.Token {
		t.Errorf("token = %q, want %q", body.Token, s.Token)
	}
	if !body.Expires.Equal(s.ExpiresAt) {
		t.Errorf("expires = %v, want %v", body.Expires, s.ExpiresAt)
	}
	if sessions.attached != s {
		t.Error("session should be attached to the transport")
	}
}

func TestAuthHandler_Login_CookieTransport_OmitsTokenFromBody(t *testing.T) {
	s := testSession()
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, creds model.Credentials) (*model.Session, error) {
			return s, nil
		},
	}
	sessions := &mockSessionManager{transport: session.NewCookieTransport(session.CookieConfig{Secure: true})}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/login", `{"email":"a@x.com","password":"pw"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), s.Token) {
		t.Error("cookie transport must not expose the token in the body")
	}

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("session cookie not set")
	}
	if found.Value != s.Token || !found.HttpOnly {
		t.Errorf("cookie = %+v", found)
	}
}

func TestAuthHandler_Login_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		collapse   bool
		err        error
		wantStatus int
		wantCode   string
	}{
		{"必須項目欠落は400", false, model.ErrMissingField, http.StatusBadRequest, model.ErrCodeMissingField},
		{"ユーザー不在は404", false, model.ErrUserNotFound, http.StatusNotFound, model.ErrCodeUserNotFound},
		{"パスワード不一致は401", false, model.ErrInvalidPassword, http.StatusUnauthorized, model.ErrCodeInvalidPassword},
		{"集約時のユーザー不在は401", true, model.ErrUserNotFound, http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"集約時のパスワード不一致は401", true, model.ErrInvalidPassword, http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"ストア障害は500", false, fmt.Errorf("%w: timeout", model.ErrStoreUnavailable), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, creds model.Credentials) (*model.Session, error) {
					return nil, tt.err
				},
			}
			sessions := &mockSessionManager{}
			h := NewAuthHandler(svc, sessions, AuthHandlerConfig{CollapseLoginFailures: tt.collapse}, nil)

			w := httptest.NewRecorder()
			h.Login(w, jsonRequest(http.MethodPost, "/api/login", `{"email":"a@x.com","password":"pw"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if sessions.attached != nil {
				t.Error("no session should be attached on failure")
			}
		})
	}
}

func TestAuthHandler_Login_CollapsedResponsesAreIdentical(t *testing.T) {
	run := func(err error) string {
		svc := &mockAuthService{
			loginFn: func(ctx context.Context, creds model.Credentials) (*model.Session, error) {
				return nil, err
			},
		}
		h := NewAuthHandler(svc, &mockSessionManager{}, AuthHandlerConfig{CollapseLoginFailures: true}, nil)
		w := httptest.NewRecorder()
		h.Login(w, jsonRequest(http.MethodPost, "/api/login", `{"email":"a@x.com","password":"pw"}`))
		return fmt.Sprintf("%d %s", w.Code, w.Body.String())
	}

	if a, b := run(model.ErrUserNotFound), run(model.ErrInvalidPassword); a != b {
		t.Errorf("collapsed responses differ:\n%s\n%s", a, b)
	}
}

func TestAuthHandler_Login_RecordsOutcome(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, creds model.Credentials) (*model.Session, error) {
			return nil, model.ErrInvalidPassword
		},
	}
	rec := &mockMetrics{}
	h := NewAuthHandler(svc, &mockSessionManager{}, AuthHandlerConfig{CollapseLoginFailures: true}, rec)

	h.Login(httptest.NewRecorder(), jsonRequest(http.MethodPost, "/api/login", `{"email":"a@x.com","password":"pw"}`))

	// レスポンスを集約しても内部的な理由は記録する
	if len(rec.attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(rec.attempts))
	}
	if rec.attempts[0].operation != "login" || rec.attempts[0].outcome != outcomeInvalidPassword {
		t.Errorf("attempt = %+v", rec.attempts[0])
	}
}

// --- Session ---

func TestAuthHandler_Session_ReturnsClientSession(t *testing.T) {
	expires := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	sessions := &mockSessionManager{
		authorizeFn: func(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
			return &model.ClientSession{
				User:    model.ClaimSet{ID: "user-1", Name: "Alice", Email: "alice@example.com"},
				Expires: expires,
			}, nil
		},
	}
	h := NewAuthHandler(&mockAuthService{}, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Session(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 2 {
		t.Errorf("keys = %d, want 2 (user, expires)", len(body))
	}
	var user map[string]string
	if err := json.Unmarshal(body["user"], &user); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if user["id"] != "user-1" || user["name"] != "Alice" || user["email"] != "alice@example.com" {
		t.Errorf("user = %v", user)
	}
}

func TestAuthHandler_Session_NoSession_ReturnsEmptyObject(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockSessionManager{}, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Session(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "{}" {
		t.Errorf("body = %q, want {}", got)
	}
}

func TestAuthHandler_Session_StoreError_Returns500(t *testing.T) {
	sessions := &mockSessionManager{
		authorizeFn: func(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
			return nil, errors.New("revocation store down")
		},
	}
	h := NewAuthHandler(&mockAuthService{}, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Session(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- Refresh ---

func TestAuthHandler_Refresh_IssuesNewSession(t *testing.T) {
	current := testSession()
	next := testSession()
	next.ID = "jti-2"
	next.Token = "new.jwt.token"

	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, s *model.Session) (*model.Session, error) {
			if s != current {
				t.Error("refresh should receive the verified session")
			}
			return next, nil
		},
	}
	sessions := &mockSessionManager{
		verifyFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return current, nil
		},
	}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Refresh(w, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Token != next.Token {
		t.Errorf("token = %q, want %q", body.Token, next.Token)
	}
	if sessions.attached != next {
		t.Error("new session should be attached")
	}
}

func TestAuthHandler_Refresh_DeniedSession_Returns401(t *testing.T) {
	called := false
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, s *model.Session) (*model.Session, error) {
			called = true
			return nil, nil
		},
	}
	sessions := &mockSessionManager{
		verifyFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return nil, &session.DenyError{Reason: session.DenyRevoked}
		},
	}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Refresh(w, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); !strings.Contains(body.Message, "revoked") {
		t.Errorf("message = %q, should contain the deny reason", body.Message)
	}
	if called {
		t.Error("refresh must not be called for a denied session")
	}
}

func TestAuthHandler_Refresh_UserGone_ClearsSession(t *testing.T) {
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, s *model.Session) (*model.Session, error) {
			return nil, model.ErrUserNotFound
		},
	}
	sessions := &mockSessionManager{
		verifyFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return testSession(), nil
		},
	}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Refresh(w, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if !sessions.cleared {
		t.Error("client session should be cleared")
	}
}

// --- Logout ---

func TestAuthHandler_Logout_RevokesAndClears(t *testing.T) {
	current := testSession()
	var revoked *model.Session
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, s *model.Session) error {
			revoked = s
			return nil
		},
	}
	sessions := &mockSessionManager{
		transport: session.NewCookieTransport(session.CookieConfig{}),
		verifyFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return current, nil
		},
	}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if revoked != current {
		t.Error("presented session should be revoked")
	}
	if !sessions.cleared {
		t.Error("client session should be cleared")
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie deletion")
	}
}

func TestAuthHandler_Logout_WithoutSession_Returns204(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, s *model.Session) error {
			called = true
			return nil
		},
	}
	sessions := &mockSessionManager{}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("logout must not revoke when no valid session is presented")
	}
	if !sessions.cleared {
		t.Error("client session should still be cleared")
	}
}

func TestAuthHandler_Logout_RevokeFailure_Returns500(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, s *model.Session) error {
			return errors.New("db down")
		},
	}
	sessions := &mockSessionManager{
		verifyFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return testSession(), nil
		},
	}
	h := NewAuthHandler(svc, sessions, AuthHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
