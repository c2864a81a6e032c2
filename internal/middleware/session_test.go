package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/session"
)

// --- モック定義 ---

type mockAuthorizer struct {
	authorizeFn func(ctx context.Context, r *http.Request) (*model.ClientSession, error)
}

func (m *mockAuthorizer) Authorize(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, r)
	}
	return nil, &session.DenyError{Reason: session.DenyMissing}
}

type mockDecisionRecorder struct {
	decisions []string
}

func (m *mockDecisionRecorder) RecordSessionDecision(decision string) {
	m.decisions = append(m.decisions, decision)
}

// bearerAuthorizer は "Bearer valid-token" のみを許可するモック。
func bearerAuthorizer(userID string) *mockAuthorizer {
	return &mockAuthorizer{
		authorizeFn: func(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
			switch r.Header.Get("Authorization") {
			case "Bearer valid-token":
				return &model.ClientSession{
					User:    model.ClaimSet{ID: userID, Name: "A", Email: "a@x.com"},
					Expires: time.Now().Add(time.Hour),
				}, nil
			case "":
				return nil, &session.DenyError{Reason: session.DenyMissing}
			default:
				return nil, &session.DenyError{Reason: session.DenyInvalidSignature}
			}
		},
	}
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsClientSession(t *testing.T) {
	recorder := &mockDecisionRecorder{}
	mw := NewSessionMiddleware(bearerAuthorizer("user-123"), recorder)

	var captured *model.ClientSession
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs, err := ClientSessionFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		captured = cs
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.User.ID != "user-123" {
		t.Errorf("client session = %+v, want user-123", captured)
	}
	if len(recorder.decisions) != 1 || recorder.decisions[0] != "allow" {
		t.Errorf("decisions = %v, want [allow]", recorder.decisions)
	}
}

func TestSessionMiddleware_Denied_Returns401WithReason(t *testing.T) {
	tests := []struct {
		name   string
		reason session.DenyReason
	}{
		{"missing", session.DenyMissing},
		{"expired", session.DenyExpired},
		{"invalid signature", session.DenyInvalidSignature},
		{"malformed", session.DenyMalformed},
		{"revoked", session.DenyRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockDecisionRecorder{}
			authorizer := &mockAuthorizer{
				authorizeFn: func(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
					return nil, &session.DenyError{Reason: tt.reason}
				},
			}
			handler := NewSessionMiddleware(authorizer, recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/ask", nil))

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
			if body.Message != "Unauthorized: "+string(tt.reason) {
				t.Errorf("message = %q", body.Message)
			}
			if len(recorder.decisions) != 1 || recorder.decisions[0] != string(tt.reason) {
				t.Errorf("decisions = %v, want [%s]", recorder.decisions, tt.reason)
			}
		})
	}
}

// 失効ストアの障害は500として扱うこと
func TestSessionMiddleware_StoreError_Returns500(t *testing.T) {
	authorizer := &mockAuthorizer{
		authorizeFn: func(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
			return nil, errors.New("failed to check session revocation: connection refused")
		},
	}
	handler := NewSessionMiddleware(authorizer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

// 実際のセッションマネージャーとの組み合わせで、発行したトークンが通ること
func TestSessionMiddleware_WithSessionManager(t *testing.T) {
	issuer, err := session.NewIssuer("middleware-test-secret-32-bytes!!", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	manager := session.NewManager(issuer, session.BearerTransport{}, nil)
	s, err := manager.Issue(&model.Identity{ID: "user-9", Name: "A", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	var captured string
	handler := NewSessionMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured != "user-9" {
		t.Errorf("userID = %q, want %q", captured, "user-9")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+s.Token+"x")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestClientSessionFromContext_NoSession_ReturnsError(t *testing.T) {
	if _, err := ClientSessionFromContext(context.Background()); err == nil {
		t.Error("expected error for context without session")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without session")
	}
}

func TestContextWithClientSession_RoundTrip(t *testing.T) {
	cs := &model.ClientSession{User: model.ClaimSet{ID: "user-1"}}
	ctx := ContextWithClientSession(context.Background(), cs)

	got, err := ClientSessionFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cs {
		t.Error("expected the same session pointer")
	}
	userID, err := UserIDFromContext(ctx)
	if err != nil || userID != "user-1" {
		t.Errorf("UserIDFromContext = %q, %v", userID, err)
	}
}
