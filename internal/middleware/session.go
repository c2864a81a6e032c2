// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientSessionContextKey はリクエストコンテキストに検証済みセッションを格納するためのキー。
var clientSessionContextKey = contextKey("client_session")

// Authorizer はリクエストのセッションを検証するインターフェース。
// session.Managerが実装する。
type Authorizer interface {
	Authorize(ctx context.Context, r *http.Request) (*model.ClientSession, error)
}

// DecisionRecorder はセッション検証の判定結果を記録するインターフェース。
type DecisionRecorder interface {
	RecordSessionDecision(decision string)
}

// NewSessionMiddleware はリクエストのセッショントークンを検証するミドルウェアを返す。
// 許可された場合はクライアント向けセッションをリクエストコンテキストに注入する。
// 拒否された場合は理由付きの401を、失効ストアの障害時は500を返す。
// recorderはnilでもよい。
func NewSessionMiddleware(authorizer Authorizer, recorder DecisionRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs, err := authorizer.Authorize(r.Context(), r)
			if err != nil {
				var denyErr *session.DenyError
				if errors.As(err, &denyErr) {
					record(recorder, string(denyErr.Reason))
					slog.Info("session denied",
						slog.String("reason", string(denyErr.Reason)),
						slog.String("path", r.URL.Path),
					)
					WriteUnauthorized(w, string(denyErr.Reason))
					return
				}

				slog.Error("failed to authorize session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			record(recorder, "allow")
			setLoggedUserID(r.Context(), cs.User.ID)

			ctx := ContextWithClientSession(r.Context(), cs)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func record(recorder DecisionRecorder, decision string) {
	if recorder != nil {
		recorder.RecordSessionDecision(decision)
	}
}

// ClientSessionFromContext はリクエストコンテキストから検証済みセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ClientSessionFromContext(ctx context.Context) (*model.ClientSession, error) {
	cs, ok := ctx.Value(clientSessionContextKey).(*model.ClientSession)
	if !ok || cs == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return cs, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	cs, err := ClientSessionFromContext(ctx)
	if err != nil || cs.User.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return cs.User.ID, nil
}

// ContextWithClientSession はコンテキストに検証済みセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClientSession(ctx context.Context, cs *model.ClientSession) context.Context {
	return context.WithValue(ctx, clientSessionContextKey, cs)
}
