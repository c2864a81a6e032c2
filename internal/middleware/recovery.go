package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// headerTracker はレスポンスヘッダーが送信済みかどうかを記録する。
type headerTracker struct {
	http.ResponseWriter
	wroteHeader bool
}

func (t *headerTracker) WriteHeader(code int) {
	t.wroteHeader = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *headerTracker) Write(b []byte) (int, error) {
	t.wroteHeader = true
	return t.ResponseWriter.Write(b)
}

// NewRecoveryMiddleware はハンドラーのpanicを回復し、500 INTERNAL_ERRORを返すミドルウェアを生成する。
// レスポンスの送信が始まっていた場合は本文を書き足さずにログのみ残す。
// loggerがnilの場合はslog.Default()を使用する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &headerTracker{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("response_started", tw.wroteHeader),
					slog.String("stack", string(debug.Stack())),
				)
				if !tw.wroteHeader {
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(tw, r)
		})
	}
}
