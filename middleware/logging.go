package middleware

import (
	chimw "github.com/go-chi/chi/v5/middleware"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"net/http"
)

// RequestLogger puts a logger into each request context, tagged with the chi
// request id, so handlers and everything below them can slogctx.FromCtx it.
// Must be mounted after chi's RequestID middleware.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqLog := log.With(
				slog.String("requestId", chimw.GetReqID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			ctx = slogctx.NewCtx(ctx, reqLog)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
