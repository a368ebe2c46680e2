package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"
)

var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

type RouterOptions struct {
	AllowedOrigins []string
	// RequestTimeout bounds the context of every request; zero disables it.
	RequestTimeout time.Duration
}

// NewCORS allows the listed origins with credentials, any method and any header.
func NewCORS(allowedOrigins []string) *cors.Cors {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

// NewRouter builds the full HTTP stack: CORS, request timeout, metrics and the API routes.
func NewRouter(h *HTTPHandler, metrics *Metrics, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	return NewCORS(opts.AllowedOrigins).Handler(
		withTimeout(opts.RequestTimeout, metrics.Middleware(mux)),
	)
}

func withTimeout(d time.Duration, next http.Handler) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
