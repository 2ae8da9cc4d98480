package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// CORSMiddleware lets browser storefronts call the API and open the event stream.
// Development, or an empty origin list, allows every origin.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	if isDevelopment || len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		// Last-Event-ID is sent by EventSource on reconnect
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control", "Last-Event-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	})
}

// DefaultMiddlewareStack returns the middleware every route runs through, outermost first.
// X-Forwarded-For and X-Real-IP replace the client address only when trustProxy is set.
func DefaultMiddlewareStack(logger *zap.Logger, trustProxy bool) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{middleware.RequestID}
	if trustProxy {
		stack = append(stack, middleware.RealIP)
	}

	return append(stack,
		LoggingMiddleware(logger),
		ErrorHandlingMiddleware(logger),
		// text/event-stream is not in the list, so SSE frames are never buffered
		middleware.Compress(5, "application/json"),
	)
}
