package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afr-project/afr/pkg/auth"
	"github.com/afr-project/afr/pkg/transparency"
)

// LoggingMiddleware emits one structured line per request.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", auth.GetRequestID(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Authenticator resolves an API key to a principal.
type Authenticator interface {
	Authenticate(key string) (auth.Principal, error)
}

// RequireAuth rejects requests without a valid X-API-Key and injects the
// principal into the context. Missing or unknown keys fail closed.
func RequireAuth(store Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				WriteUnauthorized(w, "Missing X-API-Key header")
				return
			}
			principal, err := store.Authenticate(key)
			if err != nil {
				WriteUnauthorized(w, "Invalid or revoked API key")
				return
			}
			ctx := auth.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole layers a role check on top of RequireAuth.
func RequireRole(store Authenticator, roles ...transparency.Role) func(http.Handler) http.Handler {
	requireAuth := RequireAuth(store)
	return func(next http.Handler) http.Handler {
		return requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := auth.GetPrincipal(r.Context())
			if !principal.HasRole(roles...) {
				WriteForbidden(w, "Endpoint requires role "+joinRoles(roles))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func joinRoles(roles []transparency.Role) string {
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, " or ")
}

// RegistrationRateLimit rejects registration bursts per client IP. The
// first X-Forwarded-For hop wins over RemoteAddr when present.
func RegistrationRateLimit(limiter *auth.RegistrationLimiter, windowSecs int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientAddr(r)) {
				WriteTooManyRequests(w, windowSecs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GlobalRateLimit rejects clients that exceed the API-wide per-IP
// budget. A nil limiter disables the check.
func GlobalRateLimit(limiter *auth.GlobalRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(clientAddr(r)) {
				WriteTooManyRequests(w, 1)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr prefers the first X-Forwarded-For hop over RemoteAddr.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

// CORSMiddleware handles Cross-Origin Resource Sharing. An empty origin
// list allows all origins (development mode).
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && isOriginAllowed(origin, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// Chain applies middlewares right-to-left, so the first listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
