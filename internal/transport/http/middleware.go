package httptransport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"bugsage/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type callerKey struct{}

func withCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// callerFrom returns the caller stored by the authenticate middleware.
func callerFrom(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok
}

// requestLogger logs HTTP requests with method, path, status and duration.
func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Infow("http",
				"method", r.Method,
				"path", r.URL.RequestURI(),
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// authenticate rejects requests without a valid bearer token and stores
// the resolved caller in the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}

		caller, err := h.service.Authenticate(r.Context(), token)
		if err != nil {
			h.handleDomainError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
