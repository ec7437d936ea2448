package httptransport

import (
	"errors"
	"net/http"
	"time"

	"bugsage/internal/domain"
	"bugsage/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	service        service.Service
	log            *zap.SugaredLogger
	requestTimeout time.Duration
}

func NewHandler(svc service.Service, log *zap.SugaredLogger, requestTimeout time.Duration) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		service:        svc,
		log:            log,
		requestTimeout: requestTimeout,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	if h.requestTimeout > 0 {
		r.Use(middleware.Timeout(h.requestTimeout))
	}

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", h.Signup)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/auth/me", h.Me)

			r.Route("/bugs", func(r chi.Router) {
				r.Post("/", h.CreateBug)
				r.Get("/", h.ListBugs)
				r.Get("/stats/summary", h.BugSummary)
				r.Get("/board", h.Board)
				r.Get("/assignees", h.Assignees)
				r.Get("/{id}", h.GetBug)
				r.Put("/{id}", h.UpdateBug)
				r.Patch("/{id}/status", h.MoveBug)
				r.Delete("/{id}", h.DeleteBug)
			})

			r.Route("/team", func(r chi.Router) {
				r.Get("/all", h.ListTeams)
				r.Post("/join", h.JoinTeam)
				r.Get("/members", h.TeamMembers)
				r.Get("/members/{id}", h.TeamMember)
				r.Get("/stats", h.TeamStats)
			})
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.log.Errorw("health check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "UNHEALTHY", "store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDomainError maps an error to its HTTP status by kind. Anything
// unclassified is logged and reported as a generic 500.
func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", domain.Message(err))
	case errors.Is(err, domain.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", domain.Message(err))
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "FORBIDDEN", domain.Message(err))
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", domain.Message(err))
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "CONFLICT", domain.Message(err))
	default:
		h.log.Errorw("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

// mustCaller is only used behind the authenticate middleware.
func (h *Handler) mustCaller(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
	}
	return caller, ok
}
