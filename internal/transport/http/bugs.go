package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) CreateBug(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	var req createBugRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	bug, err := h.service.CreateBug(r.Context(), caller, req.toInput())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"bug": mapBug(bug),
	})
}

func (h *Handler) ListBugs(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	bugs, err := h.service.ListBugs(r.Context(), caller, r.URL.Query().Get("status"))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"bugs":  mapBugs(bugs),
		"count": len(bugs),
	})
}

func (h *Handler) GetBug(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	bug, err := h.service.GetBug(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"bug": mapBug(bug),
	})
}

func (h *Handler) UpdateBug(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	var req updateBugRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	bug, err := h.service.UpdateBug(r.Context(), caller, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"bug": mapBug(bug),
	})
}

func (h *Handler) MoveBug(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	var req moveBugRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	bug, err := h.service.MoveBug(r.Context(), caller, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"bug": mapBug(bug),
	})
}

func (h *Handler) DeleteBug(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBug(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "bug deleted",
	})
}

func (h *Handler) BugSummary(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	counts, err := h.service.BugSummary(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapCounts(counts))
}

func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	columns, err := h.service.Board(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]columnPayload, 0, len(columns))
	for _, col := range columns {
		result = append(result, mapColumn(col))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"columns": result,
	})
}

func (h *Handler) Assignees(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	users, err := h.service.Assignees(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]userPayload, 0, len(users))
	for _, u := range users {
		result = append(result, mapUser(u))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"assignees": result,
	})
}
