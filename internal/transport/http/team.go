package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]teamPayload, 0, len(teams))
	for _, team := range teams {
		result = append(result, mapTeam(team))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"teams": result,
	})
}

func (h *Handler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	var req joinTeamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	sess, err := h.service.JoinTeam(r.Context(), caller, req.TeamID)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "joined team " + sess.User.TeamName,
		"token":   sess.Token,
		"user":    mapUser(sess.User),
	})
}

func (h *Handler) TeamMembers(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	team, members, err := h.service.TeamMembers(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]memberPayload, 0, len(members))
	for _, m := range members {
		result = append(result, memberPayload{
			userPayload: mapUser(m.User),
			Bugs:        mapCounts(m.Bugs),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"team":    mapTeam(team),
		"members": result,
		"count":   len(result),
	})
}

func (h *Handler) TeamMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	detail, err := h.service.TeamMember(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"member": memberDetailPayload{
			userPayload: mapUser(detail.User),
			Bugs:        mapBugs(detail.Bugs),
		},
	})
}

func (h *Handler) TeamStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	team, stats, err := h.service.TeamStats(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"team":  mapTeam(team),
		"stats": mapTeamStats(stats),
	})
}
