package httptransport

import (
	"net/http"
)

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	sess, err := h.service.Signup(r.Context(), req.toInput())
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionPayload{Token: sess.Token, User: mapUser(sess.User)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionPayload{Token: sess.Token, User: mapUser(sess.User)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.mustCaller(w, r)
	if !ok {
		return
	}

	user, err := h.service.Me(r.Context(), caller)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mapUser(user))
}
