package http

import (
	"net/http"

	"quicksend/internal/dto"
	"quicksend/internal/httpx"
	obsmw "quicksend/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
)

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeServiceError(w, r, "create user", err)
		return
	}
	res, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "create user", err)
		return
	}
	obsmw.Logger(r.Context()).Info("user created", "user_id", res.ID)
	httpx.WriteData(w, http.StatusCreated, res)
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeServiceError(w, r, "change password", err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), p, req); err != nil {
		writeServiceError(w, r, "change password", err)
		return
	}
	obsmw.Logger(r.Context()).Info("password changed", "user_id", p.UserID)
	httpx.WriteData(w, http.StatusOK, nil)
}

func (h *handlers) lookupUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.LookupUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, "lookup user", err)
		return
	}
	httpx.WriteData(w, http.StatusOK, res)
}
