package http

import (
	"net/http"

	"quicksend/internal/dto"
	"quicksend/internal/httpx"
	obsmw "quicksend/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
)

func (h *handlers) targets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.TargetKeys(r.Context(), p, chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, "resolve targets", err)
		return
	}
	httpx.WriteData(w, http.StatusOK, res)
}

func (h *handlers) send(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeServiceError(w, r, "send message", err)
		return
	}
	res, err := h.svc.Send(r.Context(), p, req)
	if err != nil {
		writeServiceError(w, r, "send message", err)
		return
	}
	obsmw.Logger(r.Context()).Info("message stored",
		"message_id", res.ID,
		"from_device", p.DeviceID,
		"to_user", req.To,
		"devices", len(req.Keys),
	)
	httpx.WriteData(w, http.StatusCreated, res)
}

func (h *handlers) poll(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Poll(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, "poll messages", err)
		return
	}
	obsmw.Logger(r.Context()).Debug("messages polled", "device_id", p.DeviceID, "count", len(res))
	httpx.WriteData(w, http.StatusOK, res)
}

func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.svc.Clear(r.Context(), p); err != nil {
		writeServiceError(w, r, "clear messages", err)
		return
	}
	obsmw.Logger(r.Context()).Info("messages cleared", "device_id", p.DeviceID)
	httpx.WriteData(w, http.StatusOK, nil)
}
