package http

import (
	"net/http"

	"quicksend/internal/dto"
	"quicksend/internal/httpx"
	obsmw "quicksend/internal/observability/middleware"
)

func (h *handlers) addDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.AddDeviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeServiceError(w, r, "add device", err)
		return
	}
	res, err := h.svc.AddDevice(r.Context(), p, req)
	if err != nil {
		writeServiceError(w, r, "add device", err)
		return
	}
	obsmw.Logger(r.Context()).Info("device added", "user_id", p.UserID, "device_id", res.ID)
	httpx.WriteData(w, http.StatusCreated, res)
}

func (h *handlers) removeDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.RemoveDeviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeServiceError(w, r, "remove device", err)
		return
	}
	if err := h.svc.RemoveDevice(r.Context(), p, req); err != nil {
		writeServiceError(w, r, "remove device", err)
		return
	}
	obsmw.Logger(r.Context()).Info("device removed", "user_id", p.UserID, "device_id", req.ID)
	httpx.WriteData(w, http.StatusOK, nil)
}

func (h *handlers) listDevices(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ListDevices(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, "list devices", err)
		return
	}
	httpx.WriteData(w, http.StatusOK, res)
}
