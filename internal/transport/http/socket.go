package http

import (
	"net/http"
	"time"

	"quicksend/internal/domain"
	"quicksend/internal/dto"
	"quicksend/internal/httpx"
	"quicksend/internal/observability/metrics"
	obsmw "quicksend/internal/observability/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	CloseAuthTimeout  = 3001
	CloseInvalidToken = 3002

	socketAuthWait   = 5 * time.Second
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sockets authenticate with a one-time token, not with cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type socketAuth struct {
	Token string `json:"token"`
}

// socketToken issues a short-lived token the caller presents as the first
// frame on /socket/ws.
func (h *handlers) socketToken(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	jti := uuid.NewString()
	token, err := h.signer.Sign(p.UserID.String(), jti, h.tokens.TTL())
	if err != nil {
		writeServiceError(w, r, "issue socket token", err)
		return
	}
	h.tokens.Grant(jti, p.UserID)
	httpx.WriteData(w, http.StatusOK, dto.SocketTokenResponse{Token: token})
}

func (h *handlers) socketStream(w http.ResponseWriter, r *http.Request) {
	log := obsmw.Logger(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("socket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	userID, code, reason := h.authenticateSocket(conn)
	if code != 0 {
		log.Info("socket rejected", "code", code, "reason", reason)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(socketWriteWait))
		return
	}

	events, cancel := h.hub.Subscribe(userID)
	defer cancel()
	metrics.SocketConnections.Inc()
	defer metrics.SocketConnections.Dec()
	log.Info("socket opened", "user_id", userID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(socketPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(socketPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Info("socket closed", "user_id", userID)
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Warn("socket write failed", "user_id", userID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				return
			}
		}
	}
}

// authenticateSocket reads the token frame. A non-zero code means the
// connection must be closed with that code.
func (h *handlers) authenticateSocket(conn *websocket.Conn) (domain.UserID, int, string) {
	_ = conn.SetReadDeadline(time.Now().Add(socketAuthWait))
	var msg socketAuth
	if err := conn.ReadJSON(&msg); err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return domain.UserID{}, CloseAuthTimeout, "authentication timeout"
		}
		return domain.UserID{}, CloseInvalidToken, "invalid token"
	}
	_ = conn.SetReadDeadline(time.Time{})

	claims, err := h.signer.Verify(msg.Token)
	if err != nil {
		return domain.UserID{}, CloseInvalidToken, "invalid token"
	}
	userID, ok := h.tokens.Redeem(claims.ID)
	if !ok || userID.String() != claims.Subject {
		return domain.UserID{}, CloseInvalidToken, "invalid token"
	}
	return userID, 0, ""
}
