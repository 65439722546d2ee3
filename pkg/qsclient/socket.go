package qsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Event is a notification pushed over the socket.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Listen opens the notification socket and calls fn for every event until
// ctx is cancelled or the connection drops.
func (c *Client) Listen(ctx context.Context, fn func(Event)) error {
	token, err := c.SocketToken(ctx)
	if err != nil {
		return err
	}

	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/socket/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"token": token}); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(ev)
	}
}
