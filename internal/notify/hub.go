// Package notify fans out relay events to connected sockets.
package notify

import (
	"sync"

	"quicksend/internal/domain"
	"quicksend/internal/observability/metrics"
)

const EventNewMessage = "new_message"

type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// NewMessageData is the payload of a new_message event. It names the sender
// only; keys and ciphertext never travel over the socket.
type NewMessageData struct {
	MessageID domain.MessageID `json:"id"`
	FromUser  domain.UserID    `json:"fromUser"`
	FromDev   domain.DeviceID  `json:"fromDevice"`
}

type subscriber struct {
	ch chan Event
}

// Hub is a pub/sub registry keyed by user id. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[domain.UserID]map[*subscriber]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[domain.UserID]map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers a listener for userID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID domain.UserID) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[userID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Notify delivers ev to every current subscriber of userID.
func (h *Hub) Notify(userID domain.UserID, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			metrics.NotificationsDroppedTotal.Inc()
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID domain.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
