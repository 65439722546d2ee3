package dto

import "time"

// SendMessageRequest carries one ciphertext and its content key wrapped once
// per target device. Binary fields are base64 encoded.
type SendMessageRequest struct {
	To      string            `json:"to"`
	SentAt  string            `json:"sentAt"`
	Headers map[string]string `json:"headers,omitempty"`
	Keys    map[string]string `json:"keys"`
	IV      string            `json:"iv"`
	Body    string            `json:"body"`
}

type DeliveryRecord struct {
	ID          string            `json:"id"`
	From        string            `json:"from"`
	FromDevice  string            `json:"fromDevice"`
	To          string            `json:"to"`
	Incoming    bool              `json:"incoming"`
	Counterpart string            `json:"counterpart"`
	SentAt      time.Time         `json:"sentAt"`
	Headers     map[string]string `json:"headers"`
	IV          string            `json:"iv"`
	Body        string            `json:"body"`
	Key         string            `json:"key"`
}

type SocketTokenResponse struct {
	Token string `json:"token"`
}
