package domain

import (
	"time"

	"quicksend/internal/msgjson"
)

// Message is one logical send. Its payload is readable by every device
// that still holds a MessageKey row for it.
type Message struct {
	ID           MessageID       `gorm:"type:uuid;primaryKey"`
	FromUserID   UserID          `gorm:"type:uuid;not null;index"`
	FromDeviceID DeviceID        `gorm:"type:uuid;not null"`
	ToUserID     UserID          `gorm:"type:uuid;not null;index"`
	SentAt       time.Time       `gorm:"not null"`
	Headers      msgjson.Headers `gorm:"type:text"`
	IV           []byte          `gorm:"not null"`
	Body         []byte          `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null;index"`

	Keys []MessageKey `gorm:"-"`
}

func (Message) TableName() string { return "messages" }

// MessageKey holds the content key of a message wrapped for one device.
type MessageKey struct {
	MessageID  MessageID `gorm:"type:uuid;primaryKey"`
	DeviceID   DeviceID  `gorm:"type:uuid;primaryKey;index"`
	WrappedKey []byte    `gorm:"not null"`
}

func (MessageKey) TableName() string { return "message_keys" }

// Delivery is a message joined with the key addressed to a single device.
type Delivery struct {
	Message
	WrappedKey []byte
}
