package domain

import "time"

type DeviceType int

const (
	DeviceTypeUnknown DeviceType = 0
	DeviceTypeMobile  DeviceType = 1
	DeviceTypeDesktop DeviceType = 2
)

func (t DeviceType) Valid() bool {
	return t >= DeviceTypeUnknown && t <= DeviceTypeDesktop
}

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeMobile:
		return "mobile"
	case DeviceTypeDesktop:
		return "desktop"
	default:
		return "unknown"
	}
}

type Device struct {
	ID                  DeviceID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              UserID     `gorm:"type:uuid;not null;uniqueIndex:idx_devices_user_name,priority:1" json:"userId"`
	Name                string     `gorm:"type:text;not null;uniqueIndex:idx_devices_user_name,priority:2" json:"name"`
	Type                DeviceType `gorm:"not null;default:0" json:"type"`
	SignaturePublicKey  string     `gorm:"type:text;not null" json:"-"`
	SignatureAlgorithm  string     `gorm:"type:text" json:"-"`
	EncryptionPublicKey string     `gorm:"type:text;not null" json:"-"`
	LastActivityAt      *time.Time `json:"lastActivity,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;index" json:"createdAt"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updatedAt"`
}

func (Device) TableName() string { return "devices" }
