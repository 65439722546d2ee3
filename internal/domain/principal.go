package domain

import "github.com/google/uuid"

// Principal is the identity an authorized request acts as. DeviceID is
// uuid.Nil for password-authenticated requests.
type Principal struct {
	UserID      UserID
	Username    string
	DisplayName string
	DeviceID    DeviceID
}

func (p Principal) HasDevice() bool { return p.DeviceID != uuid.Nil }
