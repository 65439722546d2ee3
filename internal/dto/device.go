package dto

import (
	"fmt"
	"time"
)

const maxKeyLength = 4096

type AddDeviceRequest struct {
	Name                string `json:"name"`
	Type                *int   `json:"type,omitempty"`
	SignaturePublicKey  string `json:"signaturePublicKey"`
	SignatureAlgorithm  string `json:"signatureAlgorithm,omitempty"`
	EncryptionPublicKey string `json:"encryptionPublicKey"`
}

func (r AddDeviceRequest) Validate() error {
	if err := lengthBetween("name", r.Name, 3, 30); err != nil {
		return err
	}
	if r.Type != nil && (*r.Type < 0 || *r.Type > 2) {
		return fmt.Errorf(`"type" must be one of 0, 1, 2`)
	}
	if err := lengthBetween("signaturePublicKey", r.SignaturePublicKey, 1, maxKeyLength); err != nil {
		return err
	}
	return lengthBetween("encryptionPublicKey", r.EncryptionPublicKey, 1, maxKeyLength)
}

type RemoveDeviceRequest struct {
	ID string `json:"id"`
}

type DeviceResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         int        `json:"type"`
	LastActivity *time.Time `json:"lastActivity"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
