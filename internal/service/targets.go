package service

import (
	"context"
	"errors"
	"strings"

	"quicksend/internal/domain"
	"quicksend/internal/store"

	"github.com/google/uuid"
)

// ResolveTargets returns the devices that must receive a message from
// senderDevice to recipient: every recipient device, then the sender's other
// devices. The sending device is never included and no device appears twice.
func (s *Service) ResolveTargets(ctx context.Context, recipient, sender domain.UserID, senderDevice domain.DeviceID) ([]domain.Device, error) {
	recipientDevices, err := s.store.Devices().ListByUser(ctx, recipient)
	if err != nil {
		return nil, err
	}
	var senderDevices []domain.Device
	if sender != recipient {
		if senderDevices, err = s.store.Devices().ListByUser(ctx, sender); err != nil {
			return nil, err
		}
	}

	seen := make(map[domain.DeviceID]struct{}, len(recipientDevices)+len(senderDevices))
	out := make([]domain.Device, 0, len(recipientDevices)+len(senderDevices))
	for _, list := range [][]domain.Device{recipientDevices, senderDevices} {
		for _, d := range list {
			if d.ID == senderDevice {
				continue
			}
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			out = append(out, d)
		}
	}
	return out, nil
}

// TargetKeys maps each target device of a send to rawUserID onto its
// encryption public key.
func (s *Service) TargetKeys(ctx context.Context, p domain.Principal, rawUserID string) (map[string]string, error) {
	if err := requireDevice(p); err != nil {
		return nil, err
	}
	recipient, err := s.recipient(ctx, rawUserID)
	if err != nil {
		return nil, err
	}
	devices, err := s.ResolveTargets(ctx, recipient.ID, p.UserID, p.DeviceID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(devices))
	for _, d := range devices {
		out[d.ID.String()] = d.EncryptionPublicKey
	}
	return out, nil
}

func (s *Service) recipient(ctx context.Context, raw string) (*domain.User, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, invalid("invalid user id")
	}
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, invalid("user %s does not exist", id)
		}
		return nil, err
	}
	return user, nil
}
