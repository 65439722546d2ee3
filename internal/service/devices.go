package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quicksend/internal/domain"
	"quicksend/internal/dto"
	"quicksend/internal/observability/metrics"
	"quicksend/internal/store"
	"quicksend/pkg/httpsig"

	"github.com/google/uuid"
)

func (s *Service) AddDevice(ctx context.Context, p domain.Principal, req dto.AddDeviceRequest) (*dto.IDResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	pub, err := httpsig.ParsePublicKey(req.SignaturePublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: signaturePublicKey: %v", ErrInvalidRequest, err)
	}
	alg, err := httpsig.AlgorithmFor(pub, req.SignatureAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: signatureAlgorithm: %v", ErrInvalidRequest, err)
	}

	exists, err := s.store.Devices().ExistsByName(ctx, p.UserID, req.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalid("Device with this name already exists")
	}

	device := &domain.Device{
		UserID:              p.UserID,
		Name:                req.Name,
		SignaturePublicKey:  strings.TrimSpace(req.SignaturePublicKey),
		SignatureAlgorithm:  alg,
		EncryptionPublicKey: req.EncryptionPublicKey,
	}
	if req.Type != nil {
		device.Type = domain.DeviceType(*req.Type)
	}
	if err := s.store.Devices().Create(ctx, device); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("Device with this name already exists")
		}
		return nil, err
	}
	return &dto.IDResponse{ID: device.ID.String()}, nil
}

// RemoveDevice deletes one of the caller's devices together with every
// delivery still pending for it.
func (s *Service) RemoveDevice(ctx context.Context, p domain.Principal, req dto.RemoveDeviceRequest) error {
	id, err := uuid.Parse(strings.TrimSpace(req.ID))
	if err != nil {
		return invalid("invalid device id")
	}

	var cleared int64
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Devices().Delete(ctx, p.UserID, id); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return invalid("device %s not found", id)
			}
			return err
		}
		n, err := tx.Messages().ClearDevice(ctx, id)
		cleared = n
		return err
	})
	if err != nil {
		return err
	}
	metrics.DeliveriesClearedTotal.Add(float64(cleared))
	return nil
}

func (s *Service) ListDevices(ctx context.Context, p domain.Principal) ([]dto.DeviceResponse, error) {
	devices, err := s.store.Devices().ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, dto.DeviceResponse{
			ID:           d.ID.String(),
			Name:         d.Name,
			Type:         int(d.Type),
			LastActivity: d.LastActivityAt,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	return out, nil
}
