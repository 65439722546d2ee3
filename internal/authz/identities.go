package authz

import (
	"context"
	"time"

	"quicksend/internal/domain"
	"quicksend/internal/store"
)

// StoreIdentities adapts *store.Store to Identities.
type StoreIdentities struct{ Store *store.Store }

func (s StoreIdentities) UserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.Store.Users().GetByID(ctx, id)
}

func (s StoreIdentities) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.Store.Users().GetByUsername(ctx, username)
}

func (s StoreIdentities) DeviceByID(ctx context.Context, id domain.DeviceID) (*domain.Device, error) {
	return s.Store.Devices().GetByID(ctx, id)
}

func (s StoreIdentities) TouchDevice(ctx context.Context, id domain.DeviceID, at time.Time) error {
	return s.Store.Devices().TouchActivity(ctx, id, at)
}
