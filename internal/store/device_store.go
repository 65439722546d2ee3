package store

import (
	"context"
	"time"

	"quicksend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeviceStore struct{ db *gorm.DB }

func (s *Store) Devices() *DeviceStore { return &DeviceStore{db: s.DB} }

func (d *DeviceStore) Create(ctx context.Context, device *domain.Device) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	return translate(d.db.WithContext(ctx).Create(device).Error)
}

func (d *DeviceStore) GetByID(ctx context.Context, id domain.DeviceID) (*domain.Device, error) {
	var device domain.Device
	if err := d.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

// ListByUser returns the user's devices oldest first.
func (d *DeviceStore) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Device, error) {
	var devices []domain.Device
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (d *DeviceStore) ExistsByName(ctx context.Context, userID domain.UserID, name string) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&domain.Device{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&n).Error
	return n > 0, err
}

// Delete removes a device owned by userID. It reports ErrRecordNotFound when
// no such device belongs to the user.
func (d *DeviceStore) Delete(ctx context.Context, userID domain.UserID, id domain.DeviceID) error {
	tx := d.db.WithContext(ctx).Delete(&domain.Device{}, "id = ? AND user_id = ?", id, userID)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (d *DeviceStore) TouchActivity(ctx context.Context, id domain.DeviceID, at time.Time) error {
	return d.db.WithContext(ctx).Model(&domain.Device{}).
		Where("id = ?", id).
		UpdateColumn("last_activity_at", at).Error
}
