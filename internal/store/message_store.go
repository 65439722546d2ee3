package store

import (
	"context"

	"quicksend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

// Create inserts the message and all of its device keys. Callers wanting
// atomicity should run it inside WithTx.
func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	db := m.db.WithContext(ctx)
	if err := db.Create(msg).Error; err != nil {
		return translate(err)
	}
	if len(msg.Keys) == 0 {
		return nil
	}
	for i := range msg.Keys {
		msg.Keys[i].MessageID = msg.ID
	}
	return translate(db.Create(&msg.Keys).Error)
}

// clearBatchSize bounds the number of ids bound into a single statement.
const clearBatchSize = 500

// ListForDevice returns every message still holding a key for deviceID,
// in insertion order, each paired with that device's wrapped key.
func (m *MessageStore) ListForDevice(ctx context.Context, deviceID domain.DeviceID) ([]domain.Delivery, error) {
	out := []domain.Delivery{}
	err := m.db.WithContext(ctx).
		Table("messages").
		Select("messages.*, message_keys.wrapped_key").
		Joins("JOIN message_keys ON message_keys.message_id = messages.id").
		Where("message_keys.device_id = ?", deviceID).
		Order("messages.created_at ASC").
		Order("messages.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearDevice drops deviceID's keys and deletes the messages that were left
// without any key. It returns the number of keys removed. Only keys present
// when the call starts are touched.
func (m *MessageStore) ClearDevice(ctx context.Context, deviceID domain.DeviceID) (int64, error) {
	var ids []domain.MessageID
	err := m.db.WithContext(ctx).
		Model(&domain.MessageKey{}).
		Where("device_id = ?", deviceID).
		Pluck("message_id", &ids).Error
	if err != nil {
		return 0, err
	}

	var removed int64
	for start := 0; start < len(ids); start += clearBatchSize {
		end := min(start+clearBatchSize, len(ids))
		n, err := m.clearKeys(ctx, deviceID, ids[start:end])
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// clearKeys removes deviceID's keys for ids, then deletes those messages
// that no longer hold any key.
func (m *MessageStore) clearKeys(ctx context.Context, deviceID domain.DeviceID, ids []domain.MessageID) (int64, error) {
	db := m.db.WithContext(ctx)

	res := db.Where("device_id = ? AND message_id IN ?", deviceID, ids).Delete(&domain.MessageKey{})
	if res.Error != nil {
		return 0, res.Error
	}

	orphaned := db.Model(&domain.MessageKey{}).Select("1").Where("message_keys.message_id = messages.id")
	err := db.Where("id IN ?", ids).
		Where("NOT EXISTS (?)", orphaned).
		Delete(&domain.Message{}).Error
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func (m *MessageStore) CountKeys(ctx context.Context, messageID domain.MessageID) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&domain.MessageKey{}).Where("message_id = ?", messageID).Count(&n).Error
	return n, err
}
