package service

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"time"

	"quicksend/internal/domain"
	"quicksend/internal/dto"
	"quicksend/internal/msgjson"
	"quicksend/internal/notify"
	"quicksend/internal/observability/metrics"
	"quicksend/internal/store"

	"github.com/google/uuid"
)

// Send validates a multi-device message against the expected target set and
// stores it. Nothing is written unless every check passes.
func (s *Service) Send(ctx context.Context, p domain.Principal, req dto.SendMessageRequest) (*dto.IDResponse, error) {
	if err := requireDevice(p); err != nil {
		return nil, err
	}

	recipient, err := s.recipient(ctx, req.To)
	if err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("recipient").Inc()
		return nil, err
	}

	sentAt, err := s.checkSentAt(req.SentAt)
	if err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("sent_at").Inc()
		return nil, err
	}

	keys, err := decodeKeys(req.Keys, p.DeviceID)
	if err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("keys").Inc()
		return nil, err
	}
	iv, err := decodeField("iv", req.IV)
	if err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("payload").Inc()
		return nil, err
	}
	body, err := decodeField("body", req.Body)
	if err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("payload").Inc()
		return nil, err
	}

	targets, err := s.ResolveTargets(ctx, recipient.ID, p.UserID, p.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := diffTargets(targets, keys); err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("targets").Inc()
		return nil, err
	}

	msg := &domain.Message{
		FromUserID:   p.UserID,
		FromDeviceID: p.DeviceID,
		ToUserID:     recipient.ID,
		SentAt:       sentAt,
		Headers:      msgjson.Headers(req.Headers),
		IV:           iv,
		Body:         body,
		Keys:         make([]domain.MessageKey, 0, len(targets)),
	}
	for _, d := range targets {
		msg.Keys = append(msg.Keys, domain.MessageKey{DeviceID: d.ID, WrappedKey: keys[d.ID]})
	}

	if err := s.store.WithTx(ctx, func(tx *store.Store) error {
		return tx.Messages().Create(ctx, msg)
	}); err != nil {
		return nil, err
	}

	metrics.MessagesStoredTotal.Inc()
	metrics.MessageRecipientDevices.Observe(float64(len(msg.Keys)))
	metrics.MessageCiphertextBytes.Observe(float64(len(body)))

	ev := notify.Event{Name: notify.EventNewMessage, Data: notify.NewMessageData{
		MessageID: msg.ID,
		FromUser:  p.UserID,
		FromDev:   p.DeviceID,
	}}
	s.notify(recipient.ID, ev)
	if recipient.ID != p.UserID {
		s.notify(p.UserID, ev)
	}

	return &dto.IDResponse{ID: msg.ID.String()}, nil
}

// Poll returns every delivery still pending for the caller's device. It does
// not consume anything; see Clear.
func (s *Service) Poll(ctx context.Context, p domain.Principal) ([]dto.DeliveryRecord, error) {
	if err := requireDevice(p); err != nil {
		return nil, err
	}
	deliveries, err := s.store.Messages().ListForDevice(ctx, p.DeviceID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.DeliveryRecord, 0, len(deliveries))
	for _, d := range deliveries {
		incoming := d.ToUserID == p.UserID
		counterpart := d.ToUserID
		if incoming {
			counterpart = d.FromUserID
		}
		headers := map[string]string(d.Headers)
		if headers == nil {
			headers = map[string]string{}
		}
		out = append(out, dto.DeliveryRecord{
			ID:          d.ID.String(),
			From:        d.FromUserID.String(),
			FromDevice:  d.FromDeviceID.String(),
			To:          d.ToUserID.String(),
			Incoming:    incoming,
			Counterpart: counterpart.String(),
			SentAt:      d.SentAt.UTC(),
			Headers:     headers,
			IV:          base64.StdEncoding.EncodeToString(d.IV),
			Body:        base64.StdEncoding.EncodeToString(d.Body),
			Key:         base64.StdEncoding.EncodeToString(d.WrappedKey),
		})
	}
	return out, nil
}

// Clear drops the caller device's copy of every pending message. Calling it
// again is a no-op.
func (s *Service) Clear(ctx context.Context, p domain.Principal) error {
	if err := requireDevice(p); err != nil {
		return err
	}
	var n int64
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		n, err = tx.Messages().ClearDevice(ctx, p.DeviceID)
		return err
	})
	if err != nil {
		return err
	}
	metrics.DeliveriesClearedTotal.Add(float64(n))
	return nil
}

// sentAtLayouts are the ISO-8601 forms accepted for sentAt. Forms without an
// offset are read as UTC.
var sentAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseSentAt(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range sentAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *Service) checkSentAt(raw string) (time.Time, error) {
	sentAt, ok := parseSentAt(raw)
	if !ok {
		return time.Time{}, invalid("sentAt must be an ISO-8601 timestamp")
	}
	now := s.now()
	if sentAt.After(now) {
		return time.Time{}, invalid("message from the future")
	}
	if now.Sub(sentAt) > s.messageMaxAge {
		return time.Time{}, invalid("message too old")
	}
	return sentAt.UTC(), nil
}

func decodeKeys(raw map[string]string, senderDevice domain.DeviceID) (map[domain.DeviceID][]byte, error) {
	if len(raw) == 0 {
		return nil, invalid("keys must name at least one device")
	}
	out := make(map[domain.DeviceID][]byte, len(raw))
	for k, v := range raw {
		id, err := uuid.Parse(k)
		if err != nil {
			return nil, invalid("invalid device id %q in keys", k)
		}
		if len(raw) == 1 && id == senderDevice {
			return nil, invalid("cannot send a message only to the sending device")
		}
		key, err := decodeField("keys."+k, v)
		if err != nil {
			return nil, err
		}
		out[id] = key
	}
	return out, nil
}

func decodeField(name, v string) ([]byte, error) {
	if v == "" {
		return nil, invalid("%s is required", name)
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, invalid("%s must be base64", name)
	}
	return b, nil
}

// diffTargets compares the supplied key set with the expected targets in both
// directions and reports every difference at once.
func diffTargets(expected []domain.Device, keys map[domain.DeviceID][]byte) error {
	want := make(map[domain.DeviceID]struct{}, len(expected))
	var mismatch TargetMismatchError
	for _, d := range expected {
		want[d.ID] = struct{}{}
		if _, ok := keys[d.ID]; !ok {
			mismatch.Missing = append(mismatch.Missing, d.ID)
		}
	}
	for id := range keys {
		if _, ok := want[id]; !ok {
			mismatch.Extraneous = append(mismatch.Extraneous, id)
		}
	}
	if len(mismatch.Missing) == 0 && len(mismatch.Extraneous) == 0 {
		return nil
	}
	sort.Slice(mismatch.Extraneous, func(i, j int) bool {
		return mismatch.Extraneous[i].String() < mismatch.Extraneous[j].String()
	})
	return &mismatch
}
