package service

import (
	"time"

	"quicksend/internal/domain"
	"quicksend/internal/notify"
	"quicksend/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const DefaultMessageMaxAge = 5 * time.Minute

// Notifier receives relay events after they are committed.
type Notifier interface {
	Notify(userID domain.UserID, ev notify.Event)
}

type Options struct {
	Notifier      Notifier
	Now           func() time.Time
	MessageMaxAge time.Duration
	BcryptCost    int
}

type Service struct {
	store         *store.Store
	notifier      Notifier
	now           func() time.Time
	messageMaxAge time.Duration
	bcryptCost    int
}

func New(st *store.Store, opts Options) *Service {
	s := &Service{
		store:         st,
		notifier:      opts.Notifier,
		now:           opts.Now,
		messageMaxAge: opts.MessageMaxAge,
		bcryptCost:    opts.BcryptCost,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.messageMaxAge <= 0 {
		s.messageMaxAge = DefaultMessageMaxAge
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	return s
}

func (s *Service) notify(userID domain.UserID, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(userID, ev)
}

func requireDevice(p domain.Principal) error {
	if !p.HasDevice() {
		return ErrUnauthorized
	}
	return nil
}
