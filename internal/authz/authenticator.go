// Package authz authenticates requests with either HTTP Basic credentials or
// an HTTP Signature made with a registered device key.
package authz

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quicksend/internal/domain"
	"quicksend/internal/observability/metrics"
	"quicksend/internal/store"
	"quicksend/pkg/httpsig"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Scheme string

const (
	SchemeBasic     Scheme = "Basic"
	SchemeSignature Scheme = "Signature"
)

const DefaultMaxAge = 5 * time.Second

// Challenge is the WWW-Authenticate value sent when credentials are missing.
func (s Scheme) Challenge() string {
	if s == SchemeSignature {
		return fmt.Sprintf(`Signature headers="%s",charset="utf-8"`, strings.Join(httpsig.RequiredHeaders, " "))
	}
	return string(s) + ` charset="utf-8"`
}

// Identities is the read side of the identity store used for authentication.
type Identities interface {
	UserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	UserByUsername(ctx context.Context, username string) (*domain.User, error)
	DeviceByID(ctx context.Context, id domain.DeviceID) (*domain.Device, error)
	TouchDevice(ctx context.Context, id domain.DeviceID, at time.Time) error
}

type Authenticator struct {
	ids    Identities
	maxAge time.Duration
	now    func() time.Time
}

type Option func(*Authenticator)

// WithMaxAge sets how old a signed request's Date header may be.
func WithMaxAge(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.maxAge = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func New(ids Identities, opts ...Option) *Authenticator {
	a := &Authenticator{ids: ids, maxAge: DefaultMaxAge, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Authenticate checks r's Authorization header against scheme. Failures are
// returned as *Error; any other error is a store failure.
func (a *Authenticator) Authenticate(r *http.Request, scheme Scheme) (p domain.Principal, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.AuthenticationAttemptsTotal.WithLabelValues(string(scheme), result).Inc()
	}()

	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return p, unauthorized(scheme, "Authorization required", nil)
	}

	name, params, _ := strings.Cut(raw, " ")
	if name == "" || strings.IndexFunc(name, func(c rune) bool { return !isSchemeChar(c) }) >= 0 {
		return p, malformed("Malformed authorization header", nil)
	}
	if !strings.EqualFold(name, string(scheme)) {
		return p, malformed("Authorization scheme not supported for this request", nil)
	}
	params = strings.TrimSpace(params)

	switch scheme {
	case SchemeBasic:
		return a.basic(r.Context(), params)
	case SchemeSignature:
		return a.signature(r, params)
	}
	return p, malformed("Authorization scheme not supported for this request", nil)
}

func (a *Authenticator) basic(ctx context.Context, token string) (domain.Principal, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return domain.Principal{}, malformed("Malformed authorization token", err)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || username == "" || password == "" {
		return domain.Principal{}, malformed("Malformed authorization token", nil)
	}

	user, err := a.ids.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return domain.Principal{}, malformed("User doesn't exist", nil)
		}
		return domain.Principal{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Principal{}, unauthorized(SchemeBasic, "Invalid credentials", nil)
	}
	return domain.Principal{UserID: user.ID, Username: user.Username, DisplayName: user.Display()}, nil
}

func (a *Authenticator) signature(r *http.Request, raw string) (domain.Principal, error) {
	ctx := r.Context()

	params, err := httpsig.ParseParams(raw)
	if err != nil {
		return domain.Principal{}, malformed("Malformed signature parameters", err)
	}
	if !params.Covers(httpsig.RequiredHeaders) {
		return domain.Principal{}, malformed(fmt.Sprintf("Signature must cover %q", strings.Join(httpsig.RequiredHeaders, " ")), nil)
	}
	deviceID, err := uuid.Parse(params.KeyID)
	if err != nil {
		return domain.Principal{}, malformed("Invalid keyId", err)
	}

	device, err := a.ids.DeviceByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return domain.Principal{}, unauthorized(SchemeSignature, "Unknown device", nil)
		}
		return domain.Principal{}, err
	}

	signing, err := httpsig.SigningString(params.Headers, r)
	if err != nil {
		return domain.Principal{}, malformed("Missing signed header", err)
	}

	pub, err := httpsig.ParsePublicKey(device.SignaturePublicKey)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("device %s has unusable key: %w", device.ID, err)
	}
	alg := params.Algorithm
	if alg == "" {
		alg = device.SignatureAlgorithm
	}
	if err := httpsig.Verify(pub, alg, signing, params.Signature); err != nil {
		if errors.Is(err, httpsig.ErrUnsupportedAlg) {
			return domain.Principal{}, malformed("Unsupported signature algorithm", err)
		}
		return domain.Principal{}, unauthorized(SchemeSignature, "Invalid signature", nil)
	}

	date, err := http.ParseTime(r.Header.Get("Date"))
	if err != nil {
		return domain.Principal{}, malformed("Invalid date header", err)
	}
	now := a.now()
	if date.After(now) {
		return domain.Principal{}, unauthorized(SchemeSignature, "Request date is in the future", nil)
	}
	if now.Sub(date) >= a.maxAge {
		return domain.Principal{}, unauthorized(SchemeSignature, "Request has expired", nil)
	}

	user, err := a.ids.UserByID(ctx, device.UserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return domain.Principal{}, unauthorized(SchemeSignature, "Unknown device", nil)
		}
		return domain.Principal{}, err
	}

	if err := a.ids.TouchDevice(ctx, device.ID, now); err != nil {
		slog.Default().Warn("device activity update failed", "device_id", device.ID, "error", err)
	}

	return domain.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.Display(),
		DeviceID:    device.ID,
	}, nil
}

func isSchemeChar(c rune) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
