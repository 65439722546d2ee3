package authz_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quicksend/internal/authz"
	"quicksend/internal/domain"
	"quicksend/internal/store"
	"quicksend/pkg/httpsig"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	st      *store.Store
	auth    *authz.Authenticator
	user    *domain.User
	device  *domain.Device
	priv    ed25519.PrivateKey
	rsaDev  *domain.Device
	rsaPriv *rsa.PrivateKey
}

func setup(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.New(db)
	ctx := context.Background()
	if err := st.AutoMigrate(ctx); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("password1234"), bcrypt.MinCost)
	user := &domain.User{Username: "test-user", PasswordHash: string(hash)}
	if err := st.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	device := &domain.Device{
		UserID:              user.ID,
		Name:                "laptop",
		SignaturePublicKey:  base64.StdEncoding.EncodeToString(pub),
		SignatureAlgorithm:  httpsig.AlgEd25519,
		EncryptionPublicKey: "enc",
	}
	if err := st.Devices().Create(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	rsaPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa: %v", err)
	}
	der, _ := x509.MarshalPKIXPublicKey(&rsaPriv.PublicKey)
	rsaDev := &domain.Device{
		UserID:              user.ID,
		Name:                "desktop",
		SignaturePublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		SignatureAlgorithm:  httpsig.AlgRSASHA256,
		EncryptionPublicKey: "enc",
	}
	if err := st.Devices().Create(ctx, rsaDev); err != nil {
		t.Fatalf("create rsa device: %v", err)
	}

	auth := authz.New(authz.StoreIdentities{Store: st},
		authz.WithMaxAge(time.Second),
		authz.WithClock(func() time.Time { return now }),
	)
	return &env{st: st, auth: auth, user: user, device: device, priv: priv, rsaDev: rsaDev, rsaPriv: rsaPriv}
}

// serve runs r through Require(scheme) and reports the response and how many
// times the protected handler ran.
func (e *env) serve(t *testing.T, scheme authz.Scheme, r *http.Request) (*httptest.ResponseRecorder, int, domain.Principal) {
	t.Helper()
	calls := 0
	var got domain.Principal
	h := e.auth.Require(scheme)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		got, _ = authz.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec, calls, got
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func basicRequest(user, pass string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/devices/add", nil)
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	return r
}

func (e *env) signed(t *testing.T, method, target string, at time.Time) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, target, nil)
	if err := httpsig.SignRequest(r, e.device.ID.String(), e.priv, nil, at); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return r
}

func TestMissingAuthorizationChallenges(t *testing.T) {
	e := setup(t)

	rec, calls, _ := e.serve(t, authz.SchemeBasic, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized || calls != 0 {
		t.Fatalf("expected 401 without calling next, got %d/%d", rec.Code, calls)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic charset="utf-8"` {
		t.Fatalf("basic challenge: %q", got)
	}

	rec, _, _ = e.serve(t, authz.SchemeSignature, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("WWW-Authenticate"); got != `Signature headers="(request-target) date",charset="utf-8"` {
		t.Fatalf("signature challenge: %q", got)
	}
}

func TestSchemeMismatch(t *testing.T) {
	e := setup(t)

	rec, calls, _ := e.serve(t, authz.SchemeSignature, basicRequest("test-user", "password1234"))
	if rec.Code != http.StatusBadRequest || calls != 0 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Authorization scheme not supported for this request" {
		t.Fatalf("unexpected message %q", msg)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "B@sic abc")
	if rec, _, _ := e.serve(t, authz.SchemeBasic, r); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed scheme, got %d", rec.Code)
	}
}

func TestBasic(t *testing.T) {
	e := setup(t)

	rec, calls, p := e.serve(t, authz.SchemeBasic, basicRequest("test-user", "password1234"))
	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected success with one call, got %d/%d", rec.Code, calls)
	}
	if p.UserID != e.user.ID || p.Username != "test-user" || p.HasDevice() {
		t.Fatalf("unexpected principal: %+v", p)
	}

	rec, calls, _ = e.serve(t, authz.SchemeBasic, basicRequest("test-user", "wrong"))
	if rec.Code != http.StatusUnauthorized || calls != 0 {
		t.Fatalf("wrong password: %d/%d", rec.Code, calls)
	}

	rec, calls, _ = e.serve(t, authz.SchemeBasic, basicRequest("nobody", "password1234"))
	if rec.Code != http.StatusBadRequest || calls != 0 {
		t.Fatalf("unknown user: %d/%d", rec.Code, calls)
	}
	if msg := errorMessage(t, rec); msg != "User doesn't exist" {
		t.Fatalf("unexpected message %q", msg)
	}

	for _, token := range []string{"***", base64.StdEncoding.EncodeToString([]byte("no-colon")), base64.StdEncoding.EncodeToString([]byte(":pw"))} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic "+token)
		if rec, calls, _ := e.serve(t, authz.SchemeBasic, r); rec.Code != http.StatusBadRequest || calls != 0 {
			t.Fatalf("malformed token %q: %d/%d", token, rec.Code, calls)
		}
	}
}

func TestSignatureAccepted(t *testing.T) {
	e := setup(t)

	rec, calls, p := e.serve(t, authz.SchemeSignature, e.signed(t, http.MethodGet, "/devices/list", now))
	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected success, got %d/%d: %s", rec.Code, calls, rec.Body.String())
	}
	if p.DeviceID != e.device.ID || p.UserID != e.user.ID {
		t.Fatalf("unexpected principal %+v", p)
	}

	d, _ := e.st.Devices().GetByID(context.Background(), e.device.ID)
	if d.LastActivityAt == nil || !d.LastActivityAt.Equal(now) {
		t.Fatalf("expected last activity to be recorded, got %v", d.LastActivityAt)
	}

	r := httptest.NewRequest(http.MethodPost, "/messages/clear", nil)
	if err := httpsig.SignRequest(r, e.rsaDev.ID.String(), e.rsaPriv, nil, now); err != nil {
		t.Fatalf("rsa sign: %v", err)
	}
	if rec, _, p := e.serve(t, authz.SchemeSignature, r); rec.Code != http.StatusOK || p.DeviceID != e.rsaDev.ID {
		t.Fatalf("rsa device rejected: %d", rec.Code)
	}
}

func TestSignatureTamperingAndFreshness(t *testing.T) {
	e := setup(t)

	tampered := e.signed(t, http.MethodGet, "/devices/list", now)
	other := httptest.NewRequest(http.MethodGet, "/messages/poll", nil)
	other.Header = tampered.Header.Clone()
	if rec, calls, _ := e.serve(t, authz.SchemeSignature, other); rec.Code != http.StatusUnauthorized || calls != 0 {
		t.Fatalf("changed path: %d/%d", rec.Code, calls)
	}

	otherMethod := httptest.NewRequest(http.MethodPost, "/devices/list", nil)
	otherMethod.Header = tampered.Header.Clone()
	if rec, _, _ := e.serve(t, authz.SchemeSignature, otherMethod); rec.Code != http.StatusUnauthorized {
		t.Fatalf("changed method: %d", rec.Code)
	}

	changedDate := e.signed(t, http.MethodGet, "/devices/list", now)
	changedDate.Header.Set("Date", now.Add(-500*time.Millisecond).Format(http.TimeFormat))
	if rec, _, _ := e.serve(t, authz.SchemeSignature, changedDate); rec.Code != http.StatusUnauthorized {
		t.Fatalf("changed date: %d", rec.Code)
	}

	tests := []struct {
		name string
		at   time.Time
	}{
		{"future", now.Add(10 * time.Second)},
		{"expired", now.Add(-2 * time.Second)},
		{"at window edge", now.Add(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, calls, _ := e.serve(t, authz.SchemeSignature, e.signed(t, http.MethodGet, "/devices/list", tt.at))
			if rec.Code != http.StatusUnauthorized || calls != 0 {
				t.Fatalf("expected 401, got %d/%d", rec.Code, calls)
			}
		})
	}
}

func TestSignatureRejectsMalformed(t *testing.T) {
	e := setup(t)

	sign := func(r *http.Request, headers []string) []byte {
		s, err := httpsig.SigningString(headers, r)
		if err != nil {
			t.Fatalf("signing string: %v", err)
		}
		sig, _ := httpsig.Sign(e.priv, s)
		return sig
	}
	newReq := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/devices/list", nil)
		r.Header.Set("Date", now.Format(http.TimeFormat))
		return r
	}

	tests := []struct {
		name   string
		header func(r *http.Request) string
		status int
	}{
		{"no headers param", func(r *http.Request) string {
			p := httpsig.Params{KeyID: e.device.ID.String(), Signature: sign(r, []string{"date"})}
			return "Signature " + p.String()
		}, http.StatusBadRequest},
		{"date only", func(r *http.Request) string {
			p := httpsig.Params{KeyID: e.device.ID.String(), Signature: sign(r, []string{"date"}), Headers: []string{"date"}}
			return "Signature " + p.String()
		}, http.StatusBadRequest},
		{"keyId not a uuid", func(r *http.Request) string {
			p := httpsig.Params{KeyID: "laptop", Signature: sign(r, httpsig.RequiredHeaders), Headers: httpsig.RequiredHeaders}
			return "Signature " + p.String()
		}, http.StatusBadRequest},
		{"unknown device", func(r *http.Request) string {
			p := httpsig.Params{KeyID: uuid.NewString(), Signature: sign(r, httpsig.RequiredHeaders), Headers: httpsig.RequiredHeaders}
			return "Signature " + p.String()
		}, http.StatusUnauthorized},
		{"missing keyId", func(r *http.Request) string {
			return `Signature signature="c2ln",headers="(request-target) date"`
		}, http.StatusBadRequest},
		{"unbalanced quotes", func(r *http.Request) string {
			return `Signature keyId="` + e.device.ID.String() + `,signature="c2ln"`
		}, http.StatusBadRequest},
		{"signed header missing", func(r *http.Request) string {
			p := httpsig.Params{KeyID: e.device.ID.String(), Signature: []byte("x"), Headers: []string{"(request-target)", "date", "digest"}}
			return "Signature " + p.String()
		}, http.StatusBadRequest},
		{"unsupported algorithm", func(r *http.Request) string {
			p := httpsig.Params{KeyID: e.device.ID.String(), Signature: sign(r, httpsig.RequiredHeaders), Headers: httpsig.RequiredHeaders, Algorithm: "hmac-sha256"}
			return "Signature " + p.String()
		}, http.StatusBadRequest},
		{"bad signature", func(r *http.Request) string {
			p := httpsig.Params{KeyID: e.device.ID.String(), Signature: []byte("forged"), Headers: httpsig.RequiredHeaders}
			return "Signature " + p.String()
		}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReq()
			r.Header.Set("Authorization", tt.header(r))
			rec, calls, _ := e.serve(t, authz.SchemeSignature, r)
			if rec.Code != tt.status || calls != 0 {
				t.Fatalf("expected %d, got %d/%d: %s", tt.status, rec.Code, calls, rec.Body.String())
			}
		})
	}
}
