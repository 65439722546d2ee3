package http_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quicksend/internal/authz"
	"quicksend/internal/jwtsigner"
	"quicksend/internal/notify"
	"quicksend/internal/service"
	"quicksend/internal/store"
	transport "quicksend/internal/transport/http"
	"quicksend/pkg/qsclient"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newServer(t *testing.T) *httptest.Server {
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
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	hub := notify.NewHub(16)
	signer, err := jwtsigner.NewFromBase64("", "socket-test", "quicksend")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	h := transport.NewRouter(transport.Config{MaxBodyBytes: 1 << 20, RequestTimeout: 10 * time.Second}, transport.Deps{
		Service: service.New(st, service.Options{Notifier: hub, BcryptCost: bcrypt.MinCost}),
		Auth:    authz.New(authz.StoreIdentities{Store: st}),
		Hub:     hub,
		Tokens:  notify.NewTokenStore(5 * time.Second),
		Signer:  signer,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type account struct {
	userID string
	id     *qsclient.Identity
	client *qsclient.Client
}

func register(t *testing.T, srv *httptest.Server, username string, devices ...string) []account {
	t.Helper()
	ctx := context.Background()
	anon := qsclient.New(srv.URL)

	userID, err := anon.CreateUser(ctx, username, "", "secret-pass")
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}

	var out []account
	for _, name := range devices {
		id, err := qsclient.GenerateIdentity()
		if err != nil {
			t.Fatalf("identity: %v", err)
		}
		deviceID, err := anon.AddDevice(ctx, username, "secret-pass", qsclient.AddDevice{
			Name:                name,
			SignaturePublicKey:  id.SigningPublicKey(),
			EncryptionPublicKey: id.EncryptionPublicKey(),
		})
		if err != nil {
			t.Fatalf("add device %s: %v", name, err)
		}
		out = append(out, account{
			userID: userID,
			id:     id,
			client: qsclient.New(srv.URL, qsclient.WithDevice(deviceID, id.SigningKey)),
		})
	}
	return out
}

func TestHealthAndUnknownRoute(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var env struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode != http.StatusNotFound || env.Error == "" {
		t.Fatalf("unknown route: status=%d env=%+v", resp.StatusCode, env)
	}
}

func TestCreateUserEnvelope(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Post(srv.URL+"/user/create", "application/json",
		strings.NewReader(`{"username":"alice","password":"secret-pass"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var env struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Data.ID == "" {
		t.Fatalf("decode: %v %+v", err, env)
	}

	_, err = qsclient.New(srv.URL).CreateUser(context.Background(), "alice", "", "secret-pass")
	var apiErr *qsclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("duplicate create: %v", err)
	}
}

func TestMissingAuthorizationChallenge(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/messages/poll")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.HasPrefix(got, "Signature ") {
		t.Fatalf("challenge = %q", got)
	}
}

func TestGzipRequestBody(t *testing.T) {
	srv := newServer(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"username":"gzipped","password":"secret-pass"}`))
	_ = zw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/user/create", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/user/create", strings.NewReader("{}"))
	req.Header.Set("Content-Encoding", "br")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported encoding status = %d", resp.StatusCode)
	}
}

func TestSealedMessageRoundTrip(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	alice := register(t, srv, "alice", "laptop", "phone")
	bob := register(t, srv, "bob", "desktop")

	targets, err := alice[0].client.Targets(ctx, bob[0].userID)
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("targets = %v, want bob's device and alice's phone", targets)
	}

	msgID, err := alice[0].client.SendSealed(ctx, bob[0].userID, []byte("hello bob"), map[string]string{"kind": "text"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, acct := range []account{bob[0], alice[1]} {
		recs, err := acct.client.Poll(ctx)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if len(recs) != 1 || recs[0].ID != msgID {
			t.Fatalf("poll = %+v", recs)
		}
		plain, err := acct.id.Open(recs[0])
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if string(plain) != "hello bob" || recs[0].Headers["kind"] != "text" {
			t.Fatalf("plain=%q headers=%v", plain, recs[0].Headers)
		}
	}

	if recs, _ := alice[0].client.Poll(ctx); len(recs) != 0 {
		t.Fatalf("sending device got its own message: %+v", recs)
	}

	if err := bob[0].client.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if recs, _ := bob[0].client.Poll(ctx); len(recs) != 0 {
		t.Fatalf("poll after clear = %+v", recs)
	}
	if recs, _ := alice[1].client.Poll(ctx); len(recs) != 1 {
		t.Fatalf("clear by one device affected another: %+v", recs)
	}
}

func TestSendRejectsMissingTarget(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	alice := register(t, srv, "alice", "laptop")
	bob := register(t, srv, "bob", "desktop")

	sealed, err := qsclient.Seal([]byte("x"), map[string]string{})
	if err == nil || sealed != nil {
		t.Fatalf("seal with no recipients should fail")
	}

	_, err = alice[0].client.Send(ctx, qsclient.SendRequest{
		To:     bob[0].userID,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
		Keys:   map[string]string{alice[0].client.DeviceID(): base64.StdEncoding.EncodeToString([]byte("k"))},
		IV:     base64.StdEncoding.EncodeToString([]byte("iv")),
		Body:   base64.StdEncoding.EncodeToString([]byte("body")),
	})
	var apiErr *qsclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("send = %v", err)
	}
}

func TestDevicesListAndRemove(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	alice := register(t, srv, "alice", "laptop", "phone")

	list, err := alice[0].client.ListDevices(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if list[0].LastActivity == nil {
		t.Fatalf("signed request should record activity: %+v", list[0])
	}

	if err := alice[0].client.RemoveDevice(ctx, alice[1].client.DeviceID()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, err = alice[1].client.ListDevices(ctx)
	var apiErr *qsclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("removed device still authenticates: %v", err)
	}
}

func TestUnknownKeyIDIsUnauthorized(t *testing.T) {
	srv := newServer(t)

	_, sk, _ := ed25519.GenerateKey(rand.Reader)
	c := qsclient.New(srv.URL, qsclient.WithDevice("6d6a07a4-8f0c-4a57-9a1e-2d5b9c1e0f11", sk))
	_, err := c.Poll(context.Background())
	var apiErr *qsclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("poll = %v", err)
	}
}

func TestSocketDeliversNewMessageEvent(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := register(t, srv, "alice", "laptop")
	bob := register(t, srv, "bob", "desktop")

	token, err := bob[0].client.SocketToken(ctx)
	if err != nil {
		t.Fatalf("socket token: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/socket/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"token": token}); err != nil {
		t.Fatalf("write token: %v", err)
	}

	// Subscription happens after the token frame is read; retry the send
	// until the event arrives.
	events := make(chan qsclient.Event, 4)
	go func() {
		for {
			var ev qsclient.Event
			if err := conn.ReadJSON(&ev); err != nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	deadline := time.After(4 * time.Second)
	for {
		if _, err := alice[0].client.SendSealed(ctx, bob[0].userID, []byte("ping"), nil); err != nil {
			t.Fatalf("send: %v", err)
		}
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("socket closed before event")
			}
			if ev.Name != notify.EventNewMessage {
				t.Fatalf("event = %+v", ev)
			}
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatalf("no event received")
		}
	}
}

func TestSocketRejectsBadToken(t *testing.T) {
	srv := newServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/socket/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"token": "not-a-token"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != transport.CloseInvalidToken {
		t.Fatalf("read err = %v, want close %d", err, transport.CloseInvalidToken)
	}
}
