// Package qsclient is a Go client for the quicksend relay. It signs requests
// with a device key and seals message payloads before they leave the process.
package qsclient

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quicksend/pkg/httpsig"
)

// APIError is a non-2xx response from the relay.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quicksend: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL  string
	http     *http.Client
	deviceID string
	key      crypto.Signer
	now      func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithDevice makes the client sign requests as deviceID.
func WithDevice(deviceID string, key crypto.Signer) Option {
	return func(c *Client) {
		c.deviceID = deviceID
		c.key = key
	}
}

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string  { return c.baseURL }
func (c *Client) DeviceID() string { return c.deviceID }

type auth interface {
	apply(c *Client, r *http.Request) error
}

type noAuth struct{}

func (noAuth) apply(*Client, *http.Request) error { return nil }

type basicAuth struct{ user, pass string }

func (b basicAuth) apply(_ *Client, r *http.Request) error {
	token := base64.StdEncoding.EncodeToString([]byte(b.user + ":" + b.pass))
	r.Header.Set("Authorization", "Basic "+token)
	return nil
}

type signatureAuth struct{}

func (signatureAuth) apply(c *Client, r *http.Request) error {
	if c.key == nil || c.deviceID == "" {
		return fmt.Errorf("quicksend: client has no device key")
	}
	return httpsig.SignRequest(r, c.deviceID, c.key, nil, c.now())
}

// newRequest builds a request for path with an optional JSON body and applies
// the given authorization.
func (c *Client) newRequest(ctx context.Context, method, path string, a auth, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if err := a.apply(c, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, a auth, body, out any) error {
	req, err := c.newRequest(ctx, method, path, a, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
