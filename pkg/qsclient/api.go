package qsclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"quicksend/internal/dto"
)

type (
	Device         = dto.DeviceResponse
	User           = dto.UserResponse
	DeliveryRecord = dto.DeliveryRecord
	SendRequest    = dto.SendMessageRequest
	AddDevice      = dto.AddDeviceRequest
)

func (c *Client) CreateUser(ctx context.Context, username, display, password string) (string, error) {
	req := dto.CreateUserRequest{Username: username, Password: password}
	if display != "" {
		req.Display = &display
	}
	var res dto.IDResponse
	if err := c.do(ctx, http.MethodPost, "/user/create", noAuth{}, req, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) ChangePassword(ctx context.Context, username, current, next string) error {
	return c.do(ctx, http.MethodPost, "/user/password", basicAuth{username, current}, dto.ChangePasswordRequest{Password: next}, nil)
}

func (c *Client) LookupUser(ctx context.Context, username string) (*User, error) {
	var res User
	if err := c.do(ctx, http.MethodGet, "/user/lookup/"+url.PathEscape(username), signatureAuth{}, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AddDevice registers a device using the account password.
func (c *Client) AddDevice(ctx context.Context, username, password string, req AddDevice) (string, error) {
	var res dto.IDResponse
	if err := c.do(ctx, http.MethodPost, "/devices/add", basicAuth{username, password}, req, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) RemoveDevice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/devices/remove", signatureAuth{}, dto.RemoveDeviceRequest{ID: id}, nil)
}

func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var res []Device
	if err := c.do(ctx, http.MethodGet, "/devices/list", signatureAuth{}, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Targets returns the encryption key of every device a message to userID
// must be wrapped for.
func (c *Client) Targets(ctx context.Context, userID string) (map[string]string, error) {
	res := map[string]string{}
	if err := c.do(ctx, http.MethodGet, "/messages/targets/"+url.PathEscape(userID), signatureAuth{}, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	var res dto.IDResponse
	if err := c.do(ctx, http.MethodPost, "/messages/send", signatureAuth{}, req, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// SendSealed encrypts plaintext for every target device of userID and sends it.
func (c *Client) SendSealed(ctx context.Context, userID string, plaintext []byte, headers map[string]string) (string, error) {
	targets, err := c.Targets(ctx, userID)
	if err != nil {
		return "", err
	}
	sealed, err := Seal(plaintext, targets)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, SendRequest{
		To:      userID,
		SentAt:  c.now().UTC().Format(time.RFC3339Nano),
		Headers: headers,
		Keys:    sealed.Keys,
		IV:      sealed.IV,
		Body:    sealed.Body,
	})
}

func (c *Client) Poll(ctx context.Context) ([]DeliveryRecord, error) {
	var res []DeliveryRecord
	if err := c.do(ctx, http.MethodGet, "/messages/poll", signatureAuth{}, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/messages/clear", signatureAuth{}, nil, nil)
}

func (c *Client) SocketToken(ctx context.Context) (string, error) {
	var res dto.SocketTokenResponse
	if err := c.do(ctx, http.MethodGet, "/socket", signatureAuth{}, nil, &res); err != nil {
		return "", err
	}
	return res.Token, nil
}
