package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"quicksend/pkg/qsclient"

	"github.com/BurntSushi/toml"
)

// Profile is one registered device, stored as TOML.
type Profile struct {
	Server     string `toml:"server"`
	Username   string `toml:"username"`
	UserID     string `toml:"user_id"`
	DeviceID   string `toml:"device_id"`
	DeviceName string `toml:"device_name"`

	Keys ProfileKeys `toml:"keys"`
}

type ProfileKeys struct {
	Signing    string `toml:"signing"`
	BoxPublic  string `toml:"box_public"`
	BoxPrivate string `toml:"box_private"`
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "qsctl", "profile.toml")
}

func newProfile(server, username, userID, deviceID, deviceName string, id *qsclient.Identity) *Profile {
	return &Profile{
		Server:     server,
		Username:   username,
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Keys: ProfileKeys{
			Signing:    base64.StdEncoding.EncodeToString(id.SigningKey),
			BoxPublic:  base64.StdEncoding.EncodeToString(id.BoxPublic[:]),
			BoxPrivate: base64.StdEncoding.EncodeToString(id.BoxPrivate[:]),
		},
	}
}

func readProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	if p.Server == "" || p.DeviceID == "" {
		return nil, fmt.Errorf("profile %s is incomplete; run qsctl register", path)
	}
	return &p, nil
}

func writeProfile(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return nil
}

// Identity decodes the stored key material.
func (p *Profile) Identity() (*qsclient.Identity, error) {
	sk, err := base64.StdEncoding.DecodeString(p.Keys.Signing)
	if err != nil || len(sk) != ed25519.PrivateKeySize {
		return nil, errors.New("profile: invalid signing key")
	}
	pub, err := decode32(p.Keys.BoxPublic)
	if err != nil {
		return nil, err
	}
	priv, err := decode32(p.Keys.BoxPrivate)
	if err != nil {
		return nil, err
	}
	return &qsclient.Identity{SigningKey: ed25519.PrivateKey(sk), BoxPublic: pub, BoxPrivate: priv}, nil
}

func (p *Profile) Client() (*qsclient.Client, *qsclient.Identity, error) {
	id, err := p.Identity()
	if err != nil {
		return nil, nil, err
	}
	return qsclient.New(p.Server, qsclient.WithDevice(p.DeviceID, id.SigningKey)), id, nil
}

func decode32(s string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("profile: invalid box key")
	}
	var k [32]byte
	copy(k[:], raw)
	return &k, nil
}
