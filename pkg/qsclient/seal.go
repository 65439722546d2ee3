package qsclient

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"quicksend/internal/dto"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// Identity is the key material of one device.
type Identity struct {
	SigningKey ed25519.PrivateKey
	BoxPublic  *[32]byte
	BoxPrivate *[32]byte
}

func GenerateIdentity() (*Identity, error) {
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Identity{SigningKey: sk, BoxPublic: pub, BoxPrivate: priv}, nil
}

// SigningPublicKey is the base64 Ed25519 key registered with the relay.
func (id *Identity) SigningPublicKey() string {
	return base64.StdEncoding.EncodeToString(id.SigningKey.Public().(ed25519.PublicKey))
}

// EncryptionPublicKey is the base64 Curve25519 key other devices wrap for.
func (id *Identity) EncryptionPublicKey() string {
	return base64.StdEncoding.EncodeToString(id.BoxPublic[:])
}

// Sealed is a message body encrypted once with a fresh content key, plus that
// key wrapped for each device. All fields are base64.
type Sealed struct {
	IV   string
	Body string
	Keys map[string]string
}

// Seal encrypts plaintext with secretbox and wraps the content key for each
// device in recipients (device id to base64 box public key).
func Seal(plaintext []byte, recipients map[string]string) (*Sealed, error) {
	if len(recipients) == 0 {
		return nil, errors.New("quicksend: no recipient devices")
	}
	var key [32]byte
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	body := secretbox.Seal(nil, plaintext, &nonce, &key)

	keys := make(map[string]string, len(recipients))
	for deviceID, encoded := range recipients {
		pub, err := decodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", deviceID, err)
		}
		wrapped, err := box.SealAnonymous(nil, key[:], pub, rand.Reader)
		if err != nil {
			return nil, err
		}
		keys[deviceID] = base64.StdEncoding.EncodeToString(wrapped)
	}

	return &Sealed{
		IV:   base64.StdEncoding.EncodeToString(nonce[:]),
		Body: base64.StdEncoding.EncodeToString(body),
		Keys: keys,
	}, nil
}

// Open decrypts a polled record with the device's box keypair.
func (id *Identity) Open(rec dto.DeliveryRecord) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(rec.Key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	raw, ok := box.OpenAnonymous(nil, wrapped, id.BoxPublic, id.BoxPrivate)
	if !ok || len(raw) != 32 {
		return nil, errors.New("quicksend: cannot unwrap content key")
	}
	var key [32]byte
	copy(key[:], raw)

	iv, err := base64.StdEncoding.DecodeString(rec.IV)
	if err != nil || len(iv) != 24 {
		return nil, errors.New("quicksend: invalid iv")
	}
	var nonce [24]byte
	copy(nonce[:], iv)

	body, err := base64.StdEncoding.DecodeString(rec.Body)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	plain, ok := secretbox.Open(nil, body, &nonce, &key)
	if !ok {
		return nil, errors.New("quicksend: cannot decrypt body")
	}
	return plain, nil
}

func decodeKey(encoded string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("invalid encryption public key")
	}
	var k [32]byte
	copy(k[:], raw)
	return &k, nil
}
