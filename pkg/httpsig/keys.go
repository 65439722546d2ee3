package httpsig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

const (
	AlgEd25519     = "ed25519"
	AlgRSASHA256   = "rsa-sha256"
	AlgECDSASHA256 = "ecdsa-sha256"
	AlgHS2019      = "hs2019"
)

// ParsePublicKey accepts a PEM "PUBLIC KEY" block (PKIX) or a bare
// base64-encoded 32-byte Ed25519 key.
func ParsePublicKey(encoded string) (crypto.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)
	if block, _ := pem.Decode([]byte(encoded)); block != nil {
		var (
			pub any
			err error
		)
		switch block.Type {
		case "PUBLIC KEY":
			pub, err = x509.ParsePKIXPublicKey(block.Bytes)
		case "RSA PUBLIC KEY":
			pub, err = x509.ParsePKCS1PublicKey(block.Bytes)
		default:
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidKey, block.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		switch pub.(type) {
		case ed25519.PublicKey, *rsa.PublicKey, *ecdsa.PublicKey:
			return pub, nil
		}
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, pub)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: neither PEM nor base64", ErrInvalidKey)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: raw key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// AlgorithmFor returns the concrete algorithm to use for pub. An empty or
// hs2019 algorithm is derived from the key type; an explicit one must match it.
func AlgorithmFor(pub crypto.PublicKey, algorithm string) (string, error) {
	var native string
	switch pub.(type) {
	case ed25519.PublicKey:
		native = AlgEd25519
	case *rsa.PublicKey:
		native = AlgRSASHA256
	case *ecdsa.PublicKey:
		native = AlgECDSASHA256
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidKey, pub)
	}
	switch alg := strings.ToLower(algorithm); alg {
	case "", AlgHS2019:
		return native, nil
	case native:
		return native, nil
	case AlgEd25519, AlgRSASHA256, AlgECDSASHA256:
		return "", fmt.Errorf("%w: %s does not match key type", ErrUnsupportedAlg, alg)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlg, alg)
	}
}

// Verify checks sig over signingString with pub.
func Verify(pub crypto.PublicKey, algorithm, signingString string, sig []byte) error {
	alg, err := AlgorithmFor(pub, algorithm)
	if err != nil {
		return err
	}
	msg := []byte(signingString)
	switch alg {
	case AlgEd25519:
		if !ed25519.Verify(pub.(ed25519.PublicKey), msg, sig) {
			return ErrVerification
		}
	case AlgRSASHA256:
		sum := sha256.Sum256(msg)
		if err := rsa.VerifyPKCS1v15(pub.(*rsa.PublicKey), crypto.SHA256, sum[:], sig); err != nil {
			return ErrVerification
		}
	case AlgECDSASHA256:
		sum := sha256.Sum256(msg)
		if !ecdsa.VerifyASN1(pub.(*ecdsa.PublicKey), sum[:], sig) {
			return ErrVerification
		}
	}
	return nil
}

// Sign produces a signature over signingString that Verify accepts.
func Sign(priv crypto.Signer, signingString string) ([]byte, error) {
	msg := []byte(signingString)
	switch k := priv.(type) {
	case ed25519.PrivateKey:
		return ed25519.Sign(k, msg), nil
	case *rsa.PrivateKey:
		sum := sha256.Sum256(msg)
		return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, sum[:])
	case *ecdsa.PrivateKey:
		sum := sha256.Sum256(msg)
		return ecdsa.SignASN1(rand.Reader, k, sum[:])
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidKey, priv)
}
