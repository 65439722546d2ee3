// Package httpsig implements the subset of HTTP Signatures used by quicksend:
// parameter parsing, signing-string construction, and public-key signing and
// verification for Ed25519, RSA and ECDSA device keys.
package httpsig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	RequestTarget = "(request-target)"
	HeaderDate    = "date"
)

// RequiredHeaders must be covered by every accepted signature.
var RequiredHeaders = []string{RequestTarget, HeaderDate}

var (
	ErrMalformed          = errors.New("httpsig: malformed signature parameters")
	ErrMissingParam       = errors.New("httpsig: missing required parameter")
	ErrUncoveredHeaders   = errors.New("httpsig: signature does not cover required headers")
	ErrMissingHeaderValue = errors.New("httpsig: missing signed header")
	ErrUnsupportedAlg     = errors.New("httpsig: unsupported algorithm")
	ErrInvalidKey         = errors.New("httpsig: invalid public key")
	ErrVerification       = errors.New("httpsig: signature verification failed")
)

// Params are the decoded parameters of a Signature authorization header.
type Params struct {
	KeyID     string
	Signature []byte
	Headers   []string
	Algorithm string
}

// ParseParams parses the parameter list that follows "Signature " in an
// Authorization header.
func ParseParams(s string) (Params, error) {
	raw, err := parsePairs(s)
	if err != nil {
		return Params{}, err
	}

	p := Params{KeyID: raw["keyId"], Algorithm: strings.ToLower(raw["algorithm"])}
	sig := raw["signature"]
	if p.KeyID == "" || sig == "" {
		return Params{}, fmt.Errorf("%w: keyId and signature are required", ErrMissingParam)
	}
	p.Signature, err = base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return Params{}, fmt.Errorf("%w: signature is not base64", ErrMalformed)
	}

	if h, ok := raw["headers"]; ok && strings.TrimSpace(h) != "" {
		p.Headers = strings.Fields(strings.ToLower(h))
	} else {
		p.Headers = []string{HeaderDate}
	}
	return p, nil
}

// Covers reports whether every name in required appears in p.Headers.
func (p Params) Covers(required []string) bool {
	have := make(map[string]struct{}, len(p.Headers))
	for _, h := range p.Headers {
		have[h] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// String renders p as an Authorization parameter list.
func (p Params) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, `keyId="%s"`, p.KeyID)
	if p.Algorithm != "" {
		fmt.Fprintf(&b, `,algorithm="%s"`, p.Algorithm)
	}
	if len(p.Headers) > 0 {
		fmt.Fprintf(&b, `,headers="%s"`, strings.Join(p.Headers, " "))
	}
	fmt.Fprintf(&b, `,signature="%s"`, base64.StdEncoding.EncodeToString(p.Signature))
	return b.String()
}

// parsePairs splits `k="v", k2='v2'` into a map. Empty segments are skipped;
// any other deviation rejects the whole list.
func parsePairs(s string) (map[string]string, error) {
	out := map[string]string{}
	i, n := 0, len(s)
	for {
		for i < n && (s[i] == ' ' || s[i] == '\t' || s[i] == ',') {
			i++
		}
		if i >= n {
			return out, nil
		}

		start := i
		for i < n && isTokenChar(s[i]) {
			i++
		}
		key := s[start:i]
		if key == "" {
			return nil, fmt.Errorf("%w: expected parameter name at offset %d", ErrMalformed, start)
		}
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= n || s[i] != '=' {
			return nil, fmt.Errorf("%w: expected '=' after %q", ErrMalformed, key)
		}
		i++
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= n || (s[i] != '"' && s[i] != '\'') {
			return nil, fmt.Errorf("%w: value of %q must be quoted", ErrMalformed, key)
		}
		quote := s[i]
		i++
		end := strings.IndexByte(s[i:], quote)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated value for %q", ErrMalformed, key)
		}
		out[key] = s[i : i+end]
		i += end + 1

		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i < n && s[i] != ',' {
			return nil, fmt.Errorf("%w: unexpected %q after %q", ErrMalformed, s[i], key)
		}
	}
}

func isTokenChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
