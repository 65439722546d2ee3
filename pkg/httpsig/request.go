package httpsig

import (
	"crypto"
	"net/http"
	"time"
)

// SignRequest sets a Date header when absent and adds a Signature
// Authorization header covering headers (RequiredHeaders when nil).
func SignRequest(r *http.Request, keyID string, priv crypto.Signer, headers []string, now time.Time) error {
	if r.Header.Get("Date") == "" {
		r.Header.Set("Date", now.UTC().Format(http.TimeFormat))
	}
	if headers == nil {
		headers = RequiredHeaders
	}
	s, err := SigningString(headers, r)
	if err != nil {
		return err
	}
	sig, err := Sign(priv, s)
	if err != nil {
		return err
	}
	alg, err := AlgorithmFor(priv.Public(), "")
	if err != nil {
		return err
	}
	p := Params{KeyID: keyID, Signature: sig, Headers: headers, Algorithm: alg}
	r.Header.Set("Authorization", "Signature "+p.String())
	return nil
}
