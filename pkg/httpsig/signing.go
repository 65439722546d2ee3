package httpsig

import (
	"fmt"
	"net/http"
	"strings"
)

// SigningString builds the canonical string for headers in the order given.
// (request-target) resolves to the lowercased method and the request URI.
func SigningString(headers []string, r *http.Request) (string, error) {
	var b strings.Builder
	for _, name := range headers {
		name = strings.ToLower(name)
		var value string
		switch name {
		case RequestTarget:
			value = strings.ToLower(r.Method) + " " + requestURI(r)
		case "host":
			value = r.Host
			if value == "" && r.URL != nil {
				value = r.URL.Host
			}
		default:
			vals := r.Header.Values(name)
			if len(vals) == 0 {
				return "", fmt.Errorf("%w: %s", ErrMissingHeaderValue, name)
			}
			value = strings.Join(vals, ", ")
		}
		if value == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingHeaderValue, name)
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	if r.URL == nil {
		return "/"
	}
	return r.URL.RequestURI()
}
