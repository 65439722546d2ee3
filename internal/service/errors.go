package service

import (
	"errors"
	"fmt"
	"strings"

	"quicksend/internal/domain"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
)

// TargetMismatchError reports how a send's key set differs from the devices
// that must receive it.
type TargetMismatchError struct {
	Missing    []domain.DeviceID
	Extraneous []domain.DeviceID
}

func (e *TargetMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required target device(s): "+joinIDs(e.Missing))
	}
	if len(e.Extraneous) > 0 {
		parts = append(parts, "extraneous unknown device(s): "+joinIDs(e.Extraneous))
	}
	return strings.Join(parts, "; ")
}

func (e *TargetMismatchError) Unwrap() error { return ErrInvalidRequest }

func joinIDs(ids []domain.DeviceID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return strings.Join(s, ", ")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
