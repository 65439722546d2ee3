package msgjson

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Headers is a string map persisted as a JSON document. It satisfies the
// sql.Scanner and driver.Valuer interfaces so gorm can store it in a text column.
type Headers map[string]string

// Value implements driver.Valuer.
func (h Headers) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(h))
	if err != nil {
		return nil, fmt.Errorf("msgjson.Headers: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (h *Headers) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*h = Headers{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("msgjson.Headers: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*h = Headers{}
		return nil
	}
	out := Headers{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("msgjson.Headers: invalid JSON payload: %w", err)
	}
	*h = out
	return nil
}

// MarshalJSON renders a nil map as an empty object.
func (h Headers) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(h))
}
