package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Package model contains domain models shared by the HTTP, service and persistence layers.
// No business logic here beyond enum validation.

// Tags is an ordered list of hashtags. It is persisted as a JSONB array.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("model: cannot scan %T into Tags", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("model: decode tags: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*t = out
	return nil
}
