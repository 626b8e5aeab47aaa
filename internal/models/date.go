package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// DateLayout is the calendar date format used by the backend.
const DateLayout = "2006-01-02"

// Date is a calendar date that tolerates empty and null JSON values.
type Date struct {
	time.Time
}

// NewDate parses a YYYY-MM-DD string; an empty string yields the zero Date.
func NewDate(raw string) (Date, error) {
	if raw == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// MustDate is NewDate for literals known to be valid.
func MustDate(raw string) Date {
	d, err := NewDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date, empty when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as YYYY-MM-DD or null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD, RFC3339, empty strings and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	*d = Date{Time: t}
	return nil
}
