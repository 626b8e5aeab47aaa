package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ImportRowError describes one rejected record of a batch import. Row,
// Message and Errors are read from the server payload when present; Raw
// keeps that payload exactly as received.
type ImportRowError struct {
	Row     int             `json:"row"`
	Message string          `json:"message,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type importRowFields struct {
	Row     int             `json:"row"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// UnmarshalJSON accepts any JSON value. Objects fill the known fields, plain
// strings become the message, and every shape is kept in Raw.
func (e *ImportRowError) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*e = ImportRowError{Raw: append(json.RawMessage(nil), trimmed...)}
	if len(trimmed) == 0 {
		e.Raw = nil
		return nil
	}
	switch trimmed[0] {
	case '{':
		var fields importRowFields
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			// unexpected field types; Raw still carries the row
			return nil
		}
		e.Row = fields.Row
		e.Errors = fields.Errors
		e.Message = firstNonEmpty(fields.Message, fields.Detail, fields.Error)
	case '"':
		_ = json.Unmarshal(trimmed, &e.Message)
	}
	return nil
}

// MarshalJSON writes Raw unchanged when the error came from a server.
func (e ImportRowError) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	type plain ImportRowError
	return json.Marshal(plain(e))
}

// String renders the row error for terminal output. Server payloads are
// shown in full so that no field is hidden.
func (e ImportRowError) String() string {
	var body string
	switch {
	case len(e.Raw) > 0 && e.Raw[0] == '"':
		body = e.Message
	case len(e.Raw) > 0:
		var buf bytes.Buffer
		if err := json.Compact(&buf, e.Raw); err != nil {
			body = string(e.Raw)
		} else {
			body = buf.String()
		}
	default:
		body = e.Message
		if len(e.Errors) > 0 {
			body += " " + string(e.Errors)
		}
	}
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, body)
	}
	return body
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ImportResult is the server summary of a batch import.
type ImportResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Errors  []ImportRowError `json:"errors"`
}

// HasErrors reports whether any record was rejected.
func (r ImportResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ImportRecord is one parsed input row keyed by column header.
type ImportRecord map[string]string
