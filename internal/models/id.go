package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a question or a ladder.
// The backend emits identifiers as JSON numbers, but ids typed by users
// (copy source, URL params) arrive as strings, so both forms decode here.
type ID string

// String returns the identifier as text
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty
func (id ID) IsZero() bool {
	return id == ""
}

// numeric reports whether the identifier is a canonical integer, so "007"
// and "+5" stay strings and are never written as bare JSON tokens
func (id ID) numeric() bool {
	if id == "" {
		return false
	}
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

// MarshalJSON encodes numeric identifiers as numbers and everything else as strings
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number or string
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// IDs converts plain strings to identifiers
func IDs(values ...string) []ID {
	ids := make([]ID, len(values))
	for i, v := range values {
		ids[i] = ID(v)
	}
	return ids
}

// ContainsID reports whether ids contains id
func ContainsID(ids []ID, id ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
