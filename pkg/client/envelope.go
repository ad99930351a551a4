package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Envelope is the wrapper every API-Football response comes in.
type Envelope struct {
	Get        string          `json:"get"`
	Parameters json.RawMessage `json:"parameters"`
	Errors     Messages        `json:"errors"`
	Results    int             `json:"results"`
	Paging     Paging          `json:"paging"`
	Response   json.RawMessage `json:"response"`

	// Exhausted is set on the empty envelope returned when every key in the
	// pool has been disabled.
	Exhausted bool `json:"-"`
}

// Paging is the paging member of an envelope.
type Paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Decode unmarshals the response member into v. An exhausted or empty
// envelope leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if e.Exhausted || isEmptyJSON(e.Response) {
		return nil
	}
	if err := json.Unmarshal(e.Response, v); err != nil {
		return &APIError{
			ErrorClass: ErrorClassAPI,
			Message:    fmt.Sprintf("decode %s response", e.Get),
			Err:        err,
		}
	}
	return nil
}

func isEmptyJSON(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// Messages holds the errors member of an envelope. The API sends an empty
// list when there are no errors and an object keyed by field otherwise;
// list entries are keyed by position.
type Messages map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (m *Messages) UnmarshalJSON(b []byte) error {
	*m = nil

	b = bytes.TrimSpace(b)
	if isEmptyJSON(b) {
		return nil
	}

	switch b[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("decode errors list: %w", err)
		}
		if len(list) == 0 {
			return nil
		}
		out := make(Messages, len(list))
		for i, raw := range list {
			out[strconv.Itoa(i)] = rawString(raw)
		}
		*m = out
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("decode errors object: %w", err)
		}
		if len(obj) == 0 {
			return nil
		}
		out := make(Messages, len(obj))
		for k, raw := range obj {
			out[k] = rawString(raw)
		}
		*m = out
	default:
		*m = Messages{"0": rawString(b)}
	}
	return nil
}

// String renders the messages sorted by key.
func (m Messages) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+m[k])
	}
	return strings.Join(parts, "; ")
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
