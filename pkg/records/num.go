package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Num is a nullable number that the API sends as a JSON number, a numeric
// string ("7.3", "55%") or null.
type Num struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Num) UnmarshalJSON(b []byte) error {
	*n = Num{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode numeric string: %w", err)
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// non-numeric strings are treated as missing
			return nil
		}
		*n = Num{Value: v, Valid: true}
		return nil
	}

	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("decode number %q: %w", b, err)
	}
	*n = Num{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// Float returns the value or nil when missing.
func (n Num) Float() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Int returns the value truncated to an int, or nil when missing.
func (n Num) Int() *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Value)
	return &v
}

// ParseMeasure extracts the integer from height and weight strings such as
// "183 cm" or "72 kg". It returns nil when s holds no digits.
func ParseMeasure(s string) *int {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	v, err := strconv.Atoi(digits.String())
	if err != nil {
		return nil
	}
	return &v
}

var positionNames = map[string]string{
	"G": "Goalkeeper",
	"D": "Defender",
	"M": "Midfielder",
	"F": "Forward",
}

// PositionName expands single letter position codes. Unknown values are
// returned unchanged.
func PositionName(code string) string {
	if name, ok := positionNames[code]; ok {
		return name
	}
	return code
}
