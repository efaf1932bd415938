package procurement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is an AI-extracted attribute. The extraction backend emits these as
// strings, numbers or null depending on the field, so the value is kept as
// its display text plus a presence flag.
type Value struct {
	text  string
	valid bool
}

// NewValue returns a present value with the given text.
func NewValue(text string) Value {
	return Value{text: text, valid: true}
}

// Valid reports whether the backend sent a non-null value.
func (v Value) Valid() bool { return v.valid }

// String returns the display text; empty when the value is null.
func (v Value) String() string { return v.text }

// Truthy mirrors how the list summary treats values: null, empty text and a
// numeric zero all count as missing.
func (v Value) Truthy() bool {
	if !v.valid || v.text == "" {
		return false
	}
	if f, err := strconv.ParseFloat(v.text, 64); err == nil && f == 0 {
		return false
	}
	return true
}

// UnmarshalJSON accepts null, strings, numbers and booleans.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = NewValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = NewValue(strconv.FormatBool(b))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("procurement: unsupported value %s: %w", data, err)
		}
		*v = NewValue(FormatNumber(f))
	}
	return nil
}

// MarshalJSON writes the text back as a JSON string, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

// FormatNumber renders a float the shortest way that round-trips, so 20 is
// "20" and 35.5 is "35.5".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
