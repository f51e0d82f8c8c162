package dataset

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var nullTokens = map[string]bool{"": true, "nan": true, "n/a": true, "na": true, "none": true, "null": true, "-": true, "--": true}

// parseNumber reads a figure the upstream export wrote as a string. Null
// markers and anything that is not a plain number yield nil.
func parseNumber(raw string) *float64 {
	t := strings.TrimSpace(raw)
	if nullTokens[strings.ToLower(t)] {
		return nil
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// looseFloat accepts a JSON number, a numeric string, or null.
type looseFloat struct {
	v *float64
}

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		f.v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.v = parseNumber(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.v = &v
	return nil
}

// looseBool accepts a JSON bool, a number, or a yes/no style string.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = false
	case bytes.Equal(data, []byte("true")):
		*b = true
	case bytes.Equal(data, []byte("false")):
		*b = false
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "y", "oui", "x":
			*b = true
		default:
			*b = false
		}
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = v != 0
	}
	return nil
}

// looseString accepts a JSON string, a number, or null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
		return nil
	}
	*s = looseString(string(data))
	return nil
}
