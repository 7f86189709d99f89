package llmjson

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Int is an optional integer the model may emit as a number, a numeric
// string ("1,500,000") or null. Anything unparsable reads as absent.
type Int struct {
	Value int64
	Valid bool
}

// UnmarshalJSON never fails: bad values leave the field absent.
func (n *Int) UnmarshalJSON(data []byte) error {
	*n = Int{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // lenient by contract
		}
		s = strings.NewReplacer(",", "", "원", "", " ", "").Replace(s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil //nolint:nilerr // lenient by contract
	}
	*n = Int{Value: int64(f), Valid: true}
	return nil
}

// Ptr returns the value as a pointer, nil when absent.
func (n Int) Ptr() *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Strings accepts a JSON array of strings or a single string.
type Strings []string

// UnmarshalJSON never fails on shape mismatches; non-string items are skipped.
func (s *Strings) UnmarshalJSON(data []byte) error {
	*s = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err == nil && strings.TrimSpace(one) != "" {
			*s = Strings{one}
		}
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil //nolint:nilerr // lenient by contract
	}
	for _, it := range items {
		if str, ok := it.(string); ok && strings.TrimSpace(str) != "" {
			*s = append(*s, str)
		}
	}
	return nil
}

// Weights is a name->weight map that drops non-numeric values.
type Weights map[string]float64

// UnmarshalJSON keeps numeric and numeric-string values only.
func (w *Weights) UnmarshalJSON(data []byte) error {
	*w = nil
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) == 0 {
		return nil //nolint:nilerr // lenient by contract
	}

	out := make(Weights, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case float64:
			out[k] = t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				out[k] = f
			}
		}
	}
	if len(out) > 0 {
		*w = out
	}
	return nil
}
