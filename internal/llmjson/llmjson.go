// Package llmjson pulls JSON objects out of free-form model output.
package llmjson

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoObject is returned when the text holds no {...} span.
var ErrNoObject = errors.New("no JSON object in model output")

// ExtractObject strips markdown code fences and returns the span from the
// first '{' to the last '}'.
func ExtractObject(text string) ([]byte, error) {
	s := stripFences(strings.TrimSpace(text))
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, ErrNoObject
	}
	return []byte(s[start : end+1]), nil
}

// Decode extracts the outermost object from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := ExtractObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, including an optional language tag.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Code is a product code that the model may emit as a string or a number.
type Code string

// UnmarshalJSON accepts "P-100", 100 and 100.0.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("product code %s: %w", data, err)
	}
	if f == float64(int64(f)) {
		*c = Code(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*c = Code(string(data))
	return nil
}

// String returns the code as text.
func (c Code) String() string { return string(c) }
