package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("jsonx: no balanced JSON object in text")

// ExtractObject returns the first balanced top-level JSON object embedded in
// free text. Models routinely prepend commentary or wrap output in markdown
// fences; both are tolerated. String literals and escapes are respected when
// counting braces.
func ExtractObject(text string) (json.RawMessage, error) {
	s := StripFences(text)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, ErrNoJSONObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, ErrNoJSONObject
				}
				return json.RawMessage(candidate), nil
			}
		}
	}
	return nil, ErrNoJSONObject
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving inner content untouched.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.IndexByte(t, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "html", ...).
		first := strings.TrimSpace(t[:idx])
		if len(first) <= 16 && !strings.ContainsAny(first, "{}<") {
			t = t[idx+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// Unmarshal extracts the first balanced JSON object from text and decodes it
// into v.
func Unmarshal(text string, v any) error {
	raw, err := ExtractObject(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// MarshalNoEscape encodes v without escaping <, >, & so generated markup
// survives a round trip through event payloads.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
