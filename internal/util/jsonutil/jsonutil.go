// Package jsonutil holds lenient JSON helpers for model output.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrNotJSON = errors.New("jsonutil: payload is not JSON")

// MarshalNoEscape encodes v into JSON without escaping <, >, & into \u003c, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Clean returns the JSON document inside raw. It strips a markdown code
// fence and unwraps up to two levels of a payload encoded as a JSON string.
func Clean(raw []byte) ([]byte, error) {
	out := stripFence(bytes.TrimSpace(raw))
	for range 2 {
		if len(out) == 0 || out[0] != '"' {
			break
		}
		var s string
		if err := json.Unmarshal(out, &s); err != nil {
			return nil, ErrNotJSON
		}
		out = stripFence(bytes.TrimSpace([]byte(s)))
	}
	if !json.Valid(out) {
		return nil, ErrNotJSON
	}
	return out, nil
}

// UnmarshalFlex cleans raw and then decodes it into v.
func UnmarshalFlex(raw []byte, v any) error {
	clean, err := Clean(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(clean, v)
}

func stripFence(b []byte) []byte {
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = b[3:]
	if nl := bytes.IndexByte(b, '\n'); nl >= 0 {
		b = b[nl+1:]
	} else {
		return bytes.TrimSpace(b)
	}
	b = bytes.TrimSpace(b)
	b = bytes.TrimSuffix(b, []byte("```"))
	return bytes.TrimSpace(b)
}
