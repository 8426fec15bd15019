package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeWithFallback unmarshals raw into v, tolerating the dressing
// models put around JSON: markdown code fences and prose before or
// after the object.
func DecodeWithFallback(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty json")
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	if stripped := stripCodeFence(raw); stripped != raw {
		if err := json.Unmarshal([]byte(stripped), v); err == nil {
			return nil
		}
		raw = stripped
	}
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return fmt.Errorf("no json object found")
	}
	end := strings.LastIndexAny(raw, "}]")
	if end < start {
		return fmt.Errorf("no json object found")
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
