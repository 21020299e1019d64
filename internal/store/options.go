package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeOptions normalizes a stored option list to an ordered slice of
// strings. It accepts SQL NULL or JSON null (nil result), a JSON array, and a
// JSON string holding an encoded array, which is what a text column with JSON
// content looks like after to_jsonb. Non-string array elements are rendered as
// their JSON text.
func DecodeOptions(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		return DecodeOptions([]byte(inner))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err == nil {
			out = append(out, s)
			continue
		}
		if f, err := strconv.ParseFloat(string(it), 64); err == nil {
			out = append(out, strconv.FormatFloat(f, 'f', -1, 64))
			continue
		}
		out = append(out, string(it))
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
