package nodeconfig

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// present reports whether cfg holds a non-nil value for key.
func present(cfg map[string]any, key string) bool {
	v, ok := cfg[key]
	return ok && v != nil
}

// str returns cfg[key] rendered as a string. Numbers are formatted; other
// types yield "".
func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// number returns cfg[key] as a float64.
func number(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// list returns cfg[key] as a slice of objects. ok is false when the value
// is present but not an array.
func list(m map[string]any, key string) (items []map[string]any, ok bool) {
	switch v := m[key].(type) {
	case nil:
		return nil, true
	case []map[string]any:
		return v, true
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if obj, isObj := item.(map[string]any); isObj {
				out = append(out, obj)
			} else {
				out = append(out, map[string]any{})
			}
		}
		return out, true
	}
	return nil, false
}

// DecodeConfig parses a JSON object payload into a config map.
func DecodeConfig(data []byte) (map[string]any, error) {
	cfg := map[string]any{}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
