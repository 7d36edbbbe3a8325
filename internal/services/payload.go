package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"nguide/admin/internal/pricing"
)

// ValidationError carries every problem found in a request payload.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// NormalizeCountryCode maps country names and codes to an ISO-2 code,
// defaulting to TH.
func NormalizeCountryCode(country string) string {
	country = strings.TrimSpace(country)
	if country == "" {
		return "TH"
	}
	switch strings.ToLower(country) {
	case "th", "tha", "thailand", "ไทย":
		return "TH"
	case "la", "lao", "laos", "ลาว":
		return "LA"
	case "vn", "vnm", "vietnam", "เวียดนาม":
		return "VN"
	}
	upper := []rune(strings.ToUpper(country))
	if len(upper) > 2 {
		upper = upper[:2]
	}
	return string(upper)
}

// Loose coercion of decoded JSON values. ok is false when the value has the
// wrong shape and should be ignored.

func toInt(v interface{}) (int, bool) {
	f, ok := pricing.ToFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no", "":
			return false, true
		}
		return false, false
	case nil:
		return false, true
	}
	f, ok := pricing.ToFloat(v)
	if !ok {
		return false, false
	}
	return f != 0, true
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case nil:
		return "", true
	case float64, int, int64, json.Number:
		f, _ := pricing.ToFloat(s)
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

// toList accepts arrays, JSON-encoded arrays and single values.
func toList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case nil:
		return []interface{}{}, true
	case string:
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "[") {
			var parsed []interface{}
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return parsed, true
			}
			return []interface{}{}, true
		}
		if trimmed == "" {
			return []interface{}{}, true
		}
		return []interface{}{trimmed}, true
	case map[string]interface{}:
		return []interface{}{l}, true
	}
	return nil, false
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case nil:
		return nil, true
	}
	return nil, false
}

// lookup returns the value for a nested group key or, failing that, the
// first flat alias present in the payload. Nested values win.
func lookup(payload map[string]interface{}, group, key string, aliases ...string) (interface{}, bool) {
	if group != "" {
		if nested, ok := payload[group].(map[string]interface{}); ok {
			if v, ok := nested[key]; ok && v != nil {
				return v, true
			}
		}
	}
	for _, alias := range aliases {
		if v, ok := payload[alias]; ok {
			if _, isObject := v.(map[string]interface{}); isObject && alias == group {
				continue
			}
			return v, true
		}
	}
	return nil, false
}
