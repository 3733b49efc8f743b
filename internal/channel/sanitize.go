package channel

import (
	"encoding/json"
	"strings"
)

// sensitiveNameFragments are substrings that mark a header or JSON field
// name as secret; matching is case-insensitive.
var sensitiveNameFragments = []string{"api_key", "password", "secret", "token", "authorization", "user-api-key"}

func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range sensitiveNameFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// sanitizePayload marshals v to JSON and redacts any object field whose name
// matches a sensitive fragment, recursively. Used so audit logs never
// retain credentials even if a caller embeds them in a request body.
func sanitizePayload(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"_sanitize_error":true}`)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return raw
	}

	sanitized := sanitizeValue(generic)
	out, err := json.Marshal(sanitized)
	if err != nil {
		return raw
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			if isSensitiveName(k) {
				out[k] = "***redacted***"
			} else {
				out[k] = sanitizeValue(vv)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = sanitizeValue(vv)
		}
		return out
	default:
		return val
	}
}
