package domino

// envelopeKeys are the wrapper keys seen across audit API versions.
var envelopeKeys = []string{"events", "data", "items", "results", "auditEvents"}

// ParseEvents extracts the record list from a decoded response: a bare array
// or an object wrapping one. Non-object elements are dropped.
func ParseEvents(payload any) []map[string]any {
	return Records(payload, envelopeKeys...)
}

// Records is ParseEvents with caller-chosen wrapper keys.
func Records(payload any, keys ...string) []map[string]any {
	var list []any
	switch v := payload.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, k := range keys {
			if inner, ok := v[k].([]any); ok {
				list = inner
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// EnvelopeKey names the wrapper key used by payload, "" for a bare array.
func EnvelopeKey(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range envelopeKeys {
		if _, ok := m[k].([]any); ok {
			return k
		}
	}
	return ""
}
