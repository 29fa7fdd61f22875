package audit

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// asMap returns v as a mapping, or nil for anything else.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// Text returns the trimmed string when v is a non-blank string.
func Text(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Number accepts ints, floats, json.Number and strings parseable as a float.
// Anything else, including booleans, yields false.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Ident renders an identifier that may arrive as a string or a number.
func Ident(v any) (string, bool) {
	if s, ok := Text(v); ok {
		return s, true
	}
	switch n := v.(type) {
	case json.Number:
		return n.String(), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func firstText(values ...any) *string {
	for _, v := range values {
		if s, ok := Text(v); ok {
			return &s
		}
	}
	return nil
}

func firstIdent(values ...any) *string {
	for _, v := range values {
		if s, ok := Ident(v); ok {
			return &s
		}
	}
	return nil
}

// Path walks nested mappings: Path(m, "stageTime", "completedTime").
func Path(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		next := asMap(cur)
		if next == nil {
			return nil
		}
		cur = next[k]
	}
	return cur
}

// StageDuration computes (completedTime - runStartTime) / 1000 from a stageTime
// mapping in milliseconds. It requires both values and completed > started.
func StageDuration(stageTime map[string]any) (float64, bool) {
	if stageTime == nil {
		return 0, false
	}
	completed, ok := Number(stageTime["completedTime"])
	if !ok {
		return 0, false
	}
	started, ok := Number(stageTime["runStartTime"])
	if !ok || completed <= started {
		return 0, false
	}
	return (completed - started) / 1000, true
}

// NormalizeKey lowercases k and strips spaces, underscores and hyphens.
func NormalizeKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
