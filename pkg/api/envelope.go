package api

import (
	"math"
	"strconv"
	"strings"
)

// asObject reports v as a JSON object. Arrays and scalars do not qualify.
func asObject(v interface{}) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	return obj, ok
}

// toNumber coerces numeric and numeric-string values to a finite float64.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return toNumber(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// nonEmptyString reports v as a string with non-whitespace content.
func nonEmptyString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// firstString returns the first non-empty string among the named keys.
func firstString(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := nonEmptyString(obj[key]); ok {
			return s, true
		}
	}
	return "", false
}

// firstValue returns the first value present among the named keys.
func firstValue(obj map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// unwrapEnvelope strips the optional {ok, data, message, code} wrapper some
// endpoints use. Payloads without the wrapper pass through unchanged, which
// makes the unwrapper idempotent. Normalizers still re-check for nested
// envelopes since some endpoints double-wrap.
func unwrapEnvelope(body interface{}) interface{} {
	obj, ok := asObject(body)
	if !ok {
		return body
	}
	if data, hasData := obj["data"]; hasData {
		return data
	}
	return body
}
