package tracker

import (
	"regexp"
	"unicode/utf8"
)

const (
	redacted = "[REDACTED]"
	ellipsis = "..."
)

var sensitiveKey = regexp.MustCompile(`(?i)password|secret|token`)

// sanitizer copies caller properties, redacting sensitive keys and shortening long
// strings. Nested maps and slices are walked as well.
type sanitizer struct {
	maxLen int
	// keyLimits overrides maxLen for specific top-level keys.
	keyLimits map[string]int
}

func newSanitizer(maxLen int, keyLimits map[string]int) sanitizer {
	return sanitizer{maxLen: maxLen, keyLimits: keyLimits}
}

func (s sanitizer) apply(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if sensitiveKey.MatchString(k) {
			out[k] = redacted
			continue
		}
		limit := s.maxLen
		if l, ok := s.keyLimits[k]; ok && l > limit {
			limit = l
		}
		out[k] = s.value(v, limit)
	}
	return out
}

func (s sanitizer) value(v any, limit int) any {
	switch x := v.(type) {
	case string:
		return truncate(x, limit)
	case map[string]any:
		return s.apply(x)
	case []any:
		cp := make([]any, len(x))
		for i, e := range x {
			cp[i] = s.value(e, s.maxLen)
		}
		return cp
	case []string:
		cp := make([]string, len(x))
		for i, e := range x {
			cp[i] = truncate(e, s.maxLen)
		}
		return cp
	default:
		return v
	}
}

func truncate(str string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(str) <= limit {
		return str
	}
	return string([]rune(str)[:limit]) + ellipsis
}

// cut shortens str to at most limit runes without a marker.
func cut(str string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(str) <= limit {
		return str
	}
	return string([]rune(str)[:limit])
}
