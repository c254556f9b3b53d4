package frontmatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fields is decoded front matter with lenient typed accessors.
type Fields map[string]any

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// String returns the value of key rendered as trimmed text. Dates render as YYYY-MM-DD.
func (f Fields) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(time.DateOnly)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// FirstString returns the first non-empty value among keys.
func (f Fields) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := f.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Strings returns a list value. A scalar string is split on commas.
func (f Fields) Strings(key string) []string {
	v, ok := f[key]
	if !ok || v == nil {
		return []string{}
	}
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = t
	case string:
		raw = strings.Split(strings.Trim(t, "[]"), ",")
	default:
		raw = []string{fmt.Sprint(t)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Float returns a numeric value; ok is false when absent or not numeric.
func (f Fields) Float(key string) (float64, bool) {
	v, present := f[key]
	if !present || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Date parses key as an ISO date (YYYY-MM-DD, optionally with a time part).
func (f Fields) Date(key string) (time.Time, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("missing %q", key)
	}
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s := f.String(key)
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
