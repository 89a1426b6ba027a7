package timeseries

import (
	"strings"
	"unicode"
)

// Placeholder marks a dynamic segment inside a path template, e.g. "slave.[].cpus.total".
const Placeholder = "[]"

// SanitizeSegment collapses dots and whitespace in a dynamic path segment to
// underscores so it cannot introduce extra path levels.
func SanitizeSegment(segment string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, segment)
}

// RenderPath fills each placeholder of template, in order, with the matching
// sanitized segment. Extra segments are ignored; missing ones leave the
// placeholder in place so the mistake is visible downstream.
func RenderPath(template string, segments ...string) string {
	var b strings.Builder
	rest := template
	for _, seg := range segments {
		i := strings.Index(rest, Placeholder)
		if i < 0 {
			break
		}
		b.WriteString(rest[:i])
		b.WriteString(SanitizeSegment(seg))
		rest = rest[i+len(Placeholder):]
	}
	b.WriteString(rest)
	return b.String()
}

// JoinPath joins already-sanitized segments with dots, skipping empty ones.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}
