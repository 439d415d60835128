package strutil

import "strings"

// NormalizeUpper trims surrounding whitespace and converts to upper case.
// Use for callsigns, modes, and other tokens where case is not significant.
func NormalizeUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// NormalizeLower trims surrounding whitespace and converts to lower case.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// SqueezeSpaces collapses every run of two or more spaces into a single space.
// Other whitespace is left untouched.
func SqueezeSpaces(value string) string {
	if !strings.Contains(value, "  ") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	prevSpace := false
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// IsDigits reports whether value is non-empty and made only of ASCII digits.
func IsDigits(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

// EscapeSeparator prefixes every sep and backslash in value with a backslash,
// so values joined with sep can always be told apart.
func EscapeSeparator(value string, sep byte) string {
	if strings.IndexByte(value, sep) < 0 && strings.IndexByte(value, '\\') < 0 {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 4)
	for i := 0; i < len(value); i++ {
		if ch := value[i]; ch == sep || ch == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	return b.String()
}
