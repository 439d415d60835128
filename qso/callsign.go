package qso

import (
	"regexp"
	"strings"
	"unicode"
)

var callsignPattern = regexp.MustCompile(`^[A-Z0-9]+(?:[/-][A-Z0-9#]+)*$`)

// NormalizeCallsign uppercases the string, trims whitespace, and removes trailing dots or slashes.
func NormalizeCallsign(call string) string {
	normalized := strings.ToUpper(strings.TrimSpace(call))
	normalized = strings.ReplaceAll(normalized, ".", "/")
	normalized = strings.TrimRight(normalized, "/")
	return strings.TrimSpace(normalized)
}

// IsValidCallsign applies format checks to make sure it looks like a valid amateur call.
func IsValidCallsign(call string) bool {
	normalized := NormalizeCallsign(call)
	if len(normalized) < 3 || len(normalized) > 15 {
		return false
	}
	if strings.IndexFunc(normalized, unicode.IsDigit) < 0 {
		return false
	}
	return callsignPattern.MatchString(normalized)
}
