package cty

import (
	"strings"

	"qsolog/strutil"
)

// modifiers are portable/operating designators that say nothing about location.
var modifiers = map[string]struct{}{
	"P":   {},
	"M":   {},
	"MM":  {},
	"AM":  {},
	"QRP": {},
	"B":   {},
	"A":   {},
}

// LookupCallsignPortable resolves calls with slash designators. Modifier
// segments and bare call-area digits are ignored. When two segments remain the
// shorter one (usually the location prefix, as in DL/UA3AAA or K1ABC/W6) is
// tried first, then the full call.
func (db *Database) LookupCallsignPortable(cs string) (*PrefixInfo, bool) {
	for _, candidate := range PortableCandidates(cs) {
		if info, ok := db.LookupCallsign(candidate); ok {
			return info, true
		}
	}
	return nil, false
}

// PortableCandidates returns the lookup keys tried for cs, in order.
func PortableCandidates(cs string) []string {
	cs = strings.ToUpper(strings.TrimSpace(cs))
	if cs == "" {
		return nil
	}
	if !strings.Contains(cs, "/") {
		return []string{cs}
	}
	raw := strings.Split(cs, "/")
	segments := raw[:0]
	for _, seg := range raw {
		if seg == "" || strutil.IsDigits(seg) {
			continue
		}
		if _, ok := modifiers[seg]; ok {
			continue
		}
		segments = append(segments, seg)
	}
	switch len(segments) {
	case 0:
		return nil
	case 1:
		return []string{segments[0]}
	case 2:
		short := segments[0]
		if len(segments[1]) < len(short) {
			short = segments[1]
		}
		full := segments[0] + "/" + segments[1]
		return []string{short, full}
	default:
		return []string{strings.Join(segments, "/")}
	}
}
