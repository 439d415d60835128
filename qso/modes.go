package qso

import "qsolog/strutil"

// DefaultMode is used whenever the logged mode is missing or unrecognized.
const DefaultMode = "SSB"

var modeWhitelist = map[string]struct{}{
	"SSB":    {},
	"CW":     {},
	"FM":     {},
	"AM":     {},
	"RTTY":   {},
	"PSK31":  {},
	"PSK63":  {},
	"FT8":    {},
	"FT4":    {},
	"JT65":   {},
	"JT9":    {},
	"SSTV":   {},
	"JS8":    {},
	"MSK144": {},
	"MFSK":   {},
}

// NormalizeMode upper-cases mode and maps it through the whitelist. Anything
// unrecognized becomes DefaultMode so bulk imports keep flowing.
func NormalizeMode(mode string) string {
	mode = strutil.NormalizeUpper(mode)
	if _, ok := modeWhitelist[mode]; ok {
		return mode
	}
	return DefaultMode
}

// IsKnownMode reports whether mode is in the whitelist.
func IsKnownMode(mode string) bool {
	_, ok := modeWhitelist[strutil.NormalizeUpper(mode)]
	return ok
}

// resolveMode prefers the mode tag, falling back to the submode when only the
// latter is recognized (MODE=DATA SUBMODE=FT8 style exports).
func resolveMode(mode, submode string) string {
	if IsKnownMode(mode) {
		return NormalizeMode(mode)
	}
	if IsKnownMode(submode) {
		return NormalizeMode(submode)
	}
	return DefaultMode
}
