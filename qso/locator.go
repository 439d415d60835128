package qso

import "strings"

// NormalizeLocator returns the canonical Maidenhead form of loc (field and
// square upper case, subsquare lower case) or "" when loc is not a 2/4/6/8
// character locator.
func NormalizeLocator(loc string) string {
	loc = strings.TrimSpace(loc)
	n := len(loc)
	if n != 2 && n != 4 && n != 6 && n != 8 {
		return ""
	}
	out := []byte(loc)
	for i := 0; i < n; i++ {
		ch := out[i]
		switch i {
		case 0, 1:
			ch = toUpper(ch)
			if ch < 'A' || ch > 'R' {
				return ""
			}
		case 2, 3, 6, 7:
			if ch < '0' || ch > '9' {
				return ""
			}
		case 4, 5:
			ch = toLower(ch)
			if ch < 'a' || ch > 'x' {
				return ""
			}
		}
		out[i] = ch
	}
	return string(out)
}

func toUpper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 'A'
	}
	return ch
}

func toLower(ch byte) byte {
	if ch >= 'A' && ch <= 'Z' {
		return ch - 'A' + 'a'
	}
	return ch
}
