package qso

import "testing"

func TestNormalizeCallsignReplacesDot(t *testing.T) {
	input := "W6.UT5UF"
	want := "W6/UT5UF"
	if got := NormalizeCallsign(input); got != want {
		t.Fatalf("NormalizeCallsign(%q) = %q, want %q", input, got, want)
	}
}

func TestNormalizeCallsignTrimsAndUppercases(t *testing.T) {
	input := "  gm0muw/ "
	want := "GM0MUW"
	if got := NormalizeCallsign(input); got != want {
		t.Fatalf("NormalizeCallsign(%q) = %q, want %q", input, got, want)
	}
}

func TestIsValidCallsignRequiresDigit(t *testing.T) {
	if IsValidCallsign("ABC/DEF") {
		t.Fatalf("IsValidCallsign should reject ABC/DEF because it lacks digits")
	}
	if !IsValidCallsign("ua9xyz") {
		t.Fatalf("IsValidCallsign should accept ua9xyz after normalization")
	}
}

func TestIsValidCallsignLengthBounds(t *testing.T) {
	valid := "K1ABCDEF/GHIJKL"
	if !IsValidCallsign(valid) {
		t.Fatalf("IsValidCallsign should accept max-length callsign %q", valid)
	}
	invalid := "K1ABCDEF/GHIJKLM"
	if IsValidCallsign(invalid) {
		t.Fatalf("IsValidCallsign should reject overlong callsign %q", invalid)
	}
}

func TestNormalizeLocator(t *testing.T) {
	cases := map[string]string{
		"io85":     "IO85",
		"KO85SS":   "KO85ss",
		"ko85ss12": "KO85ss12",
		"JJ":       "JJ",
		"ZZ00":     "",
		"KO8":      "",
		"KO85zz":   "",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizeLocator(in); got != want {
			t.Fatalf("NormalizeLocator(%q) = %q, want %q", in, got, want)
		}
	}
}
