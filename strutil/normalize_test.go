package strutil

import "testing"

func TestSqueezeSpaces(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"a b":              "a b",
		"a  b":             "a b",
		"<CALL:4>K1AB    ": "<CALL:4>K1AB ",
		"a \t  b":          "a \t b",
	}
	for in, want := range cases {
		if got := SqueezeSpaces(in); got != want {
			t.Fatalf("SqueezeSpaces(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsDigits(t *testing.T) {
	if !IsDigits("20260103") {
		t.Fatalf("expected digits to be accepted")
	}
	if IsDigits("") || IsDigits("2026-01") {
		t.Fatalf("expected empty and punctuated values to be rejected")
	}
}

func TestEscapeSeparator(t *testing.T) {
	cases := map[string]string{
		"GM0MUW": "GM0MUW",
		"A|B":    `A\|B`,
		`A\`:     `A\\`,
		`\|`:     `\\\|`,
		"":       "",
	}
	for in, want := range cases {
		if got := EscapeSeparator(in, '|'); got != want {
			t.Fatalf("EscapeSeparator(%q) = %q, want %q", in, got, want)
		}
	}
}
