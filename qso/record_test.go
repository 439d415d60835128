package qso

import (
	"testing"
	"time"
)

func TestDuplicateKeyFromRecord(t *testing.T) {
	rec := Record{
		OwnerID:      3,
		OperatorCall: "UA3AAA",
		Call:         "GM0MUW",
		Start:        time.Date(2026, 1, 3, 11, 19, 49, 0, time.UTC),
		Band:         "3cm",
		Mode:         "SSB",
	}
	key := rec.Key()
	if key.Date != "2026-01-03" || key.Time != "11:19:49" {
		t.Fatalf("unexpected date/time in key: %+v", key)
	}
	if got, want := key.String(), "3|UA3AAA|GM0MUW|2026-01-03|11:19:49|3cm|SSB"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	other := key
	other.Mode = "CW"
	if key.Hash() == other.Hash() {
		t.Fatalf("expected distinct hashes for distinct keys")
	}
	if key.Hash() != rec.Key().Hash() {
		t.Fatalf("hash must be stable")
	}
}

func TestDuplicateKeyStringEscapesSeparators(t *testing.T) {
	base := DuplicateKey{OwnerID: 1, Date: "2026-01-03", Time: "11:19:49", Band: "20m", Mode: "CW"}
	a, b := base, base
	a.OperatorCall, a.Call = "X", "A|B"
	b.OperatorCall, b.Call = "X|A", "B"
	if a.String() == b.String() {
		t.Fatalf("distinct keys render alike: %q", a.String())
	}
	c, d := base, base
	c.OperatorCall, c.Call = `X\`, "A"
	d.OperatorCall, d.Call = "X", `\A`
	if c.String() == d.String() {
		t.Fatalf("distinct keys render alike: %q", c.String())
	}
}
