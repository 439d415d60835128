package qso

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCallsign is returned when an alternate callsign fails the format check.
	ErrInvalidCallsign = errors.New("qso: invalid callsign")
	// ErrInvalidWindow is returned when an alternate callsign's validity window is inverted.
	ErrInvalidWindow = errors.New("qso: validity window ends before it starts")
)

// AlternateCall is a callsign the owner operated under for a period of time.
// A zero Since or Until leaves that side of the window open.
type AlternateCall struct {
	Call  string
	Since time.Time
	Until time.Time
}

// Covers reports whether date falls inside the validity window (inclusive).
func (a AlternateCall) Covers(date time.Time) bool {
	day := dateOnly(date)
	if !a.Since.IsZero() && day.Before(dateOnly(a.Since)) {
		return false
	}
	if !a.Until.IsZero() && day.After(dateOnly(a.Until)) {
		return false
	}
	return true
}

// AlternateCalls is an ordered list of validated alternate callsigns. Earlier
// entries win when windows overlap.
type AlternateCalls []AlternateCall

// Add validates alt and appends it. The stored callsign is normalized.
func (a *AlternateCalls) Add(alt AlternateCall) error {
	call := NormalizeCallsign(alt.Call)
	if !IsValidCallsign(call) {
		return fmt.Errorf("%w: %q", ErrInvalidCallsign, alt.Call)
	}
	if !alt.Since.IsZero() && !alt.Until.IsZero() && alt.Until.Before(alt.Since) {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, call)
	}
	alt.Call = call
	*a = append(*a, alt)
	return nil
}

// On returns the first alternate valid on date.
func (a AlternateCalls) On(date time.Time) (AlternateCall, bool) {
	for _, alt := range a {
		if alt.Covers(date) {
			return alt, true
		}
	}
	return AlternateCall{}, false
}

// Owner is the account a batch of contacts is ingested for.
type Owner struct {
	ID         int64
	Callsign   string
	Locator    string
	Alternates AlternateCalls
}

// CallsignOn returns the callsign the owner used on date: a matching alternate
// if one exists, otherwise the primary callsign.
func (o Owner) CallsignOn(date time.Time) string {
	if alt, ok := o.Alternates.On(date); ok {
		return alt.Call
	}
	return NormalizeCallsign(o.Callsign)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
