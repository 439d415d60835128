package qso

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"qsolog/strutil"
)

// ErrMissingCall is returned when a record carries no counterpart callsign.
// It is the only hard rejection; every other field degrades to a default.
var ErrMissingCall = errors.New("qso: missing counterpart callsign")

const (
	minFrequencyMHz = 0.1
	maxFrequencyMHz = 300000.0
)

// draft collects raw values while the field table is applied.
type draft struct {
	rec      Record
	date     string
	timeOn   string
	band     string
	mode     string
	submode  string
	operator string
}

type fieldSetter func(d *draft, value string)

type fieldRule struct {
	tag string
	set fieldSetter
}

// fieldRules is applied in order. Synonyms come before their canonical tag so
// the canonical value wins when both are present.
var fieldRules = []fieldRule{
	{tag: "call", set: func(d *draft, v string) { d.rec.Call = NormalizeCallsign(v) }},
	{tag: "operator", set: func(d *draft, v string) { d.operator = NormalizeCallsign(v) }},
	{tag: "station_callsign", set: func(d *draft, v string) { d.operator = NormalizeCallsign(v) }},
	{tag: "qso_date", set: func(d *draft, v string) { d.date = v }},
	{tag: "time_on", set: func(d *draft, v string) { d.timeOn = v }},
	{tag: "freq", set: func(d *draft, v string) { d.rec.FrequencyMHz = ParseFrequency(v) }},
	{tag: "band", set: func(d *draft, v string) { d.band = NormalizeBand(v) }},
	{tag: "mode", set: func(d *draft, v string) { d.mode = v }},
	{tag: "submode", set: func(d *draft, v string) { d.submode = strutil.NormalizeUpper(v) }},
	{tag: "rst_sent", set: func(d *draft, v string) { d.rec.RSTSent = v }},
	{tag: "rst_received", set: func(d *draft, v string) { d.rec.RSTReceived = v }},
	{tag: "rst_rcvd", set: func(d *draft, v string) { d.rec.RSTReceived = v }},
	{tag: "my_gridsquare", set: func(d *draft, v string) { d.rec.OperatorLocator = NormalizeLocator(v) }},
	{tag: "gridsquare", set: func(d *draft, v string) { d.rec.Locator = NormalizeLocator(v) }},
	{tag: "prop_mode", set: func(d *draft, v string) { d.rec.PropMode = strutil.NormalizeUpper(v) }},
	{tag: "sat_name", set: func(d *draft, v string) { d.rec.SatName = strutil.NormalizeUpper(v) }},
	{tag: "name", set: func(d *draft, v string) { d.rec.Name = v }},
	{tag: "qth", set: func(d *draft, v string) { d.rec.QTH = v }},
	{tag: "comment", set: func(d *draft, v string) { d.rec.Comment = v }},
}

// Tags lists the field tags the normalizer consumes, in application order.
func Tags() []string {
	out := make([]string, 0, len(fieldRules))
	for _, rule := range fieldRules {
		out = append(out, rule.tag)
	}
	return out
}

// Normalizer turns raw tag/value maps into Records.
type Normalizer struct {
	clock clockwork.Clock
}

// NewNormalizer returns a Normalizer that uses clock for the ingestion-date
// default. A nil clock means the real clock.
func NewNormalizer(clock clockwork.Clock) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Normalizer{clock: clock}
}

// Normalize builds a Record from fields (lower-case tags, last writer already
// applied). Missing or invalid values fall back to defaults: today for the
// date, midnight for the time, 0 for the frequency, SSB for the mode, and the
// owner's callsign and locator for the operator side.
func (n *Normalizer) Normalize(fields map[string]string, owner Owner) (Record, error) {
	var d draft
	for _, rule := range fieldRules {
		value := strings.TrimSpace(fields[rule.tag])
		if value == "" {
			continue
		}
		rule.set(&d, value)
	}
	if d.rec.Call == "" {
		return Record{}, ErrMissingCall
	}

	day, ok := ParseDate(d.date)
	if !ok {
		day = dateOnly(n.clock.Now())
	}
	d.rec.Start = day.Add(ParseTimeOn(d.timeOn))

	d.rec.Mode = resolveMode(d.mode, d.submode)
	d.rec.Submode = d.submode
	switch {
	case d.band != "":
		d.rec.Band = d.band
	default:
		d.rec.Band = BandForFrequency(d.rec.FrequencyMHz)
	}

	d.rec.OwnerID = owner.ID
	d.rec.OperatorCall = d.operator
	if d.rec.OperatorCall == "" {
		d.rec.OperatorCall = owner.CallsignOn(day)
	}
	if d.rec.OperatorLocator == "" {
		d.rec.OperatorLocator = NormalizeLocator(owner.Locator)
	}
	return d.rec, nil
}

// ParseDate parses a strict YYYYMMDD date in UTC.
func ParseDate(value string) (time.Time, bool) {
	if len(value) != 8 || !strutil.IsDigits(value) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102", value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseTimeOn parses HHMM or HHMMSS into an offset from midnight. Anything
// else yields 0 (midnight).
func ParseTimeOn(value string) time.Duration {
	if !strutil.IsDigits(value) {
		return 0
	}
	var layout string
	switch len(value) {
	case 4:
		layout = "1504"
	case 6:
		layout = "150405"
	default:
		return 0
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// ParseFrequency parses a frequency in MHz. Only digits, '.', '+', '-', 'e'
// and 'E' are accepted; unparseable or implausible values return 0.
func ParseFrequency(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || ch == '.' || ch == '+' || ch == '-' || ch == 'e' || ch == 'E' {
			continue
		}
		return 0
	}
	mhz, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	if mhz < minFrequencyMHz || mhz > maxFrequencyMHz {
		return 0
	}
	return mhz
}
