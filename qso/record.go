package qso

import (
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"qsolog/strutil"
)

const (
	// DateLayout is the canonical date form used in duplicate keys and storage.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical time-on form used in duplicate keys and storage.
	TimeLayout = "15:04:05"
)

// Geo is the resolved geolocation block of a contact. Zero values mean the
// callsign matched nothing in the loaded databases.
type Geo struct {
	Country       string `json:"country,omitempty"`
	DXCC          int    `json:"dxcc,omitempty"`
	CQZone        int    `json:"cq_zone,omitempty"`
	ITUZone       int    `json:"itu_zone,omitempty"`
	Continent     string `json:"continent,omitempty"`
	PrimaryPrefix string `json:"primary_prefix,omitempty"`
	Region        string `json:"region,omitempty"`
}

// IsZero reports whether nothing was resolved.
func (g Geo) IsZero() bool {
	return g == Geo{}
}

// Record is one normalized contact. Records are built once by the Normalizer
// and treated as values afterwards.
type Record struct {
	OwnerID         int64     `json:"owner_id"`
	OperatorCall    string    `json:"operator_call"`
	Call            string    `json:"call"`
	Start           time.Time `json:"start"`
	FrequencyMHz    float64   `json:"freq_mhz,omitempty"`
	Band            string    `json:"band"`
	Mode            string    `json:"mode"`
	Submode         string    `json:"submode,omitempty"`
	RSTSent         string    `json:"rst_sent,omitempty"`
	RSTReceived     string    `json:"rst_rcvd,omitempty"`
	OperatorLocator string    `json:"my_locator,omitempty"`
	Locator         string    `json:"locator,omitempty"`
	PropMode        string    `json:"prop_mode,omitempty"`
	SatName         string    `json:"sat_name,omitempty"`
	Name            string    `json:"name,omitempty"`
	QTH             string    `json:"qth,omitempty"`
	Comment         string    `json:"comment,omitempty"`
	Geo             Geo       `json:"geo"`
}

// Date returns the contact date as YYYY-MM-DD.
func (r Record) Date() string {
	return r.Start.UTC().Format(DateLayout)
}

// TimeOn returns the contact start time as HH:MM:SS.
func (r Record) TimeOn() string {
	return r.Start.UTC().Format(TimeLayout)
}

// Key returns the natural key used for duplicate detection.
func (r Record) Key() DuplicateKey {
	return DuplicateKey{
		OwnerID:      r.OwnerID,
		OperatorCall: r.OperatorCall,
		Call:         r.Call,
		Date:         r.Date(),
		Time:         r.TimeOn(),
		Band:         r.Band,
		Mode:         r.Mode,
	}
}

// DuplicateKey identifies a contact for uniqueness purposes. The same tuple is
// enforced by the persistent sinks.
type DuplicateKey struct {
	OwnerID      int64
	OperatorCall string
	Call         string
	Date         string
	Time         string
	Band         string
	Mode         string
}

// String renders the key as a stable pipe-separated string. Separators and
// backslashes inside fields are escaped, so distinct keys never render alike.
func (k DuplicateKey) String() string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(strconv.FormatInt(k.OwnerID, 10))
	for _, part := range [...]string{k.OperatorCall, k.Call, k.Date, k.Time, k.Band, k.Mode} {
		b.WriteByte('|')
		b.WriteString(strutil.EscapeSeparator(part, '|'))
	}
	return b.String()
}

// Hash returns a 64-bit xxh3 digest of the key.
func (k DuplicateKey) Hash() uint64 {
	return xxh3.HashString(k.String())
}
