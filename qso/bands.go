package qso

import "qsolog/strutil"

// BandInfo describes an amateur radio band by name and frequency range in MHz.
type BandInfo struct {
	Name string  // canonical ADIF band name (e.g., "20m", "70cm")
	Min  float64 // lower edge in MHz, inclusive
	Max  float64 // upper edge in MHz, inclusive
}

// BandUnknown is reported when a frequency falls outside every tracked band.
const BandUnknown = "unknown"

// bandTable follows the ADIF band enumeration. 13cm spans 2300-2450 MHz.
var bandTable = []BandInfo{
	{Name: "2190m", Min: 0.1357, Max: 0.1378},
	{Name: "630m", Min: 0.472, Max: 0.479},
	{Name: "560m", Min: 0.501, Max: 0.504},
	{Name: "160m", Min: 1.8, Max: 2.0},
	{Name: "80m", Min: 3.5, Max: 4.0},
	{Name: "60m", Min: 5.06, Max: 5.45},
	{Name: "40m", Min: 7.0, Max: 7.3},
	{Name: "30m", Min: 10.1, Max: 10.15},
	{Name: "20m", Min: 14.0, Max: 14.35},
	{Name: "17m", Min: 18.068, Max: 18.168},
	{Name: "15m", Min: 21.0, Max: 21.45},
	{Name: "12m", Min: 24.89, Max: 24.99},
	{Name: "10m", Min: 28.0, Max: 29.7},
	{Name: "8m", Min: 40.0, Max: 45.0},
	{Name: "6m", Min: 50.0, Max: 54.0},
	{Name: "5m", Min: 54.000001, Max: 69.9},
	{Name: "4m", Min: 70.0, Max: 71.0},
	{Name: "2m", Min: 144.0, Max: 148.0},
	{Name: "1.25m", Min: 222.0, Max: 225.0},
	{Name: "70cm", Min: 420.0, Max: 450.0},
	{Name: "33cm", Min: 902.0, Max: 928.0},
	{Name: "23cm", Min: 1240.0, Max: 1300.0},
	{Name: "13cm", Min: 2300.0, Max: 2450.0},
	{Name: "9cm", Min: 3300.0, Max: 3500.0},
	{Name: "6cm", Min: 5650.0, Max: 5925.0},
	{Name: "3cm", Min: 10000.0, Max: 10500.0},
	{Name: "1.25cm", Min: 24000.0, Max: 24250.0},
	{Name: "6mm", Min: 47000.0, Max: 47200.0},
	{Name: "4mm", Min: 75500.0, Max: 81000.0},
	{Name: "2.5mm", Min: 119980.0, Max: 123000.0},
	{Name: "2mm", Min: 134000.0, Max: 149000.0},
	{Name: "1mm", Min: 241000.0, Max: 250000.0},
}

var bandLookup = func() map[string]BandInfo {
	m := make(map[string]BandInfo, len(bandTable))
	for _, entry := range bandTable {
		m[entry.Name] = entry
	}
	return m
}()

// BandForFrequency maps a frequency in MHz to its band name, or BandUnknown
// when no allocation covers it.
func BandForFrequency(mhz float64) string {
	if mhz <= 0 {
		return BandUnknown
	}
	for _, entry := range bandTable {
		if mhz >= entry.Min && mhz <= entry.Max {
			return entry.Name
		}
	}
	return BandUnknown
}

// NormalizeBand case-folds an explicit band label. The label is otherwise kept
// verbatim so nonstandard names from other loggers survive the import.
func NormalizeBand(label string) string {
	return strutil.NormalizeLower(label)
}

// IsKnownBand reports whether label names a band in the table.
func IsKnownBand(label string) bool {
	_, ok := bandLookup[NormalizeBand(label)]
	return ok
}

// Bands returns a copy of the band table in ascending frequency order.
func Bands() []BandInfo {
	out := make([]BandInfo, len(bandTable))
	copy(out, bandTable)
	return out
}
