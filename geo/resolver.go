// Package geo resolves callsigns to country, zones, continent and region by
// combining the cty.dat and cty.plist databases with the region resolver.
package geo

import (
	"qsolog/cty"
	"qsolog/qso"
	"qsolog/region"
)

// Resolver is an immutable lookup service. Any of its parts may be nil, in
// which case the matching attributes stay empty.
type Resolver struct {
	dat     *cty.Database
	plist   *cty.Database
	regions *region.Resolver
}

// NewResolver combines the prefix databases and the region resolver.
func NewResolver(dat, plist *cty.Database, regions *region.Resolver) *Resolver {
	return &Resolver{dat: dat, plist: plist, regions: regions}
}

// Ready reports whether at least one prefix database is loaded.
func (r *Resolver) Ready() bool {
	return r != nil && (r.dat != nil || r.plist != nil)
}

func (r *Resolver) datDB() *cty.Database {
	if r == nil {
		return nil
	}
	return r.dat
}

func (r *Resolver) plistDB() *cty.Database {
	if r == nil {
		return nil
	}
	return r.plist
}

// Lookups returns the lookup counters of the cty.dat and cty.plist databases.
func (r *Resolver) Lookups() (dat, plist cty.LookupMetrics) {
	return r.datDB().Metrics(), r.plistDB().Metrics()
}

// Entities lists the country entities of cty.dat, or of cty.plist when only
// that database is loaded.
func (r *Resolver) Entities() []cty.Entry {
	if entries := r.datDB().Entries(); len(entries) > 0 {
		return entries
	}
	return r.plistDB().Entries()
}

// Resolve returns the geolocation for call.
// Purpose: Attach country, zones, DXCC and region to a normalized callsign.
// Key aspects: Never fails; an unmatched call yields the zero Geo. Country,
// zones and continent come from cty.dat; the primary prefix and DXCC entity
// number come from cty.plist when it matches. Each database falls back to the
// other when only one of them knows the call. Safe for concurrent use.
// Upstream: ingest workers, the lookup command.
// Downstream: cty.Database.LookupCallsign, region.Resolver.
func (r *Resolver) Resolve(call string) qso.Geo {
	var g qso.Geo
	if r == nil {
		return g
	}
	call = qso.NormalizeCallsign(call)
	if call == "" {
		return g
	}

	datInfo, datOK := r.dat.LookupCallsignPortable(call)
	plInfo, plOK := r.plist.LookupCallsignPortable(call)
	switch {
	case datOK:
		g.Country = datInfo.Country
		g.CQZone = datInfo.CQZone
		g.ITUZone = datInfo.ITUZone
		g.Continent = datInfo.Continent
		g.PrimaryPrefix = datInfo.Prefix
	case plOK:
		g.Country = plInfo.Country
		g.CQZone = plInfo.CQZone
		g.ITUZone = plInfo.ITUZone
		g.Continent = plInfo.Continent
	default:
		return g
	}
	if plOK {
		if plInfo.Prefix != "" {
			g.PrimaryPrefix = plInfo.Prefix
		}
		g.DXCC = plInfo.ADIF
	}

	home := homeCall(call)
	for _, primary := range primaryCandidates(datInfo, plInfo) {
		if code, ok := r.regions.Region(home, primary); ok {
			g.Region = code
			break
		}
	}
	return g
}

// Location returns the reference coordinates and 4-character locator of the
// entity call resolves to. Both databases store longitude east-positive.
func (r *Resolver) Location(call string) (lat, lon float64, grid string, ok bool) {
	if r == nil {
		return 0, 0, "", false
	}
	call = qso.NormalizeCallsign(call)
	info, found := r.dat.LookupCallsignPortable(call)
	if !found {
		info, found = r.plist.LookupCallsignPortable(call)
	}
	if !found {
		return 0, 0, "", false
	}
	grid, _ = cty.Grid4FromLatLon(info.Latitude, info.Longitude)
	return info.Latitude, info.Longitude, grid, true
}

// homeCall strips portable modifiers so exceptions keyed on the bare call
// still match.
func homeCall(call string) string {
	candidates := cty.PortableCandidates(call)
	if len(candidates) == 0 {
		return call
	}
	return candidates[len(candidates)-1]
}

func primaryCandidates(infos ...*cty.PrefixInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		if info != nil && info.Prefix != "" {
			out = append(out, info.Prefix)
		}
	}
	return out
}
