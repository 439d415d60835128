package region

import (
	"regexp"

	"qsolog/strutil"
)

// DefaultPrimaryPrefixes are the primary prefixes of the entities that carry
// oblast codes.
var DefaultPrimaryPrefixes = []string{"UA", "UA2", "UA9"}

var (
	standardPattern  = regexp.MustCompile(`^[A-Z]{2}(\d)([A-Z])`)
	shorthandPattern = regexp.MustCompile(`^R(\d)([A-Z])`)
)

// Resolver assigns region codes to callsigns of allow-listed entities. It is
// immutable and safe for concurrent use.
type Resolver struct {
	exceptions Exceptions
	allowed    map[string]struct{}
}

// NewResolver builds a Resolver. A nil or empty primaryPrefixes uses
// DefaultPrimaryPrefixes.
func NewResolver(exceptions Exceptions, primaryPrefixes []string) *Resolver {
	if len(primaryPrefixes) == 0 {
		primaryPrefixes = DefaultPrimaryPrefixes
	}
	allowed := make(map[string]struct{}, len(primaryPrefixes))
	for _, p := range primaryPrefixes {
		if p = strutil.NormalizeUpper(p); p != "" {
			allowed[p] = struct{}{}
		}
	}
	ex := make(Exceptions, len(exceptions))
	for k, v := range exceptions {
		ex[strutil.NormalizeUpper(k)] = v
	}
	return &Resolver{exceptions: ex, allowed: allowed}
}

// Applies reports whether primaryPrefix is on the allow-list.
func (r *Resolver) Applies(primaryPrefix string) bool {
	if r == nil {
		return false
	}
	_, ok := r.allowed[strutil.NormalizeUpper(primaryPrefix)]
	return ok
}

// Region returns the region code for call when primaryPrefix is allow-listed.
// The exceptions table wins outright; otherwise the call-area digit and the
// letter after it are mapped through the district table.
func (r *Resolver) Region(call, primaryPrefix string) (string, bool) {
	if !r.Applies(primaryPrefix) {
		return "", false
	}
	return r.regionFor(strutil.NormalizeUpper(call))
}

func (r *Resolver) regionFor(call string) (string, bool) {
	if call == "" {
		return "", false
	}
	if code, ok := r.exceptions[call]; ok {
		return code, true
	}
	m := standardPattern.FindStringSubmatch(call)
	if m == nil {
		m = shorthandPattern.FindStringSubmatch(call)
	}
	if m == nil {
		return "", false
	}
	return Lookup(m[1][0], m[2][0])
}
