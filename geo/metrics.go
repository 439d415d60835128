package geo

import (
	"github.com/prometheus/client_golang/prometheus"

	"qsolog/cty"
)

// RegisterMetrics exposes the lookup counters of both prefix databases on reg,
// labelled db="dat" and db="plist". Databases that failed to load report zero.
func RegisterMetrics(reg prometheus.Registerer, r *Resolver) error {
	for _, src := range []struct {
		name string
		db   func() *cty.Database
	}{
		{"dat", func() *cty.Database { return r.datDB() }},
		{"plist", func() *cty.Database { return r.plistDB() }},
	} {
		labels := prometheus.Labels{"db": src.name}
		db := src.db
		collectors := []prometheus.Collector{
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "qsolog", Subsystem: "geo", Name: "lookups_total",
				Help: "Callsign lookups against the prefix database.", ConstLabels: labels,
			}, func() float64 { return float64(db().Metrics().TotalLookups) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "qsolog", Subsystem: "geo", Name: "cache_hits_total",
				Help: "Lookups answered from the lookup cache.", ConstLabels: labels,
			}, func() float64 { return float64(db().Metrics().CacheHits) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "qsolog", Subsystem: "geo", Name: "matched_total",
				Help: "Lookups that matched a prefix or exact call.", ConstLabels: labels,
			}, func() float64 { return float64(db().Metrics().Matched) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "qsolog", Subsystem: "geo", Name: "cache_entries",
				Help: "Entries held in the lookup cache.", ConstLabels: labels,
			}, func() float64 { return float64(db().Metrics().CacheEntries) }),
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return err
			}
		}
	}
	return nil
}
