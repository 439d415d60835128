package geo

import (
	"errors"
	"os"

	"go.uber.org/zap"

	"qsolog/config"
	"qsolog/cty"
	"qsolog/region"
)

// LoadReport describes which sources were loaded.
type LoadReport struct {
	DatKeys        int
	DatSkipped     int
	PlistKeys      int
	Exceptions     int
	MalformedLines int
}

// Load builds a Resolver from the configured files. Missing or unreadable
// sources are logged at warn level and left out; a resolver without any
// prefix database resolves nothing.
func Load(ctyCfg config.CTYConfig, regionCfg config.RegionConfig, logger *zap.Logger) (*Resolver, LoadReport) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var report LoadReport
	opts := []cty.Option{cty.WithCacheCapacity(ctyCfg.CacheSize)}

	var dat *cty.Database
	if ctyCfg.DatPath != "" {
		db, err := cty.LoadDat(ctyCfg.DatPath, opts...)
		if err != nil {
			logger.Warn("cty.dat unavailable, country and zone lookups disabled",
				zap.String("path", ctyCfg.DatPath), zap.Error(err))
		} else {
			dat = db
			report.DatKeys = db.Len()
			report.DatSkipped = db.SkippedEntities()
			if report.DatSkipped > 0 {
				logger.Warn("skipped malformed cty.dat entities",
					zap.String("path", ctyCfg.DatPath), zap.Int("skipped", report.DatSkipped))
			}
		}
	}

	var plist *cty.Database
	if ctyCfg.PlistPath != "" {
		db, err := cty.LoadPlist(ctyCfg.PlistPath, opts...)
		if err != nil {
			logger.Warn("cty.plist unavailable, DXCC lookups disabled",
				zap.String("path", ctyCfg.PlistPath), zap.Error(err))
		} else {
			plist = db
			report.PlistKeys = db.Len()
		}
	}

	var exceptions region.Exceptions
	if regionCfg.ExceptionsPath != "" {
		ex, stats, err := region.LoadExceptions(regionCfg.ExceptionsPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("region exceptions file not found, using district table only",
				zap.String("path", regionCfg.ExceptionsPath))
		case err != nil:
			logger.Warn("region exceptions unavailable", zap.String("path", regionCfg.ExceptionsPath), zap.Error(err))
		default:
			exceptions = ex
			report.Exceptions = stats.Loaded
			report.MalformedLines = stats.Malformed
			if stats.Malformed > 0 {
				logger.Warn("skipped malformed region exception lines",
					zap.String("path", regionCfg.ExceptionsPath), zap.Int("malformed", stats.Malformed))
			}
		}
	}

	if dat == nil && plist == nil {
		logger.Warn("no prefix database loaded, every callsign will be unresolved")
	}
	logger.Info("geolocation sources loaded",
		zap.Int("dat_keys", report.DatKeys),
		zap.Int("plist_keys", report.PlistKeys),
		zap.Int("region_exceptions", report.Exceptions))
	return NewResolver(dat, plist, region.NewResolver(exceptions, regionCfg.Prefixes)), report
}
