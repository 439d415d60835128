package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qsolog/config"
	"qsolog/ingest"
	"qsolog/logbook"
	"qsolog/qso"
	"qsolog/qsostore"
)

// recordStore is what the CLI needs from a sink beyond ingest.Sink.
type recordStore interface {
	ingest.Sink
	Count(ctx context.Context, ownerID int64) (int, error)
	Records(ctx context.Context, ownerID int64) ([]qso.Record, error)
	Close() error
}

func openStore(ctx context.Context, cfg config.StoreConfig, clock clockwork.Clock, logger *zap.Logger) (recordStore, error) {
	switch cfg.Driver {
	case config.DriverPebble:
		store, err := qsostore.Open(cfg.Path, qsostore.Options{CacheSizeBytes: cfg.CacheSizeMB << 20})
		if err != nil {
			return nil, err
		}
		logger.Debug("pebble store opened", zap.String("path", cfg.Path))
		return store, nil
	case config.DriverSQLite:
		store, err := logbook.Open(ctx, cfg.Path, logbook.Options{
			BusyTimeout:      time.Duration(cfg.BusyTimeoutMS) * time.Millisecond,
			PreflightTimeout: time.Duration(cfg.PreflightTimeoutMS) * time.Millisecond,
			Logger:           logger,
			Clock:            clock,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
