package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsolog/geo"
	"qsolog/ingest"
)

type importOptions struct {
	tuning
	format      string
	metricsFile string
}

func newImportCmd(a *app) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import ADIF files into the configured store",
		Long: `Import reads each ADIF file, normalizes and geolocates every record and
commits new contacts to the store. Records already stored for the owner are
skipped, so importing the same file twice is harmless.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), a, opts, args)
		},
	}
	opts.tuning.register(cmd)
	cmd.Flags().StringVar(&opts.format, "format", formatAuto, "output format: auto, human or json")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write ingest metrics in Prometheus text format to this file")
	return cmd
}

func runImport(ctx context.Context, a *app, opts *importOptions, paths []string) error {
	format, err := resolveFormat(opts.format, a.stdout)
	if err != nil {
		return err
	}
	owner, err := a.owner()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, a.cfg.Store, a.clock, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	resolver := a.resolver()
	if err := geo.RegisterMetrics(reg, resolver); err != nil {
		return err
	}
	engine := ingest.New(resolver, store, a.engineOptions(opts.tuning, ingest.NewMetrics(reg)))

	reports := make([]fileReport, 0, len(paths))
	var failed error
	for _, path := range paths {
		report, err := engine.IngestFile(ctx, path, owner)
		fr := fileReport{Path: path, Report: report}
		if err != nil {
			fr.Error = err.Error()
			failed = errors.Join(failed, err)
		}
		reports = append(reports, fr)
		if ctx.Err() != nil {
			break
		}
	}

	dat, plist := resolver.Lookups()
	a.logger.Debug("prefix lookups",
		zap.Uint64("dat_lookups", dat.TotalLookups), zap.Uint64("dat_cache_hits", dat.CacheHits),
		zap.Uint64("plist_lookups", plist.TotalLookups), zap.Uint64("plist_cache_hits", plist.CacheHits))

	total, countErr := store.Count(ctx, owner.ID)
	if countErr != nil && ctx.Err() == nil {
		a.logger.Warn("count stored records", zap.Error(countErr))
	}

	switch format {
	case formatJSON:
		out := struct {
			Files  []fileReport `json:"files"`
			Stored int          `json:"stored"`
		}{Files: reports, Stored: total}
		if err := writeJSON(a.stdout, out); err != nil {
			return err
		}
	default:
		for _, fr := range reports {
			printReport(a.stdout, fr.Path, fr.Report)
			if fr.Error != "" {
				fmt.Fprintf(a.stdout, "  failed: %s\n", fr.Error)
			}
		}
		fmt.Fprintf(a.stdout, "%s contacts stored for owner %d\n", humanize.Comma(int64(total)), owner.ID)
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return failed
}
