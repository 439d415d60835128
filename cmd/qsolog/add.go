package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsolog/ingest"
	"qsolog/qso"
)

func newAddCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "add TAG=VALUE...",
		Short: "Add a single contact from ADIF field values",
		Example: `  qsolog add call=GM0MUW qso_date=20260103 time_on=1119 freq=10489.9 mode=SSB`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), a, format, args)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatAuto, "output format: auto, human or json")
	return cmd
}

func runAdd(ctx context.Context, a *app, format string, args []string) error {
	format, err := resolveFormat(format, a.stdout)
	if err != nil {
		return err
	}
	fields, err := parseFieldArgs(args)
	if err != nil {
		return err
	}
	if err := checkFieldTags(fields); err != nil {
		return err
	}
	if band, ok := fields["band"]; ok && !qso.IsKnownBand(band) {
		a.logger.Warn("band is not in the band table, storing it as given", zap.String("band", band))
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

	engine := ingest.New(a.resolver(), store, a.engineOptions(tuning{}, nil))
	outcome, err := engine.IngestFields(ctx, fields, owner)
	if err != nil {
		return err
	}

	if format == formatJSON {
		return writeJSON(a.stdout, struct {
			Outcome string            `json:"outcome"`
			Reason  ingest.SkipReason `json:"reason,omitempty"`
			Detail  string            `json:"detail,omitempty"`
		}{outcome.Kind.String(), outcome.Reason, outcome.Detail})
	}
	switch outcome.Kind {
	case ingest.Inserted:
		fmt.Fprintln(a.stdout, "inserted")
	case ingest.Skipped:
		fmt.Fprintf(a.stdout, "skipped (%s): %s\n", outcome.Reason, outcome.Detail)
	default:
		fmt.Fprintf(a.stdout, "%s: %s\n", outcome.Kind, outcome.Detail)
	}
	if outcome.Kind == ingest.Errored {
		return fmt.Errorf("record not stored: %s", outcome.Detail)
	}
	return nil
}

// checkFieldTags rejects tags the normalizer would ignore, which on the
// command line are almost always typos.
func checkFieldTags(fields map[string]string) error {
	known := qso.Tags()
	for tag := range fields {
		if !slices.Contains(known, tag) {
			return fmt.Errorf("unknown field %q (known: %s)", tag, strings.Join(known, ", "))
		}
	}
	return nil
}
