package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsolog/adif"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [OUTPUT|-]",
		Short: "Write the owner's stored contacts as ADIF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := "-"
			if len(args) == 1 {
				out = args[0]
			}
			return runExport(cmd.Context(), a, out)
		},
	}
}

func runExport(ctx context.Context, a *app, output string) (err error) {
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

	records, err := store.Records(ctx, owner.ID)
	if err != nil {
		return err
	}

	var dst io.Writer = a.stdout
	if output != "-" {
		f, createErr := os.Create(output)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		dst = f
	}

	w := adif.NewWriter(dst, adif.WithClock(a.clock))
	if err := w.WriteHeader(a.clock.Now()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	a.logger.Info("export complete", zap.Int("records", w.Records()), zap.String("output", output))
	return nil
}
