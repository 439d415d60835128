package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsolog/cty"
	"qsolog/download"
)

func newFetchCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Refresh cty.dat and cty.plist from their configured URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), a, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "download even when the server reports no change")
	return cmd
}

func runFetch(ctx context.Context, a *app, force bool) error {
	cfg := a.cfg.CTY
	targets := []struct {
		name     string
		url      string
		dest     string
		validate func(string) error
	}{
		{"cty.dat", cfg.DatURL, cfg.DatPath, func(path string) error {
			db, err := cty.LoadDat(path)
			if err == nil && db.SkippedEntities() > 0 {
				a.logger.Warn("downloaded cty.dat has malformed entities",
					zap.String("path", path), zap.Int("skipped", db.SkippedEntities()))
			}
			return err
		}},
		{"cty.plist", cfg.PlistURL, cfg.PlistPath, func(path string) error {
			_, err := cty.LoadPlist(path)
			return err
		}},
	}

	var failed error
	for _, t := range targets {
		if t.url == "" || t.dest == "" {
			fmt.Fprintf(a.stdout, "%s: not configured\n", t.name)
			continue
		}
		res, err := download.Download(ctx, download.Request{
			URL:         t.url,
			Destination: t.dest,
			Timeout:     cfg.DownloadTimeout(),
			Force:       force,
			UserAgent:   "qsolog",
			Validate:    t.validate,
			Logger:      a.logger,
		})
		if err != nil {
			failed = errors.Join(failed, fmt.Errorf("%s: %w", t.name, err))
			fmt.Fprintf(a.stdout, "%s: failed: %v\n", t.name, err)
			continue
		}
		if res.Status == download.StatusUpdated {
			fmt.Fprintf(a.stdout, "%s: %s (%s)\n", t.name, res.Status, humanize.Bytes(uint64(res.Bytes)))
		} else {
			fmt.Fprintf(a.stdout, "%s: %s\n", t.name, res.Status)
		}
	}
	return failed
}
