package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"qsolog/adif"
	"qsolog/ingest"
)

func newConvertCmd(a *app) *cobra.Command {
	var t tuning
	cmd := &cobra.Command{
		Use:   "convert INPUT [OUTPUT|-]",
		Short: "Normalize and geolocate an ADIF file without storing it",
		Long: `Convert rewrites INPUT as normalized ADIF with country, zone and region
fields filled in. Duplicates are dropped within the file only. Output goes to
stdout when OUTPUT is omitted or "-"; the summary goes to stderr.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := "-"
			if len(args) == 2 {
				out = args[1]
			}
			return runConvert(cmd.Context(), a, t, args[0], out)
		},
	}
	t.register(cmd)
	return cmd
}

func runConvert(ctx context.Context, a *app, t tuning, input, output string) (err error) {
	owner, err := a.owner()
	if err != nil {
		return err
	}
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

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

	engine := ingest.New(a.resolver(), nil, a.engineOptions(t, nil))
	report, err := engine.Convert(ctx, in, adif.NewWriter(dst, adif.WithClock(a.clock)), owner)
	printReport(a.stderr, input, report)
	if err != nil {
		return fmt.Errorf("convert %s: %w", input, err)
	}
	return nil
}
