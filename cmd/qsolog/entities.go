package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qsolog/cty"
)

type entityRow struct {
	Country   string  `json:"country"`
	Prefix    string  `json:"prefix"`
	DXCC      int     `json:"dxcc,omitempty"`
	CQZone    int     `json:"cq"`
	ITUZone   int     `json:"itu"`
	Continent string  `json:"continent"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Grid      string  `json:"grid,omitempty"`
}

func newEntitiesCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List the country entities of the loaded prefix database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(format, a.stdout)
			if err != nil {
				return err
			}
			entries := a.resolver().Entities()
			if len(entries) == 0 {
				return fmt.Errorf("no prefix database loaded; run qsolog fetch first")
			}
			rows := make([]entityRow, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, newEntityRow(e))
			}
			if format == formatJSON {
				return writeJSON(a.stdout, rows)
			}
			return printEntities(a.stdout, rows)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatAuto, "output format: auto, human or json")
	return cmd
}

func newEntityRow(e cty.Entry) entityRow {
	return entityRow{
		Country:   e.Country,
		Prefix:    e.PrimaryPrefix,
		DXCC:      e.ADIF,
		CQZone:    e.CQZone,
		ITUZone:   e.ITUZone,
		Continent: e.Continent,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Grid:      e.Grid(),
	}
}

func printEntities(w io.Writer, rows []entityRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PREFIX\tCOUNTRY\tDXCC\tCQ\tITU\tCONT\tGRID")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Prefix, r.Country, r.DXCC, r.CQZone, r.ITUZone, r.Continent, r.Grid)
	}
	return tw.Flush()
}
