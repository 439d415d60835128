package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qsolog/geo"
	"qsolog/qso"
)

// lookupResult is one resolved callsign.
type lookupResult struct {
	Call      string  `json:"call"`
	Found     bool    `json:"found"`
	Geo       qso.Geo `json:"geo"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lon,omitempty"`
	Grid      string  `json:"grid,omitempty"`
}

func newLookupCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "lookup [CALL...]",
		Short: "Resolve callsigns to country, zones and region",
		Long: `Lookup prints the geolocation of each CALL. Without arguments it reads
callsigns from stdin, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := a.resolver()
			if len(args) == 0 {
				return lookupInteractive(a.stdin, a.stdout, resolver)
			}
			format, err := resolveFormat(format, a.stdout)
			if err != nil {
				return err
			}
			results := make([]lookupResult, 0, len(args))
			for _, call := range args {
				results = append(results, lookup(resolver, call))
			}
			if format == formatJSON {
				return writeJSON(a.stdout, results)
			}
			return printLookups(a.stdout, results)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatAuto, "output format: auto, human or json")
	return cmd
}

func lookup(r *geo.Resolver, call string) lookupResult {
	res := lookupResult{Call: qso.NormalizeCallsign(call)}
	res.Geo = r.Resolve(res.Call)
	lat, lon, grid, ok := r.Location(res.Call)
	if ok {
		res.Found = true
		res.Latitude, res.Longitude, res.Grid = lat, lon, grid
	}
	return res
}

func printLookups(w io.Writer, results []lookupResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CALL\tCOUNTRY\tPREFIX\tDXCC\tCQ\tITU\tCONT\tREGION\tGRID")
	for _, r := range results {
		if !r.Found {
			fmt.Fprintf(tw, "%s\t-\t\t\t\t\t\t\t\n", r.Call)
			continue
		}
		g := r.Geo
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.Call, g.Country, g.PrimaryPrefix, g.DXCC, g.CQZone, g.ITUZone, g.Continent, g.Region, r.Grid)
	}
	return tw.Flush()
}

func lookupInteractive(in io.Reader, out io.Writer, r *geo.Resolver) error {
	interactive := isTerminal(out)
	if interactive {
		fmt.Fprintln(out, "enter callsigns (Ctrl+D to quit)")
	}
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		call := strings.TrimSpace(scanner.Text())
		if call == "" {
			continue
		}
		res := lookup(r, call)
		if !res.Found {
			fmt.Fprintf(out, "%s -> no matching prefix\n", res.Call)
			continue
		}
		g := res.Geo
		fmt.Fprintf(out, "%s -> prefix=%s, country=%s, CQ=%d, ITU=%d, region=%s, lat=%.2f, lon=%.2f, grid=%s\n",
			res.Call, g.PrimaryPrefix, g.Country, g.CQZone, g.ITUZone, g.Region, res.Latitude, res.Longitude, res.Grid)
	}
	return scanner.Err()
}
