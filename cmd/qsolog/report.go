package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"qsolog/ingest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	formatAuto  = "auto"
	formatHuman = "human"
	formatJSON  = "json"
)

// maxPrintedErrors caps the per-record errors shown in human output; the JSON
// form carries the full bounded list.
const maxPrintedErrors = 5

// fileReport is one input file's result as printed by import.
type fileReport struct {
	Path string `json:"path"`
	ingest.Report
	Error string `json:"error,omitempty"`
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveFormat maps "auto" to human output on a terminal and JSON otherwise.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case "", formatAuto:
		if isTerminal(w) {
			return formatHuman, nil
		}
		return formatJSON, nil
	case formatHuman, formatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q (want auto, human or json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func printReport(w io.Writer, label string, r ingest.Report) {
	fmt.Fprintf(w, "%s: %s inserted, %s skipped, %s errored in %s\n",
		label,
		humanize.Comma(int64(r.Inserted)),
		humanize.Comma(int64(r.Skipped)),
		humanize.Comma(int64(r.Errored)),
		r.Duration().Round(time.Millisecond))

	reasons := make([]string, 0, len(r.SkipReasons))
	for reason := range r.SkipReasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  skipped %-13s %s\n", reason, humanize.Comma(int64(r.SkipReasons[ingest.SkipReason(reason)])))
	}
	for i, e := range r.Errors {
		if i == maxPrintedErrors {
			fmt.Fprintf(w, "  ... %d more errors\n", r.Errored-maxPrintedErrors)
			break
		}
		fmt.Fprintf(w, "  record %d %s: %s\n", e.Index, e.Call, e.Detail)
	}
}
