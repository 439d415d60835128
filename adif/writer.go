package adif

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"qsolog/qso"
)

const (
	// Version is the ADIF_VER written to exported headers.
	Version = "3.1.4"
	// ProgramID is the PROGRAMID written to exported headers.
	ProgramID = "qsolog"
)

// Writer serializes records as ADIF text.
type Writer struct {
	w             *bufio.Writer
	clock         clockwork.Clock
	headerWritten bool
	records       int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock sets the clock that stamps a header written implicitly by the
// first record.
func WithClock(clock clockwork.Clock) WriterOption {
	return func(w *Writer) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// NewWriter returns a Writer that buffers output to w. Call Flush when done.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	out := &Writer{w: bufio.NewWriter(w), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// FormatField renders <TAG:LEN>VALUE where LEN is the byte length of value.
func FormatField(tag, value string) string {
	return "<" + strings.ToUpper(tag) + ":" + strconv.Itoa(len(value)) + ">" + value
}

// WriteHeader emits the header block. It is a no-op after the first call.
func (w *Writer) WriteHeader(created time.Time) error {
	if w.headerWritten {
		return nil
	}
	w.headerWritten = true
	fields := []Field{
		{Tag: "adif_ver", Value: Version},
		{Tag: "programid", Value: ProgramID},
		{Tag: "created_timestamp", Value: created.UTC().Format("20060102 150405")},
	}
	if _, err := w.w.WriteString("ADIF export\n"); err != nil {
		return fmt.Errorf("adif: write header: %w", err)
	}
	for _, f := range fields {
		if _, err := w.w.WriteString(FormatField(f.Tag, f.Value) + "\n"); err != nil {
			return fmt.Errorf("adif: write header: %w", err)
		}
	}
	if _, err := w.w.WriteString("<EOH>\n"); err != nil {
		return fmt.Errorf("adif: write header: %w", err)
	}
	return nil
}

// WriteFields emits one record from raw fields, skipping empty values.
func (w *Writer) WriteFields(fields []Field) error {
	if !w.headerWritten {
		if err := w.WriteHeader(w.clock.Now()); err != nil {
			return err
		}
	}
	first := true
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if !first {
			if err := w.w.WriteByte(' '); err != nil {
				return fmt.Errorf("adif: write record: %w", err)
			}
		}
		first = false
		if _, err := w.w.WriteString(FormatField(f.Tag, f.Value)); err != nil {
			return fmt.Errorf("adif: write record: %w", err)
		}
	}
	if _, err := w.w.WriteString(" <EOR>\n"); err != nil {
		return fmt.Errorf("adif: write record: %w", err)
	}
	w.records++
	return nil
}

// WriteRecord emits rec, writing a header first if none was written yet.
func (w *Writer) WriteRecord(rec qso.Record) error {
	return w.WriteFields(RecordFields(rec))
}

// Records returns how many records have been written.
func (w *Writer) Records() int {
	return w.records
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("adif: flush: %w", err)
	}
	return nil
}

// RecordFields converts rec into the ordered field list used for export.
// Unknown values (zero frequency, unknown band, unresolved zones) are omitted.
func RecordFields(rec qso.Record) []Field {
	fields := []Field{
		{Tag: "call", Value: rec.Call},
		{Tag: "station_callsign", Value: rec.OperatorCall},
		{Tag: "qso_date", Value: rec.Start.UTC().Format("20060102")},
		{Tag: "time_on", Value: rec.Start.UTC().Format("150405")},
	}
	if rec.FrequencyMHz > 0 {
		fields = append(fields, Field{Tag: "freq", Value: strconv.FormatFloat(rec.FrequencyMHz, 'f', 6, 64)})
	}
	if rec.Band != qso.BandUnknown {
		fields = append(fields, Field{Tag: "band", Value: rec.Band})
	}
	fields = append(fields,
		Field{Tag: "mode", Value: rec.Mode},
		Field{Tag: "submode", Value: rec.Submode},
		Field{Tag: "rst_sent", Value: rec.RSTSent},
		Field{Tag: "rst_rcvd", Value: rec.RSTReceived},
		Field{Tag: "my_gridsquare", Value: rec.OperatorLocator},
		Field{Tag: "gridsquare", Value: rec.Locator},
		Field{Tag: "prop_mode", Value: rec.PropMode},
		Field{Tag: "sat_name", Value: rec.SatName},
		Field{Tag: "name", Value: rec.Name},
		Field{Tag: "qth", Value: rec.QTH},
		Field{Tag: "comment", Value: rec.Comment},
		Field{Tag: "country", Value: rec.Geo.Country},
		Field{Tag: "dxcc", Value: positive(rec.Geo.DXCC)},
		Field{Tag: "cqz", Value: positive(rec.Geo.CQZone)},
		Field{Tag: "ituz", Value: positive(rec.Geo.ITUZone)},
		Field{Tag: "cont", Value: rec.Geo.Continent},
		Field{Tag: "state", Value: rec.Geo.Region},
	)
	return fields
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
