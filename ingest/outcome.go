package ingest

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind classifies what happened to one input record.
type OutcomeKind int

const (
	Inserted OutcomeKind = iota + 1
	Skipped
	Errored
)

func (k OutcomeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// SkipReason explains a Skipped outcome.
type SkipReason string

const (
	ReasonMalformed   SkipReason = "malformed"
	ReasonMissingCall SkipReason = "missing_call"
	ReasonDuplicate   SkipReason = "duplicate"
)

// Outcome is the per-record result. Reason is set only for Skipped; Detail
// carries a human-readable cause for Skipped and Errored.
type Outcome struct {
	Kind   OutcomeKind
	Reason SkipReason
	Detail string
}

func inserted() Outcome {
	return Outcome{Kind: Inserted}
}

func skipped(reason SkipReason, detail string) Outcome {
	return Outcome{Kind: Skipped, Reason: reason, Detail: detail}
}

func errored(detail string) Outcome {
	return Outcome{Kind: Errored, Detail: detail}
}

// maxRecordErrors bounds Report.Errors.
const maxRecordErrors = 100

// RecordError describes one errored record. Index is the 1-based position of
// the record in the input.
type RecordError struct {
	Index  int    `json:"index"`
	Call   string `json:"call,omitempty"`
	Detail string `json:"detail"`
}

// Report aggregates the outcomes of one run. It is built fresh per run and
// never persisted.
type Report struct {
	RunID       uuid.UUID          `json:"run_id"`
	Inserted    int                `json:"inserted"`
	Skipped     int                `json:"skipped"`
	Errored     int                `json:"errored"`
	SkipReasons map[SkipReason]int `json:"skip_reasons,omitempty"`
	Errors      []RecordError      `json:"errors,omitempty"`
	Started     time.Time          `json:"started"`
	Finished    time.Time          `json:"finished"`
}

// Total returns the number of records with a recorded outcome.
func (r Report) Total() int {
	return r.Inserted + r.Skipped + r.Errored
}

// Duration returns the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r *Report) add(index int, call string, o Outcome) {
	switch o.Kind {
	case Inserted:
		r.Inserted++
	case Skipped:
		r.Skipped++
		if r.SkipReasons == nil {
			r.SkipReasons = make(map[SkipReason]int)
		}
		r.SkipReasons[o.Reason]++
	case Errored:
		r.Errored++
		if len(r.Errors) < maxRecordErrors {
			r.Errors = append(r.Errors, RecordError{Index: index, Call: call, Detail: o.Detail})
		}
	}
}
