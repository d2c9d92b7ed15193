package pipeline

import (
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
	"github.com/dmitrijs2005/boletaje/internal/migrator/upload"
)

// State is the lifecycle position of one item within a run.
type State string

const (
	StatePending   State = "pending"
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

type ItemResult struct {
	FileID     string
	Name       string
	LocalName  string
	Size       int64
	State      State
	Reconciled bool
	// TransitionFailed is set when the upload succeeded but the item could
	// not be relocated.
	TransitionFailed bool
	Upload           upload.Outcome
	Err              error
}

type PeriodReport struct {
	Period period.Period
	// Err is set when the period folders could not be resolved or listed.
	Err              error
	Missing          bool
	Listed           int
	Processed        int
	Skipped          int
	Failed           int
	TransitionErrors int
	Reconciled       int
	Items            []ItemResult
}

func (r *PeriodReport) add(it ItemResult) {
	r.Items = append(r.Items, it)
	switch {
	case it.Reconciled && it.State == StateCompleted:
		r.Reconciled++
	case it.TransitionFailed:
		r.TransitionErrors++
	case it.State == StateCompleted:
		r.Processed++
	case it.State == StateSkipped:
		r.Skipped++
	case it.State == StateFailed:
		r.Failed++
	}
}

type RunSummary struct {
	RunID  string
	Branch string
	// Err is a run-level failure, for example an unresolvable branch folder.
	Err              error
	Periods          []PeriodReport
	Processed        int
	Skipped          int
	Failed           int
	TransitionErrors int
	Reconciled       int
	PeriodsWithWork  int
	PeriodErrors     int
	Interrupted      bool
}

func (s *RunSummary) add(r PeriodReport) {
	s.Periods = append(s.Periods, r)
	s.Processed += r.Processed
	s.Skipped += r.Skipped
	s.Failed += r.Failed
	s.TransitionErrors += r.TransitionErrors
	s.Reconciled += r.Reconciled
	if r.Processed > 0 {
		s.PeriodsWithWork++
	}
	if r.Err != nil && !r.Missing {
		s.PeriodErrors++
	}
}

// OK reports whether the run finished without any failure.
func (s RunSummary) OK() bool {
	return s.Err == nil && s.Failed == 0 && s.TransitionErrors == 0 && s.PeriodErrors == 0 && !s.Interrupted
}
