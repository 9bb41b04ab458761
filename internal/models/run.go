package models

import "time"

// RunOutcome is the terminal state of a pipeline run as stored in the run history.
type RunOutcome string

const (
	OutcomeRunning          RunOutcome = "running"
	OutcomeLoaded           RunOutcome = "loaded"
	OutcomeSkipped          RunOutcome = "skipped"
	OutcomeDryRun           RunOutcome = "dry_run"
	OutcomeExtractionFailed RunOutcome = "extraction_failed"
	OutcomeValidationFailed RunOutcome = "validation_failed"
	OutcomeLoadFailed       RunOutcome = "load_failed"
)

// Failed reports whether the outcome is one of the error states.
func (o RunOutcome) Failed() bool {
	switch o {
	case OutcomeExtractionFailed, OutcomeValidationFailed, OutcomeLoadFailed:
		return true
	}
	return false
}

// Run is one execution of the job.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    RunOutcome `json:"outcome"`
	Extracted  int        `json:"extracted"`
	Loaded     int        `json:"loaded"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
