package tasks

import (
	"fmt"

	"github.com/desertthunder/popetl/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	RunID   string // Run the update belongs to
	Phase   Phase  // Pipeline state reached
	Step    int    // Current stage number
	Total   int    // Total stages
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Phase is a state of the per-run pipeline state machine:
//
//	Start → Extracted → {Empty | ValidationFailed | Validated} → {Loaded (from Validated) | Skipped (from Empty)}
//
// ExtractionFailed, ValidationFailed and LoadFailed are terminal error states.
type Phase int

const (
	Start Phase = iota
	Extracted
	Empty
	ValidationFailed
	Validated
	Loaded
	Skipped
	ExtractionFailed
	LoadFailed
)

const totalStages = 3

func (p Phase) String() string {
	switch p {
	case Start:
		return "start"
	case Extracted:
		return "extracted"
	case Empty:
		return "empty"
	case ValidationFailed:
		return "validation_failed"
	case Validated:
		return "validated"
	case Loaded:
		return "loaded"
	case Skipped:
		return "skipped"
	case ExtractionFailed:
		return "extraction_failed"
	case LoadFailed:
		return "load_failed"
	default:
		return ""
	}
}

// Failed reports whether p is a terminal error state.
func (p Phase) Failed() bool {
	return p == ExtractionFailed || p == ValidationFailed || p == LoadFailed
}

func startUpdate(runID string, limit int) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Start,
		Step:    1,
		Total:   totalStages,
		Message: fmt.Sprintf("Fetching up to %d recently played tracks from Spotify...", limit),
	}
}

func extractedUpdate(runID string, count int) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Extracted,
		Step:    1,
		Total:   totalStages,
		Message: fmt.Sprintf("Extracted %d play events", count),
		Data:    count,
	}
}

func emptyUpdate(runID string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Empty,
		Step:    2,
		Total:   totalStages,
		Message: "No recently played tracks, nothing to load",
	}
}

func validatedUpdate(runID string, records []models.ClassifiedRecord) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Validated,
		Step:    2,
		Total:   totalStages,
		Message: fmt.Sprintf("Validated and categorized %d records", len(records)),
		Data:    records,
	}
}

func failedUpdate(runID string, phase Phase, step int, err error) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   phase,
		Step:    step,
		Total:   totalStages,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}

func loadingUpdate(runID string, count int, table string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Validated,
		Step:    3,
		Total:   totalStages,
		Message: fmt.Sprintf("Appending %d records to %s...", count, table),
	}
}

func loadedUpdate(runID string, rows, chunks int) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Loaded,
		Step:    3,
		Total:   totalStages,
		Message: fmt.Sprintf("✓ Appended %d records in %d chunk(s)", rows, chunks),
	}
}

func skippedUpdate(runID string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Skipped,
		Step:    3,
		Total:   totalStages,
		Message: "Skipped load: empty batch",
	}
}
