package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/repositories"
	"github.com/desertthunder/popetl/internal/services"
	"github.com/desertthunder/popetl/internal/shared"
)

// RecordAppender durably appends classified rows. repositories.PopularityRepository implements it.
type RecordAppender interface {
	Append(ctx context.Context, records []models.ClassifiedRecord) (repositories.AppendResult, error)
	Table() string
}

// RunRecorder persists run history. repositories.RunRepository implements it.
type RunRecorder interface {
	Start(ctx context.Context, run models.Run) error
	Finish(ctx context.Context, run models.Run) error
}

// Observer is notified once per finished run. metrics.Manager implements it.
type Observer interface {
	ObserveRun(report *Report, err error)
}

// Options configures a [PopularityPipeline].
type Options struct {
	Limit    int  // Events requested per run, clamped by the source
	DryRun   bool // Extract and transform only
	Logger   *log.Logger
	Recorder RunRecorder // Optional
	Observer Observer    // Optional
	Now      func() time.Time
}

// Report describes a single run. Run returns a non-nil report even when the run fails.
type Report struct {
	RunID      string
	Phase      Phase
	DryRun     bool
	Extracted  int
	Loaded     int
	Chunks     int
	Categories map[models.PopularityCategory]int
	Records    []models.ClassifiedRecord
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome maps the final phase to the outcome stored in the run history.
func (r *Report) Outcome() models.RunOutcome {
	switch r.Phase {
	case Loaded:
		return models.OutcomeLoaded
	case Skipped, Empty:
		return models.OutcomeSkipped
	case Validated:
		if r.DryRun {
			return models.OutcomeDryRun
		}
		return models.OutcomeRunning
	case ExtractionFailed:
		return models.OutcomeExtractionFailed
	case ValidationFailed:
		return models.OutcomeValidationFailed
	case LoadFailed:
		return models.OutcomeLoadFailed
	default:
		return models.OutcomeRunning
	}
}

// Duration is the wall time of the run, or zero while it is in progress.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run converts the report into a run history entry.
func (r *Report) Run(err error) models.Run {
	run := models.Run{
		ID:        r.RunID,
		StartedAt: r.StartedAt,
		Outcome:   r.Outcome(),
		Extracted: r.Extracted,
		Loaded:    r.Loaded,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		run.FinishedAt = &finished
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// PopularityPipeline extracts recently played tracks, categorizes their popularity and appends them to the store.
type PopularityPipeline struct {
	source   services.RecentlyPlayedSource
	appender RecordAppender
	opts     Options
	logger   *log.Logger
	now      func() time.Time
}

// NewPopularityPipeline creates a pipeline. appender may be nil for dry runs.
func NewPopularityPipeline(source services.RecentlyPlayedSource, appender RecordAppender, opts Options) *PopularityPipeline {
	if opts.Limit <= 0 {
		opts.Limit = services.MaxRecentlyPlayed
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &PopularityPipeline{
		source:   source,
		appender: appender,
		opts:     opts,
		logger:   logger,
		now:      now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (p *PopularityPipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Extract requests the recently played page and flattens it. Source failures are wrapped with [ErrExtraction].
func (p *PopularityPipeline) Extract(ctx context.Context) ([]models.FlatRecord, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: %w: no recently played source", ErrExtraction, shared.ErrServiceUnavailable)
	}

	events, err := p.source.RecentlyPlayed(ctx, services.RecentlyPlayedOpts{Limit: p.opts.Limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	records := make([]models.FlatRecord, 0, len(events))
	for _, e := range events {
		records = append(records, e.Flatten())
	}
	return records, nil
}

// Load appends a [ValidatedResult] and skips an [EmptyResult] without touching the store.
func (p *PopularityPipeline) Load(ctx context.Context, result Result) (*Report, error) {
	report := &Report{DryRun: p.opts.DryRun, StartedAt: p.now()}
	err := p.load(ctx, nil, report, result, p.logger)
	report.FinishedAt = p.now()
	return report, err
}

func (p *PopularityPipeline) load(ctx context.Context, progress chan<- ProgressUpdate, report *Report, result Result, logger *log.Logger) error {
	switch r := result.(type) {
	case EmptyResult:
		report.Phase = Skipped
		p.sendProgress(progress, skippedUpdate(report.RunID))
		logger.Info("nothing to load")
		return nil
	case ValidatedResult:
		report.Phase = Validated
		report.Records = r.Records
		report.Categories = CountCategories(r.Records)
		if p.opts.DryRun {
			logger.Info("dry run, skipping load", "records", len(r.Records))
			return nil
		}
		if p.appender == nil {
			report.Phase = LoadFailed
			return fmt.Errorf("%w: %w: no record appender", ErrLoad, shared.ErrServiceUnavailable)
		}

		p.sendProgress(progress, loadingUpdate(report.RunID, len(r.Records), p.appender.Table()))
		res, err := p.appender.Append(ctx, r.Records)
		if err != nil {
			report.Phase = LoadFailed
			return fmt.Errorf("%w: %w", ErrLoad, err)
		}

		report.Phase = Loaded
		report.Loaded = res.Rows
		report.Chunks = res.Chunks
		p.sendProgress(progress, loadedUpdate(report.RunID, res.Rows, res.Chunks))
		logger.Info("loaded", "table", p.appender.Table(), "rows", res.Rows, "chunks", res.Chunks)
		return nil
	default:
		return fmt.Errorf("%w: unexpected transform result %T", shared.ErrInvalidInput, result)
	}
}

// Run executes extract, transform and load in sequence and stops at the first failure.
//
// The returned error wraps [ErrExtraction], a [*ValidationError] or [ErrLoad]. An empty batch is not an error:
// the report ends in [Skipped].
func (p *PopularityPipeline) Run(ctx context.Context, progress chan<- ProgressUpdate) (*Report, error) {
	report := &Report{
		RunID:     shared.GenerateID(),
		Phase:     Start,
		DryRun:    p.opts.DryRun,
		StartedAt: p.now(),
	}
	logger := shared.WithLogger(p.logger, "run_id", report.RunID)

	p.record(logger, func(r RunRecorder) error { return r.Start(ctx, report.Run(nil)) })

	p.sendProgress(progress, startUpdate(report.RunID, p.opts.Limit))
	logger.Info("extracting recently played", "limit", p.opts.Limit, "dry_run", p.opts.DryRun)

	flat, err := p.Extract(ctx)
	if err != nil {
		report.Phase = ExtractionFailed
		p.sendProgress(progress, failedUpdate(report.RunID, ExtractionFailed, 1, err))
		return p.finish(ctx, logger, report, err)
	}

	report.Phase = Extracted
	report.Extracted = len(flat)
	p.sendProgress(progress, extractedUpdate(report.RunID, len(flat)))
	logger.Info("extracted", "records", len(flat))

	result, err := Transform(flat)
	if err != nil {
		report.Phase = ValidationFailed
		p.sendProgress(progress, failedUpdate(report.RunID, ValidationFailed, 2, err))
		return p.finish(ctx, logger, report, err)
	}

	switch r := result.(type) {
	case EmptyResult:
		report.Phase = Empty
		p.sendProgress(progress, emptyUpdate(report.RunID))
	case ValidatedResult:
		report.Phase = Validated
		p.sendProgress(progress, validatedUpdate(report.RunID, r.Records))
		for _, rec := range r.Records {
			logger.Debug("classified",
				"song_name", rec.SongName,
				"artist_names", rec.ArtistNames,
				"popularity", rec.Popularity,
				"played_at", rec.PlayedAt.Format(time.RFC3339),
				"category", rec.Category)
		}
	}

	if err := p.load(ctx, progress, report, result, logger); err != nil {
		p.sendProgress(progress, failedUpdate(report.RunID, report.Phase, 3, err))
		return p.finish(ctx, logger, report, err)
	}

	return p.finish(ctx, logger, report, nil)
}

func (p *PopularityPipeline) finish(ctx context.Context, logger *log.Logger, report *Report, err error) (*Report, error) {
	report.FinishedAt = p.now()

	p.record(logger, func(r RunRecorder) error { return r.Finish(ctx, report.Run(err)) })

	if p.opts.Observer != nil {
		p.opts.Observer.ObserveRun(report, err)
	}

	if err != nil {
		logger.Error("run failed", "phase", report.Phase, "error", err, "duration", report.Duration())
		return report, err
	}

	logger.Info("run finished", "outcome", report.Outcome(), "loaded", report.Loaded, "duration", report.Duration())
	return report, nil
}

// record calls fn on the configured recorder. History is best effort and never fails a run.
func (p *PopularityPipeline) record(logger *log.Logger, fn func(RunRecorder) error) {
	if p.opts.Recorder == nil {
		return
	}
	if err := fn(p.opts.Recorder); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}
