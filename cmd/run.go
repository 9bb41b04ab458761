package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/popetl/internal/formatter"
	"github.com/desertthunder/popetl/internal/metrics"
	"github.com/desertthunder/popetl/internal/repositories"
	"github.com/desertthunder/popetl/internal/services"
	"github.com/desertthunder/popetl/internal/shared"
	"github.com/desertthunder/popetl/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Run executes one extract, transform and load cycle.
//
// An empty batch is not an error. Validation, extraction and load failures are returned so the
// process exits non-zero.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = config.Extract.Limit
	}
	chunkSize := int(cmd.Int("chunk-size"))
	if chunkSize <= 0 {
		chunkSize = config.Database.ChunkSize
	}
	dryRun := cmd.Bool("dry-run")
	outputPath := cmd.String("output")

	source, err := r.recentlyPlayedSource(ctx, config)
	if err != nil {
		return err
	}

	opts := tasks.Options{
		Limit:  limit,
		DryRun: dryRun,
		Logger: r.logger,
	}

	manager := metrics.NewManager(config.Metrics, r.httpClient)
	opts.Observer = manager

	var appender tasks.RecordAppender
	if !dryRun {
		db, err := r.openDatabase(config)
		if err != nil {
			return err
		}
		defer db.Close()

		appender = repositories.NewPopularityRepository(db, chunkSize)
		opts.Recorder = repositories.NewRunRepository(db)
	}

	pipeline := tasks.NewPopularityPipeline(source, appender, opts)

	progress := make(chan tasks.ProgressUpdate, 8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("→ [%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	report, runErr := pipeline.Run(ctx, progress)
	close(progress)
	wg.Wait()

	if runErr == nil && dryRun && len(report.Records) > 0 {
		r.writePlain("%s\n", formatter.RenderRecords(report.Records))
		r.writePlain("%s\n", formatter.RenderCategories(report.Categories))
	}

	if runErr == nil && outputPath != "" && len(report.Records) > 0 {
		if err := formatter.WriteRecordsCSV(report.Records, outputPath); err != nil {
			r.logger.Warn("failed to write CSV", "path", outputPath, "error", err)
		} else {
			r.writePlain("✓ Records written to %s\n", outputPath)
		}
	}

	r.writePlain("%s\n", formatter.Summary(report, runErr))

	if err := manager.Push(ctx); err != nil {
		r.logger.Warn("failed to push metrics", "error", err)
	}

	return runErr
}

// recentlyPlayedSource returns the injected source or an authenticated Spotify client built
// from config. Refreshed tokens are written back to the config file.
func (r *Runner) recentlyPlayedSource(ctx context.Context, config *shared.Config) (services.RecentlyPlayedSource, error) {
	if r.source != nil {
		return r.source, nil
	}

	spotify := config.Credentials.Spotify
	if err := spotify.Validate(); err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(spotify.Map(),
		services.WithRateLimit(config.Extract.RateLimit),
		services.WithLogger(r.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create spotify service: %w", err)
	}

	token := spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'popetl auth' first", shared.ErrNotAuthenticated)
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
			return
		}
		r.logger.Debug("refreshed spotify token saved")
	})

	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to authenticate with spotify: %w", err)
	}
	return svc, nil
}
