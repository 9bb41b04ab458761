package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/popetl/internal/formatter"
	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/repositories"
	"github.com/urfave/cli/v3"
)

// History lists the most recent pipeline runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if cmd.Bool("json") {
		if runs == nil {
			runs = []models.Run{}
		}
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}
	return r.writePlain("%s\n", formatter.RenderRuns(runs))
}
