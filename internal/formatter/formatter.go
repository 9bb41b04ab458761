// package formatter renders records and run history as terminal tables, CSV and status lines
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/tasks"
)

const timeLayout = "2006-01-02 15:04:05"

// RecordsToCSV converts classified records to CSV with the target table's columns as headers
func RecordsToCSV(records []models.ClassifiedRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(models.Columns()); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.SongName,
			r.ArtistNames,
			strconv.Itoa(r.Popularity),
			r.PlayedAt.UTC().Format(time.RFC3339Nano),
			r.Category.String(),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteRecordsCSV writes [RecordsToCSV] output to path
func WriteRecordsCSV(records []models.ClassifiedRecord, path string) error {
	if path == "" {
		return fmt.Errorf("empty output path")
	}

	data, err := RecordsToCSV(records)
	if err != nil {
		return fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

// RenderRecords renders records as a table with the category column colored by bucket
func RenderRecords(records []models.ClassifiedRecord) string {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.SongName,
			r.ArtistNames,
			strconv.Itoa(r.Popularity),
			r.PlayedAt.Local().Format(timeLayout),
			r.Category.String(),
		})
	}

	const categoryCol = 5
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.border).
		Headers("#", "Song", "Artists", "Popularity", "Played At", "Category").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.header
			case col == categoryCol && row >= 0 && row < len(records):
				return styles.category(records[row].Category)
			default:
				return styles.cell
			}
		})

	return t.Render()
}

// RenderRuns renders run history, newest first as given
func RenderRuns(runs []models.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		duration := "-"
		if d := r.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format(timeLayout),
			duration,
			string(r.Outcome),
			strconv.Itoa(r.Extracted),
			strconv.Itoa(r.Loaded),
			truncate(r.Error, 48),
		})
	}

	const outcomeCol = 3
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.border).
		Headers("Run", "Started", "Duration", "Outcome", "Extracted", "Loaded", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.header
			case col == outcomeCol && row >= 0 && row < len(runs):
				return outcomeStyle(runs[row].Outcome)
			default:
				return styles.cell
			}
		})

	return t.Render()
}

// RenderCategories renders per-category counts on a single line in category order
func RenderCategories(counts map[models.PopularityCategory]int) string {
	parts := make([]string, 0, len(models.Categories()))
	for _, c := range models.Categories() {
		parts = append(parts, fmt.Sprintf("%s: %d", c, counts[c]))
	}
	return strings.Join(parts, "  ")
}

// Summary is the one-line result of a run
func Summary(report *tasks.Report, err error) string {
	if report == nil {
		if err != nil {
			return styles.Err(fmt.Sprintf("✗ Run failed: %v", err))
		}
		return ""
	}

	duration := report.Duration().Round(time.Millisecond)
	switch {
	case err != nil:
		return styles.Err(fmt.Sprintf("✗ Run %s failed at %s: %v", shortID(report.RunID), report.Phase, err))
	case report.Phase == tasks.Skipped:
		return styles.Warn("No recently played tracks, nothing to load")
	case report.DryRun:
		return styles.OK(fmt.Sprintf("✓ Dry run: %d records validated, nothing written (%s)", len(report.Records), duration))
	default:
		return styles.OK(fmt.Sprintf("✓ Appended %d records in %d chunk(s) (%s)", report.Loaded, report.Chunks, duration))
	}
}

func outcomeStyle(o models.RunOutcome) lipgloss.Style {
	switch {
	case o.Failed():
		return styles.err.Padding(0, 1)
	case o == models.OutcomeLoaded:
		return styles.ok.Padding(0, 1)
	case o == models.OutcomeSkipped, o == models.OutcomeRunning:
		return styles.warn.Padding(0, 1)
	default:
		return styles.cell
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
