package tasks

import (
	"time"

	"github.com/desertthunder/popetl/internal/models"
)

// Result is the outcome of [Transform]: either [EmptyResult] or [ValidatedResult].
type Result interface {
	isResult()
}

// EmptyResult means the batch had no rows. It is not an error.
type EmptyResult struct{}

// ValidatedResult carries the batch after every check passed.
type ValidatedResult struct {
	Records []models.ClassifiedRecord
}

func (EmptyResult) isResult()     {}
func (ValidatedResult) isResult() {}

// Transform validates a batch and labels each row with its popularity category.
//
// Checks run in order: an empty batch yields [EmptyResult]; a repeated played_at fails with
// [ErrDuplicateKey]; any missing field fails with [ErrNullValue]. Failures are [*ValidationError].
// played_at values are compared as instants, so "10:00:00Z" and "10:00:00.000Z" collide.
func Transform(records []models.FlatRecord) (Result, error) {
	if len(records) == 0 {
		return EmptyResult{}, nil
	}

	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.PlayedAt == nil {
			continue
		}
		key := playedAtKey(*r.PlayedAt)
		if _, dup := seen[key]; dup {
			return nil, &ValidationError{Kind: ErrDuplicateKey, Column: models.ColumnPlayedAt, Row: i, Value: *r.PlayedAt}
		}
		seen[key] = i
	}

	for i, r := range records {
		if col := r.MissingColumn(); col != "" {
			return nil, &ValidationError{Kind: ErrNullValue, Column: col, Row: i}
		}
	}

	classified := make([]models.ClassifiedRecord, 0, len(records))
	for i, r := range records {
		playedAt, err := models.ParsePlayedAt(*r.PlayedAt)
		if err != nil {
			return nil, &ValidationError{Kind: ErrInvalidTimestamp, Column: models.ColumnPlayedAt, Row: i, Value: *r.PlayedAt}
		}
		classified = append(classified, models.ClassifiedRecord{
			SongName:    *r.SongName,
			ArtistNames: *r.ArtistNames,
			Popularity:  *r.Popularity,
			PlayedAt:    playedAt,
			Category:    models.Categorize(*r.Popularity),
		})
	}

	return ValidatedResult{Records: classified}, nil
}

// playedAtKey normalizes a parseable timestamp to UTC. Unparseable values are compared verbatim
// and rejected later by the timestamp check.
func playedAtKey(s string) string {
	t, err := models.ParsePlayedAt(s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// CountCategories tallies records per popularity category. Every category is present in the map.
func CountCategories(records []models.ClassifiedRecord) map[models.PopularityCategory]int {
	counts := make(map[models.PopularityCategory]int, len(models.Categories()))
	for _, c := range models.Categories() {
		counts[c] = 0
	}
	for _, r := range records {
		counts[r.Category]++
	}
	return counts
}
