package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/shared"
)

// PopularityRepository appends classified records to the Recently_Played_Popularity table.
//
// Rows are never updated or deleted. Every call writes its batch in one transaction as
// chunkSize-row INSERT statements, so a failed call leaves the table unchanged.
type PopularityRepository struct {
	db        *shared.Database
	table     string
	chunkSize int
}

// NewPopularityRepository creates a new PopularityRepository. A non-positive chunkSize uses [DefaultChunkSize],
// and sizes above [MaxChunkSize] for the database's dialect are capped.
func NewPopularityRepository(db *shared.Database, chunkSize int) *PopularityRepository {
	switch limit := MaxChunkSize(db.Dialect); {
	case chunkSize <= 0:
		chunkSize = DefaultChunkSize
	case chunkSize > limit:
		chunkSize = limit
	}

	return &PopularityRepository{
		db:        db,
		table:     db.Dialect.QualifiedTable(PopularitySchema, PopularityTable),
		chunkSize: chunkSize,
	}
}

// Table returns the qualified, quoted table name.
func (r *PopularityRepository) Table() string {
	return r.table
}

// ChunkSize returns the rows written per statement.
func (r *PopularityRepository) ChunkSize() int {
	return r.chunkSize
}

// Append inserts records in chunks inside a single transaction.
func (r *PopularityRepository) Append(ctx context.Context, records []models.ClassifiedRecord) (AppendResult, error) {
	if len(records) == 0 {
		return AppendResult{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bounds := chunkBounds(len(records), r.chunkSize)
	for i, b := range bounds {
		insert := r.db.Builder().Insert(r.table).Columns(models.Columns()...)
		for _, rec := range records[b[0]:b[1]] {
			insert = insert.Values(rec.Values()...)
		}

		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return AppendResult{}, fmt.Errorf("failed to insert chunk %d/%d: %w", i+1, len(bounds), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{}, fmt.Errorf("failed to commit append: %w", err)
	}

	return AppendResult{Rows: len(records), Chunks: len(bounds)}, nil
}

// Count returns the number of rows in the table.
func (r *PopularityRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Builder().
		Select("COUNT(*)").
		From(r.table).
		RunWith(r.db.DB).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Recent returns up to limit rows ordered by played_at, newest first.
func (r *PopularityRepository) Recent(ctx context.Context, limit int) ([]models.ClassifiedRecord, error) {
	query := r.db.Builder().
		Select(models.Columns()...).
		From(r.table).
		OrderBy(models.ColumnPlayedAt + " DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(r.db.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.ClassifiedRecord
	for rows.Next() {
		var (
			rec      models.ClassifiedRecord
			category string
		)
		if err := rows.Scan(&rec.SongName, &rec.ArtistNames, &rec.Popularity, &rec.PlayedAt, &category); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if rec.Category, err = models.ParsePopularityCategory(category); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}
