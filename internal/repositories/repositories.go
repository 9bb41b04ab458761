package repositories

import (
	"fmt"

	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/shared"
)

const (
	// PopularitySchema and PopularityTable name the append-only target table.
	PopularitySchema = "public"
	PopularityTable  = "Recently_Played_Popularity"

	// DefaultChunkSize is the number of rows written per INSERT statement.
	DefaultChunkSize = 500

	// Bind parameter limits per statement.
	postgresMaxParams = 65535
	sqliteMaxParams   = 32766
)

// MaxChunkSize is the largest number of rows a single multi-row INSERT can carry on dialect
// without exceeding its bind parameter limit.
func MaxChunkSize(dialect shared.Dialect) int {
	params := sqliteMaxParams
	if dialect == shared.DialectPostgres {
		params = postgresMaxParams
	}
	return params / len(models.Columns())
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = fmt.Errorf("record not found")

// AppendResult reports what a single append wrote.
type AppendResult struct {
	Rows   int
	Chunks int
}

// chunkBounds splits n items into [start, end) windows of at most size items.
func chunkBounds(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var bounds [][2]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}
