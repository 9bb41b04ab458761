package models

import (
	"strings"
	"time"
)

// ArtistSeparator joins multiple contributing artists into a single column value.
const ArtistSeparator = ", "

// PlayEvent is a single entry of a user's recently played history.
//
// Pointer fields and a nil Artists slice mean the upstream payload did not carry the value.
type PlayEvent struct {
	TrackName  *string
	Artists    []string
	Popularity *int
	PlayedAt   *string // ISO-8601, natural key of a play
}

// FlatRecord is the tabular form of a [PlayEvent]. A nil field is a missing value.
type FlatRecord struct {
	SongName    *string
	ArtistNames *string
	Popularity  *int
	PlayedAt    *string
}

// Flatten converts a [PlayEvent] into a [FlatRecord], joining artists in their original order.
func (e PlayEvent) Flatten() FlatRecord {
	r := FlatRecord{
		SongName:   e.TrackName,
		Popularity: e.Popularity,
		PlayedAt:   e.PlayedAt,
	}
	if len(e.Artists) > 0 {
		joined := JoinArtists(e.Artists)
		r.ArtistNames = &joined
	}
	return r
}

// Complete reports whether every field is present.
func (r FlatRecord) Complete() bool {
	return r.SongName != nil && r.ArtistNames != nil && r.Popularity != nil && r.PlayedAt != nil
}

// MissingColumn returns the first absent column name, or "" when the record is complete.
func (r FlatRecord) MissingColumn() string {
	switch {
	case r.SongName == nil:
		return ColumnSongName
	case r.ArtistNames == nil:
		return ColumnArtistNames
	case r.Popularity == nil:
		return ColumnPopularity
	case r.PlayedAt == nil:
		return ColumnPlayedAt
	default:
		return ""
	}
}

// ClassifiedRecord is a validated row carrying its derived popularity category.
type ClassifiedRecord struct {
	SongName    string
	ArtistNames string
	Popularity  int
	PlayedAt    time.Time
	Category    PopularityCategory
}

// Column names of the target table, in insert order.
const (
	ColumnSongName           = "song_name"
	ColumnArtistNames        = "artist_names"
	ColumnPopularity         = "popularity"
	ColumnPlayedAt           = "played_at"
	ColumnPopularityCategory = "popularity_category"
)

// Columns lists the target table columns in insert order.
func Columns() []string {
	return []string{ColumnSongName, ColumnArtistNames, ColumnPopularity, ColumnPlayedAt, ColumnPopularityCategory}
}

// Values returns the row values matching [Columns].
func (r ClassifiedRecord) Values() []any {
	return []any{r.SongName, r.ArtistNames, r.Popularity, r.PlayedAt.UTC(), r.Category.String()}
}

// JoinArtists joins artist names with [ArtistSeparator], preserving order.
func JoinArtists(names []string) string {
	return strings.Join(names, ArtistSeparator)
}

// ParsePlayedAt parses the service's played_at timestamp.
//
// Spotify emits RFC 3339 with millisecond precision ("2024-05-01T12:00:00.123Z").
func ParsePlayedAt(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
