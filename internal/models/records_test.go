package models

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestJoinArtists(t *testing.T) {
	tc := []struct {
		name    string
		artists []string
		want    string
	}{
		{name: "single", artists: []string{"A"}, want: "A"},
		{name: "order preserved", artists: []string{"A", "B", "C"}, want: "A, B, C"},
		{name: "reverse order", artists: []string{"C", "B", "A"}, want: "C, B, A"},
		{name: "names with commas", artists: []string{"Crosby, Stills", "Nash"}, want: "Crosby, Stills, Nash"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinArtists(tt.artists); got != tt.want {
				t.Errorf("JoinArtists() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlayEventFlatten(t *testing.T) {
	t.Run("complete event", func(t *testing.T) {
		e := PlayEvent{
			TrackName:  ptr("Song"),
			Artists:    []string{"A", "B", "C"},
			Popularity: ptr(61),
			PlayedAt:   ptr("2024-05-01T12:00:00.000Z"),
		}

		r := e.Flatten()
		if !r.Complete() {
			t.Fatalf("expected complete record, missing %s", r.MissingColumn())
		}
		if *r.ArtistNames != "A, B, C" {
			t.Errorf("expected joined artists, got %q", *r.ArtistNames)
		}
		if *r.SongName != "Song" || *r.Popularity != 61 {
			t.Errorf("unexpected record %+v", r)
		}
	})

	t.Run("missing artists", func(t *testing.T) {
		r := PlayEvent{TrackName: ptr("Song"), Popularity: ptr(1), PlayedAt: ptr("x")}.Flatten()
		if r.ArtistNames != nil {
			t.Error("expected nil artist names")
		}
		if r.MissingColumn() != ColumnArtistNames {
			t.Errorf("expected %s, got %s", ColumnArtistNames, r.MissingColumn())
		}
	})

	t.Run("empty artist list is missing", func(t *testing.T) {
		r := PlayEvent{Artists: []string{}}.Flatten()
		if r.ArtistNames != nil {
			t.Error("expected nil artist names for empty list")
		}
	})
}

func TestFlatRecordMissingColumn(t *testing.T) {
	full := FlatRecord{SongName: ptr("s"), ArtistNames: ptr("a"), Popularity: ptr(3), PlayedAt: ptr("t")}
	if full.MissingColumn() != "" {
		t.Errorf("expected no missing column, got %s", full.MissingColumn())
	}

	noPopularity := full
	noPopularity.Popularity = nil
	if noPopularity.MissingColumn() != ColumnPopularity {
		t.Errorf("expected popularity, got %s", noPopularity.MissingColumn())
	}

	noPlayedAt := full
	noPlayedAt.PlayedAt = nil
	if noPlayedAt.Complete() {
		t.Error("expected incomplete record")
	}
}

func TestClassifiedRecordValues(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	r := ClassifiedRecord{SongName: "s", ArtistNames: "a", Popularity: 80, PlayedAt: at, Category: Overplayed}

	values := r.Values()
	if len(values) != len(Columns()) {
		t.Fatalf("expected %d values, got %d", len(Columns()), len(values))
	}
	if values[3].(time.Time).Location() != time.UTC {
		t.Error("expected played_at to be stored in UTC")
	}
	if values[4] != "Overplayed" {
		t.Errorf("expected category text, got %v", values[4])
	}
}

func TestParsePlayedAt(t *testing.T) {
	got, err := ParsePlayedAt("2024-05-01T12:00:00.123Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Nanosecond() != 123000000 {
		t.Errorf("expected milliseconds to be kept, got %d", got.Nanosecond())
	}
	if _, err := ParsePlayedAt("yesterday"); err == nil {
		t.Error("expected parse error")
	}
}
