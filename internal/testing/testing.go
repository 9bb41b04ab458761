// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/popetl/internal/models"
	"github.com/desertthunder/popetl/internal/repositories"
	"github.com/desertthunder/popetl/internal/services"
	"github.com/desertthunder/popetl/internal/shared"
)

// MockSource is a test double for [services.RecentlyPlayedSource]
type MockSource struct {
	Events   []models.PlayEvent
	Err      error
	Calls    int
	LastOpts services.RecentlyPlayedOpts
}

func (m *MockSource) RecentlyPlayed(ctx context.Context, opts services.RecentlyPlayedOpts) ([]models.PlayEvent, error) {
	m.Calls++
	m.LastOpts = opts
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Events, nil
}

// MockAppender records every batch handed to it and never touches a database
type MockAppender struct {
	Err       error
	ChunkSize int
	Calls     int
	Records   []models.ClassifiedRecord
}

func (m *MockAppender) Append(ctx context.Context, records []models.ClassifiedRecord) (repositories.AppendResult, error) {
	m.Calls++
	if m.Err != nil {
		return repositories.AppendResult{}, m.Err
	}
	m.Records = append(m.Records, records...)

	size := m.ChunkSize
	if size <= 0 {
		size = repositories.DefaultChunkSize
	}
	return repositories.AppendResult{Rows: len(records), Chunks: (len(records) + size - 1) / size}, nil
}

func (m *MockAppender) Table() string { return repositories.PopularityTable }

// MockRecorder keeps run history in memory
type MockRecorder struct {
	mu       sync.Mutex
	Err      error
	Started  []models.Run
	Finished []models.Run
}

func (m *MockRecorder) Start(ctx context.Context, run models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, run)
	return m.Err
}

func (m *MockRecorder) Finish(ctx context.Context, run models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = append(m.Finished, run)
	return m.Err
}

// Event builds a complete [models.PlayEvent]
func Event(name string, artists []string, popularity int, playedAt string) models.PlayEvent {
	return models.PlayEvent{
		TrackName:  &name,
		Artists:    artists,
		Popularity: &popularity,
		PlayedAt:   &playedAt,
	}
}

// Flat builds a complete [models.FlatRecord]
func Flat(name, artists string, popularity int, playedAt string) models.FlatRecord {
	return models.FlatRecord{
		SongName:    &name,
		ArtistNames: &artists,
		Popularity:  &popularity,
		PlayedAt:    &playedAt,
	}
}

// NewTestDatabase opens a migrated in-memory SQLite database that is closed when the test ends
func NewTestDatabase(t *testing.T) *shared.Database {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
