package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/usecase"
)

func strp(s string) *string { return &s }

// memCatalog pages fixed slices like the real store does.
type memCatalog struct {
	internals []domain.InternalProduct
	externals []domain.ExternalProduct
	sources   []domain.Source
}

func (m *memCatalog) LoadInternalPage(ctx context.Context, limit, offset int) ([]domain.InternalProduct, error) {
	return pageOf(m.internals, limit, offset), nil
}

func (m *memCatalog) LoadExternalPage(ctx context.Context, limit, offset int, sourceID int64) ([]domain.ExternalProduct, error) {
	var filtered []domain.ExternalProduct
	for _, e := range m.externals {
		if sourceID == 0 || e.SourceID == sourceID {
			filtered = append(filtered, e)
		}
	}
	return pageOf(filtered, limit, offset), nil
}

func (m *memCatalog) GetInternalProduct(ctx context.Context, id int64) (*domain.InternalProduct, error) {
	return nil, domain.ErrProductNotFound
}

func (m *memCatalog) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	return nil, domain.ErrSourceNotFound
}

func (m *memCatalog) ListSources(ctx context.Context) ([]domain.Source, error) {
	return m.sources, nil
}

func pageOf[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// memSink records written rows; a positive failAfter makes the nth write
// fail.
type memSink struct {
	mu        sync.Mutex
	rows      []domain.MatchCandidate
	failAfter int
}

func (s *memSink) Write(internal domain.InternalProduct, candidate domain.MatchCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.rows)+1 >= s.failAfter {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, candidate)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// memCheckpoint is an in-memory CheckpointStore.
type memCheckpoint struct {
	saved   map[int64]bool
	saves   int
	cleared bool
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{saved: map[int64]bool{}}
}

func (c *memCheckpoint) Load() (map[int64]bool, error) {
	out := make(map[int64]bool, len(c.saved))
	for id := range c.saved {
		out[id] = true
	}
	return out, nil
}

func (c *memCheckpoint) Save(processed map[int64]bool) error {
	c.saves++
	c.saved = make(map[int64]bool, len(processed))
	for id := range processed {
		c.saved[id] = true
	}
	return nil
}

func (c *memCheckpoint) Clear() error {
	c.cleared = true
	c.saved = map[int64]bool{}
	return nil
}

func testEngine() *usecase.MatchingService {
	return usecase.NewMatchingService(usecase.DefaultMatchingConfig(), usecase.DefaultTaxonomy(), nil, nil)
}

// testCatalog builds n internal records that all match the single external
// record in each source.
func testCatalog(n int, sources ...int64) *memCatalog {
	catalog := &memCatalog{}
	for i := 1; i <= n; i++ {
		catalog.internals = append(catalog.internals, domain.InternalProduct{
			ID:    int64(i),
			Title: "Pampers Swaddlers Diapers Size 2",
			Brand: strp("Pampers"),
		})
	}
	for _, sourceID := range sources {
		catalog.sources = append(catalog.sources, domain.Source{ID: sourceID, Code: fmt.Sprintf("src-%d", sourceID)})
		catalog.externals = append(catalog.externals, domain.ExternalProduct{
			ID:          sourceID,
			SourceID:    sourceID,
			ExternalKey: fmt.Sprintf("ext-%d", sourceID),
			Title:       "Pampers Swaddlers Diapers Size 2",
			Brand:       strp("Pampers"),
		})
	}
	return catalog
}

func TestRunner_CompletesAndClearsCheckpoint(t *testing.T) {
	catalog := testCatalog(25, 7, 8)
	sink := &memSink{}
	ckpt := newMemCheckpoint()

	runner := NewRunner(catalog, testEngine(), sink, ckpt, Config{
		PageSize:        10,
		CheckpointEvery: 5,
	}, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, summary.InternalProcessed)
	assert.Equal(t, 0, summary.InternalSkipped)
	assert.Equal(t, 2, summary.ExternalRecords)
	// Every internal record matches one external per source.
	assert.Equal(t, 50, summary.MatchesWritten)
	assert.Equal(t, 50, sink.count())
	assert.True(t, ckpt.cleared, "checkpoint should be cleared after a clean run")

	tierTotal := 0
	for _, n := range summary.TierCounts {
		tierTotal += n
	}
	assert.Equal(t, summary.MatchesWritten, tierTotal)
	assert.Equal(t, summary.MatchesWritten, summary.ScenarioCounts[domain.ScenarioFeatureScored])
}

func TestRunner_ResumeSkipsCheckpointedRecords(t *testing.T) {
	catalog := testCatalog(10, 7)
	sink := &memSink{}
	ckpt := newMemCheckpoint()
	for id := int64(1); id <= 4; id++ {
		ckpt.saved[id] = true
	}

	runner := NewRunner(catalog, testEngine(), sink, ckpt, Config{PageSize: 3}, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.InternalProcessed)
	assert.Equal(t, 4, summary.InternalSkipped)
	assert.Equal(t, 6, sink.count())
	assert.True(t, ckpt.cleared)
}

func TestRunner_SinkFailurePreservesCheckpoint(t *testing.T) {
	catalog := testCatalog(10, 7)
	sink := &memSink{failAfter: 4}
	ckpt := newMemCheckpoint()

	runner := NewRunner(catalog, testEngine(), sink, ckpt, Config{PageSize: 3}, nil)

	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.False(t, ckpt.cleared, "checkpoint must survive a failed run")
	assert.GreaterOrEqual(t, ckpt.saves, 1, "progress should be flushed on the error path")

	// Completed records stay checkpointed so a re-run skips them.
	assert.Equal(t, summary.InternalProcessed, len(ckpt.saved))
}

func TestRunner_CancelledContext(t *testing.T) {
	catalog := testCatalog(100, 7)
	sink := &memSink{}
	ckpt := newMemCheckpoint()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(catalog, testEngine(), sink, ckpt, Config{PageSize: 10}, nil)

	_, err := runner.Run(ctx)
	require.Error(t, err)
	assert.False(t, ckpt.cleared)
}

func TestRunner_UnknownSourceFilter(t *testing.T) {
	catalog := testCatalog(5, 7)
	runner := NewRunner(catalog, testEngine(), &memSink{}, newMemCheckpoint(), Config{SourceID: 99}, nil)

	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestRunner_MinReportConfidenceFilters(t *testing.T) {
	catalog := testCatalog(5, 7)
	sink := &memSink{}

	// Scores land around 80; a 99 floor keeps everything out of the report.
	runner := NewRunner(catalog, testEngine(), sink, newMemCheckpoint(), Config{
		MinReportConfidence: 99.0,
	}, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.InternalProcessed)
	assert.Equal(t, 0, summary.MatchesWritten)
	assert.Equal(t, 0, sink.count())
}

func TestRunner_ParallelWorkers(t *testing.T) {
	catalog := testCatalog(50, 7)
	sink := &memSink{}
	ckpt := newMemCheckpoint()

	runner := NewRunner(catalog, testEngine(), sink, ckpt, Config{
		PageSize: 7,
		Workers:  4,
	}, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, summary.InternalProcessed)
	assert.Equal(t, 50, sink.count())
	assert.True(t, ckpt.cleared)
}

func TestScoreBucket(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, "0.0-0.1"},
		{0.55, "0.5-0.6"},
		{0.95, "0.9-1.0"},
		{1.0, "0.9-1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := scoreBucket(tt.score); got != tt.want {
				t.Errorf("scoreBucket(%v) = %s, want %s", tt.score, got, tt.want)
			}
		})
	}
}
