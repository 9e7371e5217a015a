// Package batch applies the matching engine across the full cross-product
// of the two catalogs in bounded memory, with checkpoint-based resume.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/logger"
	"github.com/shelflink/backend/internal/usecase"
)

// CheckpointStore persists the set of internal-record ids already fully
// processed.
type CheckpointStore interface {
	Load() (map[int64]bool, error)
	Save(processed map[int64]bool) error
	Clear() error
}

// Config tunes a batch run.
type Config struct {
	// PageSize used for catalog page loads.
	PageSize int
	// CheckpointEvery flushes the checkpoint after this many internal
	// records.
	CheckpointEvery int
	// ProgressEvery logs progress after this many internal records.
	ProgressEvery int
	// MinReportConfidence filters which candidates reach the report sink
	// (0-100). Deliberately stricter than the engine's acceptance floor.
	MinReportConfidence float64
	// Workers shards internal records across a scoring pool. Checkpoint
	// and sink writes stay serialized in the collector regardless.
	Workers int
	// SourceID restricts the run to one external source; zero means all.
	SourceID int64
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 10
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 100
	}
	if c.MinReportConfidence <= 0 {
		c.MinReportConfidence = 50.0
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Summary is the final accounting of a completed run.
type Summary struct {
	InternalProcessed int                      `json:"internalProcessed"`
	InternalSkipped   int                      `json:"internalSkipped"`
	ExternalRecords   int                      `json:"externalRecords"`
	MatchesWritten    int                      `json:"matchesWritten"`
	TierCounts        map[domain.Tier]int      `json:"tierCounts"`
	ScenarioCounts    map[domain.Scenario]int  `json:"scenarioCounts"`
	ScoreBuckets      map[string]int           `json:"scoreBuckets"`
	Elapsed           time.Duration            `json:"elapsed"`
	RecordsPerSecond  float64                  `json:"recordsPerSecond"`
}

func newSummary() *Summary {
	return &Summary{
		TierCounts:     make(map[domain.Tier]int),
		ScenarioCounts: make(map[domain.Scenario]int),
		ScoreBuckets:   make(map[string]int),
	}
}

func (s *Summary) observe(c domain.MatchCandidate) {
	s.MatchesWritten++
	s.TierCounts[c.Tier]++
	s.ScenarioCounts[c.Scenario]++
	s.ScoreBuckets[scoreBucket(c.OverallScore)]++
}

// scoreBucket labels a score by its decile, e.g. "0.8-0.9".
func scoreBucket(score float64) string {
	decile := int(score * 10)
	if decile >= 10 {
		decile = 9
	}
	return fmt.Sprintf("0.%d-%s", decile, upperBound(decile))
}

func upperBound(decile int) string {
	if decile == 9 {
		return "1.0"
	}
	return fmt.Sprintf("0.%d", decile+1)
}

// scored carries one internal record's qualifying candidates from a worker
// to the collector.
type scored struct {
	internal   domain.InternalProduct
	qualifying []domain.MatchCandidate
}

// Runner drives one batch comparison run.
type Runner struct {
	catalog domain.CatalogRepository
	engine  *usecase.MatchingService
	sink    domain.ReportSink
	ckpt    CheckpointStore
	cfg     Config
	log     *logger.Logger
}

// NewRunner wires a batch runner.
func NewRunner(
	catalog domain.CatalogRepository,
	engine *usecase.MatchingService,
	sink domain.ReportSink,
	ckpt CheckpointStore,
	cfg Config,
	log *logger.Logger,
) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		catalog: catalog,
		engine:  engine,
		sink:    sink,
		ckpt:    ckpt,
		cfg:     cfg.withDefaults(),
		log:     log.With("component", "batch"),
	}
}

// Run executes the batch comparison. The external set is held fully in
// memory (bounded, tens of thousands of rows); internal records stream
// through in pages and are scored one at a time. Qualifying candidates are
// written to the sink as they are discovered. On error or cancellation the
// checkpoint is flushed and preserved so the same command resumes the run;
// on clean completion it is deleted.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	alreadyProcessed, err := r.ckpt.Load()
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	if len(alreadyProcessed) > 0 {
		r.log.Info("resuming from checkpoint", "already_processed", len(alreadyProcessed))
	}

	// The producer reads the loaded set; the collector owns a private copy.
	// Keeping the two apart avoids a concurrent map access between them.
	processed := make(map[int64]bool, len(alreadyProcessed))
	for id := range alreadyProcessed {
		processed[id] = true
	}

	sources, externalsBySource, externalCount, err := r.loadExternals(ctx)
	if err != nil {
		return nil, err
	}

	summary := newSummary()
	summary.ExternalRecords = externalCount

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	jobs := make(chan domain.InternalProduct)
	results := make(chan scored, r.cfg.Workers)

	g.Go(func() error {
		defer close(jobs)
		return r.produce(gctx, jobs, alreadyProcessed, summary)
	})

	workers := errgroup.Group{}
	for i := 0; i < r.cfg.Workers; i++ {
		workers.Go(func() error {
			return r.score(gctx, jobs, results, sources, externalsBySource)
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		err := workers.Wait()
		close(results)
		waitErr <- err
	}()

	collectErr := r.collect(results, processed, summary, cancel)

	if err := <-waitErr; err != nil && collectErr == nil && !errors.Is(err, context.Canceled) {
		collectErr = err
	}
	if err := g.Wait(); err != nil && collectErr == nil && !errors.Is(err, context.Canceled) {
		collectErr = err
	}
	if collectErr == nil {
		collectErr = ctx.Err()
	}

	// Always flush progress, even on the error path: the checkpoint is the
	// resume point.
	if err := r.ckpt.Save(processed); err != nil && collectErr == nil {
		collectErr = fmt.Errorf("flushing checkpoint: %w", err)
	}

	summary.Elapsed = time.Since(start)
	if summary.Elapsed > 0 {
		summary.RecordsPerSecond = float64(summary.InternalProcessed) / summary.Elapsed.Seconds()
	}

	if collectErr != nil {
		r.log.Error("batch run aborted, checkpoint preserved",
			"processed", summary.InternalProcessed,
			"error", collectErr)
		return summary, collectErr
	}

	if err := r.ckpt.Clear(); err != nil {
		return summary, fmt.Errorf("clearing checkpoint after completion: %w", err)
	}

	r.log.Info("batch run complete",
		"internal_processed", summary.InternalProcessed,
		"internal_skipped", summary.InternalSkipped,
		"matches_written", summary.MatchesWritten,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
		"records_per_second", fmt.Sprintf("%.1f", summary.RecordsPerSecond))

	return summary, nil
}

// loadExternals pages the external catalog fully into memory, grouped by
// source.
func (r *Runner) loadExternals(ctx context.Context) ([]domain.Source, map[int64][]domain.ExternalProduct, int, error) {
	allSources, err := r.catalog.ListSources(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("listing sources: %w", err)
	}

	sources := allSources
	if r.cfg.SourceID != 0 {
		sources = nil
		for _, s := range allSources {
			if s.ID == r.cfg.SourceID {
				sources = []domain.Source{s}
				break
			}
		}
		if sources == nil {
			return nil, nil, 0, fmt.Errorf("%w: %d", domain.ErrSourceNotFound, r.cfg.SourceID)
		}
	}

	bySource := make(map[int64][]domain.ExternalProduct)
	total := 0
	for offset := 0; ; offset += r.cfg.PageSize {
		page, err := r.catalog.LoadExternalPage(ctx, r.cfg.PageSize, offset, r.cfg.SourceID)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("loading external page at offset %d: %w", offset, err)
		}
		for _, rec := range page {
			bySource[rec.SourceID] = append(bySource[rec.SourceID], rec)
		}
		total += len(page)
		if len(page) < r.cfg.PageSize {
			break
		}
	}

	r.log.Info("external catalog loaded", "records", total, "sources", len(sources))
	return sources, bySource, total, nil
}

// produce pages internal records into the jobs channel, skipping ids
// already covered by the checkpoint.
func (r *Runner) produce(ctx context.Context, jobs chan<- domain.InternalProduct, processed map[int64]bool, summary *Summary) error {
	for offset := 0; ; offset += r.cfg.PageSize {
		page, err := r.catalog.LoadInternalPage(ctx, r.cfg.PageSize, offset)
		if err != nil {
			return fmt.Errorf("loading internal page at offset %d: %w", offset, err)
		}

		for _, rec := range page {
			if processed[rec.ID] {
				summary.InternalSkipped++
				continue
			}
			select {
			case jobs <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if len(page) < r.cfg.PageSize {
			return nil
		}
	}
}

// score runs the engine for each internal record against every source's
// external set and forwards the qualifying candidates.
func (r *Runner) score(ctx context.Context, jobs <-chan domain.InternalProduct, results chan<- scored, sources []domain.Source, externalsBySource map[int64][]domain.ExternalProduct) error {
	for rec := range jobs {
		var qualifying []domain.MatchCandidate
		for _, source := range sources {
			candidates := r.engine.FindMatches(ctx, rec, externalsBySource[source.ID], source)
			for _, c := range candidates {
				if c.Confidence >= r.cfg.MinReportConfidence {
					qualifying = append(qualifying, c)
				}
			}
		}

		select {
		case results <- scored{internal: rec, qualifying: qualifying}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// collect is the single writer: it streams qualifying rows to the sink,
// marks records processed and flushes the checkpoint periodically. Returning
// a non-nil error cancels the producer and workers.
func (r *Runner) collect(results <-chan scored, processed map[int64]bool, summary *Summary, cancel context.CancelFunc) error {
	var firstErr error
	sinceCheckpoint := 0

	for res := range results {
		if firstErr != nil {
			continue // drain
		}

		for _, c := range res.qualifying {
			if err := r.sink.Write(res.internal, c); err != nil {
				firstErr = fmt.Errorf("writing report row: %w", err)
				cancel()
				break
			}
			summary.observe(c)
		}
		if firstErr != nil {
			continue
		}

		processed[res.internal.ID] = true
		summary.InternalProcessed++
		sinceCheckpoint++

		if sinceCheckpoint >= r.cfg.CheckpointEvery {
			if err := r.ckpt.Save(processed); err != nil {
				firstErr = fmt.Errorf("saving checkpoint: %w", err)
				cancel()
				continue
			}
			sinceCheckpoint = 0
		}

		if summary.InternalProcessed%r.cfg.ProgressEvery == 0 {
			r.log.Info("batch progress",
				"internal_processed", summary.InternalProcessed,
				"matches_written", summary.MatchesWritten)
		}
	}

	return firstErr
}
