package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/logger"
)

// CandidateServiceConfig holds configuration for interactive candidate
// lookups.
type CandidateServiceConfig struct {
	// PageSize used when paging the external catalog.
	PageSize int
	// CacheTTL bounds how long an assembled candidate list is reused.
	CacheTTL time.Duration
}

// CandidateService assembles scored candidate lists for a reviewer UI.
// Flow: check cache -> load externals for source -> score -> annotate
// already-decided pairs -> cache -> return.
type CandidateService struct {
	catalog  domain.CatalogRepository
	matches  domain.MatchRepository
	engine   *MatchingService
	cache    domain.CacheRepository
	pageSize int
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewCandidateService creates the lookup service. cache may be nil to
// disable caching.
func NewCandidateService(
	catalog domain.CatalogRepository,
	matches domain.MatchRepository,
	engine *MatchingService,
	cache domain.CacheRepository,
	config CandidateServiceConfig,
	log *logger.Logger,
) *CandidateService {
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &CandidateService{
		catalog:  catalog,
		matches:  matches,
		engine:   engine,
		cache:    cache,
		pageSize: pageSize,
		cacheTTL: cacheTTL,
		log:      log.With("component", "candidates"),
	}
}

// CandidatesForProduct returns the ranked candidate list for one internal
// record against one external source. A single bad external record never
// fails the call; the engine skips it and the caller gets a partial list.
func (s *CandidateService) CandidatesForProduct(ctx context.Context, internalID, sourceID int64) ([]domain.MatchCandidate, error) {
	if internalID == 0 || sourceID == 0 {
		return nil, domain.ErrInvalidRequest
	}

	cacheKey := fmt.Sprintf("candidates:%d:%d", internalID, sourceID)
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	internal, err := s.catalog.GetInternalProduct(ctx, internalID)
	if err != nil {
		return nil, fmt.Errorf("loading internal record %d: %w", internalID, err)
	}

	source, err := s.catalog.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading source %d: %w", sourceID, err)
	}

	externals, err := s.loadExternals(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	candidates := s.engine.FindMatches(ctx, *internal, externals, *source)

	if err := s.annotateDecided(ctx, internalID, sourceID, candidates); err != nil {
		// Annotation is best-effort; the scored list is still useful.
		s.log.Warn("could not annotate decided pairs", "error", err)
	}

	s.toCache(ctx, cacheKey, candidates)
	return candidates, nil
}

// loadExternals pages through the external catalog for one source until
// exhausted.
func (s *CandidateService) loadExternals(ctx context.Context, sourceID int64) ([]domain.ExternalProduct, error) {
	var externals []domain.ExternalProduct
	for offset := 0; ; offset += s.pageSize {
		page, err := s.catalog.LoadExternalPage(ctx, s.pageSize, offset, sourceID)
		if err != nil {
			return nil, fmt.Errorf("loading external page at offset %d: %w", offset, err)
		}
		externals = append(externals, page...)
		if len(page) < s.pageSize {
			return externals, nil
		}
	}
}

// annotateDecided marks candidates whose pair already carries a durable
// decision so the UI can suppress or badge them.
func (s *CandidateService) annotateDecided(ctx context.Context, internalID, sourceID int64, candidates []domain.MatchCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	decided, err := s.matches.DecidedPairs(ctx, internalID, sourceID)
	if err != nil {
		return err
	}

	for i := range candidates {
		if status, ok := decided[candidates[i].ExternalKey]; ok {
			statusCopy := status
			candidates[i].DecidedStatus = &statusCopy
		}
	}
	return nil
}

func (s *CandidateService) fromCache(ctx context.Context, key string) []domain.MatchCandidate {
	if s.cache == nil {
		return nil
	}
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	candidates, ok := value.([]domain.MatchCandidate)
	if !ok {
		return nil
	}
	return candidates
}

func (s *CandidateService) toCache(ctx context.Context, key string, candidates []domain.MatchCandidate) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, candidates, s.cacheTTL); err != nil {
		s.log.Warn("caching candidates failed", "error", err)
	}
}
