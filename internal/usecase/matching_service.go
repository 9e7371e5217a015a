package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/logger"
)

// MatchingConfig holds every weight, cap and threshold the engine applies.
// Defaults mirror the tuned production constants; callers adjust values
// through configuration instead of forking code.
type MatchingConfig struct {
	NameWeight     float64
	BrandWeight    float64
	CategoryWeight float64
	PriceWeight    float64

	BrandConflictCap   float64
	CrossDepartmentCap float64
	ModelMismatchCap   float64

	// MinOverallScore is the acceptance floor: pairs scoring below it are
	// discarded before classification.
	MinOverallScore float64

	// Tier boundaries on the 0-100 confidence scale.
	HighTierConfidence   float64
	ReviewTierConfidence float64

	// MaxCandidates truncates the ranked result list per internal record
	// per source.
	MaxCandidates int
}

// DefaultMatchingConfig returns the production defaults.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		NameWeight:           0.50,
		BrandWeight:          0.20,
		CategoryWeight:       0.15,
		PriceWeight:          0.15,
		BrandConflictCap:     0.60,
		CrossDepartmentCap:   0.55,
		ModelMismatchCap:     0.65,
		MinOverallScore:      0.30,
		HighTierConfidence:   85.0,
		ReviewTierConfidence: 70.0,
		MaxCandidates:        10,
	}
}

// MatchingService scores one internal record against external candidate
// records. It is purely synchronous and side-effect-free per call; the only
// shared structure is the optional decision log, which is append-only and
// best-effort.
type MatchingService struct {
	cfg       MatchingConfig
	scorer    *FeatureScorer
	decisions *DecisionLog
	log       *logger.Logger
}

// NewMatchingService creates an engine with the given configuration and
// taxonomy. decisions may be nil to disable decision logging.
func NewMatchingService(cfg MatchingConfig, taxonomy *Taxonomy, decisions *DecisionLog, log *logger.Logger) *MatchingService {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMatchingConfig().MaxCandidates
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &MatchingService{
		cfg:       cfg,
		scorer:    NewFeatureScorer(taxonomy),
		decisions: decisions,
		log:       log.With("component", "matching"),
	}
}

// FindMatches scores internal against every external record, keeps the
// candidates that clear the acceptance floor, ranks them by score and
// truncates to the configured maximum. One malformed external record never
// aborts the scan: per-pair panics are recovered, logged and skipped.
func (s *MatchingService) FindMatches(ctx context.Context, internal domain.InternalProduct, externals []domain.ExternalProduct, source domain.Source) []domain.MatchCandidate {
	if internal.Title == "" {
		s.reject(internal.ID, "", "missing title on internal record")
		return nil
	}

	candidates := make([]domain.MatchCandidate, 0, len(externals))
	for i := range externals {
		select {
		case <-ctx.Done():
			return candidates
		default:
		}

		candidate := s.scorePairSafe(internal, &externals[i], source)
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].OverallScore > candidates[j].OverallScore
	})
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}

	return candidates
}

// scorePairSafe wraps scorePair with panic recovery so a malformed record
// is skipped rather than aborting the caller's scan loop.
func (s *MatchingService) scorePairSafe(internal domain.InternalProduct, external *domain.ExternalProduct, source domain.Source) (candidate *domain.MatchCandidate) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("scoring panic, skipping pair",
				"internal_id", internal.ID,
				"external_key", external.ExternalKey,
				"panic", fmt.Sprint(r))
			candidate = nil
		}
	}()
	return s.scorePair(internal, external, source)
}

// scorePair runs the staged scoring pipeline for one pair. It returns nil
// when the pair is rejected by the mandatory gate or the acceptance floor.
func (s *MatchingService) scorePair(internal domain.InternalProduct, external *domain.ExternalProduct, source domain.Source) *domain.MatchCandidate {
	// Stage 0: both records must carry a title. No other field is
	// mandatory; absent fields score neutrally instead of rejecting.
	if external.Title == "" {
		s.reject(internal.ID, external.ExternalKey, "missing title on external record")
		return nil
	}

	// Stage 1: identifier short-circuit. An exact normalized GTIN match is
	// the only path that bypasses feature weighting entirely.
	if s.identifierExact(internal, external) {
		candidate := s.newCandidate(internal, external, source)
		candidate.OverallScore = 1.0
		candidate.Confidence = 100.0
		candidate.Tier = domain.TierHigh
		candidate.Scenario = domain.ScenarioIdentifierExact
		candidate.Subscores = domain.Subscores{Name: 100, Brand: 100, Category: 100, Price: 100}
		candidate.Reasons = []string{"identifier exact match"}
		s.accept(candidate)
		return candidate
	}

	// Stage 2: per-field feature scoring.
	var flags scoreFlags
	reasons := make([]string, 0, 4)

	subscores := domain.Subscores{
		Name:     s.scorer.NameScore(internal, *external, &flags, &reasons),
		Brand:    s.scorer.BrandScore(internal.Brand, external.Brand, &flags, &reasons),
		Category: s.scorer.CategoryScore(internal.Category, external.Category, &flags, &reasons),
		Price:    s.scorer.PriceScore(&internal, external, &reasons),
	}

	score := (subscores.Name*s.cfg.NameWeight +
		subscores.Brand*s.cfg.BrandWeight +
		subscores.Category*s.cfg.CategoryWeight +
		subscores.Price*s.cfg.PriceWeight) / 100.0

	// Stage 3: caps. Each cap only ever lowers the score, in this order.
	if flags.brandConflict && score > s.cfg.BrandConflictCap {
		score = s.cfg.BrandConflictCap
		reasons = append(reasons, fmt.Sprintf("brand conflict: score capped at %.2f", s.cfg.BrandConflictCap))
	}
	if flags.crossDepartment && score > s.cfg.CrossDepartmentCap {
		score = s.cfg.CrossDepartmentCap
		reasons = append(reasons, fmt.Sprintf("cross-department: score capped at %.2f", s.cfg.CrossDepartmentCap))
	}
	if flags.modelMismatch && score > s.cfg.ModelMismatchCap {
		score = s.cfg.ModelMismatchCap
		reasons = append(reasons, fmt.Sprintf("model number mismatch: score capped at %.2f", s.cfg.ModelMismatchCap))
	}

	// Stage 4: acceptance floor.
	if score < s.cfg.MinOverallScore {
		s.reject(internal.ID, external.ExternalKey,
			fmt.Sprintf("score %.2f below floor %.2f", score, s.cfg.MinOverallScore))
		return nil
	}

	// Stage 5: tier classification.
	candidate := s.newCandidate(internal, external, source)
	candidate.OverallScore = score
	candidate.Confidence = score * 100
	candidate.Scenario = domain.ScenarioFeatureScored
	candidate.Subscores = subscores

	switch {
	case candidate.Confidence >= s.cfg.HighTierConfidence:
		candidate.Tier = domain.TierHigh
	case candidate.Confidence >= s.cfg.ReviewTierConfidence:
		candidate.Tier = domain.TierReview
	default:
		candidate.Tier = domain.TierLow
		reasons = append(reasons, "low confidence: review carefully")
	}
	candidate.Reasons = reasons

	s.accept(candidate)
	return candidate
}

func (s *MatchingService) identifierExact(internal domain.InternalProduct, external *domain.ExternalProduct) bool {
	if internal.Identifier == nil || external.Identifier == nil {
		return false
	}
	gtinA := NormalizeGTIN(*internal.Identifier)
	gtinB := NormalizeGTIN(*external.Identifier)
	return gtinA != "" && gtinA == gtinB
}

func (s *MatchingService) newCandidate(internal domain.InternalProduct, external *domain.ExternalProduct, source domain.Source) *domain.MatchCandidate {
	return &domain.MatchCandidate{
		InternalID:         internal.ID,
		SourceID:           source.ID,
		ExternalKey:        external.ExternalKey,
		PriceDeltaPct:      domain.PriceDeltaPct(internal.Price, external.EffectivePrice()),
		ExternalTitle:      external.Title,
		ExternalBrand:      external.Brand,
		ExternalCategory:   external.Category,
		ExternalPrice:      external.Price,
		ExternalIdentifier: external.Identifier,
		ExternalImageURL:   external.ImageURL,
		ExternalURL:        external.URL,
	}
}

func (s *MatchingService) accept(candidate *domain.MatchCandidate) {
	if s.decisions == nil {
		return
	}
	s.decisions.Record(Decision{
		Accepted:    true,
		InternalID:  candidate.InternalID,
		ExternalKey: candidate.ExternalKey,
		Reason:      fmt.Sprintf("accepted at %.2f (%s)", candidate.OverallScore, candidate.Tier),
		Subscores:   &candidate.Subscores,
	})
}

func (s *MatchingService) reject(internalID int64, externalKey, reason string) {
	if s.decisions == nil {
		return
	}
	s.decisions.Record(Decision{
		Accepted:    false,
		InternalID:  internalID,
		ExternalKey: externalKey,
		Reason:      reason,
	})
}
