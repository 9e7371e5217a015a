package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/logger"
)

// CreateMatchRequest carries a reviewer's (or batch job's) decision about a
// candidate pair.
type CreateMatchRequest struct {
	LocalProductID     int64              `json:"localProductId" binding:"required"`
	ExternalProductKey string             `json:"externalProductKey" binding:"required"`
	SourceID           int64              `json:"sourceId" binding:"required"`
	Score              float64            `json:"score"`
	PriceDeltaPct      *float64           `json:"priceDeltaPct,omitempty"`
	Status             domain.MatchStatus `json:"status,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	ReviewedBy         string             `json:"reviewedBy,omitempty"`
}

// MatchService owns the durable match lifecycle: create, supersede, list.
// Status transitions are the only mutation surface; rows are never hard
// deleted.
type MatchService struct {
	repo domain.MatchRepository
	log  *logger.Logger
}

// NewMatchService creates the lifecycle service.
func NewMatchService(repo domain.MatchRepository, log *logger.Logger) *MatchService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MatchService{repo: repo, log: log.With("component", "matches")}
}

// CreateMatch persists an accept (matched) or explicit reject (not_matched)
// decision. Creating a matched record for a pair that already has an active
// one fails with domain.ErrMatchConflict; the caller must remove the
// existing match first.
func (s *MatchService) CreateMatch(ctx context.Context, req CreateMatchRequest) (*domain.MatchRecord, error) {
	if req.LocalProductID == 0 || req.ExternalProductKey == "" || req.SourceID == 0 {
		return nil, domain.ErrInvalidRequest
	}

	status := req.Status
	if status == "" {
		status = domain.StatusMatched
	}
	if status != domain.StatusMatched && status != domain.StatusNotMatched {
		return nil, fmt.Errorf("%w: new records must be matched or not_matched, got %q",
			domain.ErrInvalidStatus, status)
	}

	now := time.Now().UTC()
	record := &domain.MatchRecord{
		ID:                 uuid.New(),
		LocalProductID:     req.LocalProductID,
		ExternalProductKey: req.ExternalProductKey,
		SourceID:           req.SourceID,
		Score:              req.Score,
		PriceDeltaPct:      req.PriceDeltaPct,
		Status:             status,
		ReviewedBy:         req.ReviewedBy,
		Notes:              req.Notes,
		Version:            1,
		CreatedAt:          now,
		CreatedBy:          req.ReviewedBy,
		UpdatedAt:          now,
		UpdatedBy:          req.ReviewedBy,
	}
	if req.ReviewedBy != "" {
		record.ReviewedAt = &now
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("creating match: %w", err)
	}

	s.log.Info("match recorded",
		"local_product_id", record.LocalProductID,
		"external_key", record.ExternalProductKey,
		"source_id", record.SourceID,
		"status", record.Status,
		"score", record.Score)

	return record, nil
}

// RemoveMatch soft-deletes the active match for a pair by transitioning it
// to superseded, preserving the audit trail. Returns domain.ErrMatchNotFound
// when no active match exists.
func (s *MatchService) RemoveMatch(ctx context.Context, pair domain.PairKey, removedBy string) error {
	if pair.LocalProductID == 0 || pair.ExternalProductKey == "" || pair.SourceID == 0 {
		return domain.ErrInvalidRequest
	}

	if err := s.repo.Supersede(ctx, pair, removedBy); err != nil {
		return fmt.Errorf("removing match: %w", err)
	}

	s.log.Info("match superseded",
		"local_product_id", pair.LocalProductID,
		"external_key", pair.ExternalProductKey,
		"source_id", pair.SourceID)

	return nil
}

// ListMatches returns match records for the given filter, newest first.
// Listing current matches for a product always filters status=matched at
// the caller.
func (s *MatchService) ListMatches(ctx context.Context, filter domain.MatchFilter) ([]domain.MatchRecord, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	return records, nil
}
