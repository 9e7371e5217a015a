package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shelflink/backend/internal/domain"
)

// MatchStore implements domain.MatchRepository over gorm.
type MatchStore struct {
	db *gorm.DB
}

// NewMatchStore creates a match store.
func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db}
}

// Create inserts a match record. The active-pair invariant is enforced
// twice: a check inside the transaction for a friendly error, and the
// partial unique index underneath for correctness under concurrent writers.
func (s *MatchStore) Create(ctx context.Context, record *domain.MatchRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record.Status == domain.StatusMatched {
			var count int64
			if err := tx.Model(&domain.MatchRecord{}).
				Where("local_product_id = ? AND external_product_key = ? AND source_id = ? AND status = ?",
					record.LocalProductID, record.ExternalProductKey, record.SourceID, domain.StatusMatched).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return domain.ErrMatchConflict
			}
		}
		return tx.Create(record).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrMatchConflict) || isUniqueViolation(err) {
			return domain.ErrMatchConflict
		}
		return fmt.Errorf("inserting match record: %w", err)
	}
	return nil
}

// Supersede transitions the active matched record for a pair to superseded,
// bumping version and audit fields. Returns domain.ErrMatchNotFound when no
// active record exists.
func (s *MatchStore) Supersede(ctx context.Context, pair domain.PairKey, updatedBy string) error {
	result := s.db.WithContext(ctx).Model(&domain.MatchRecord{}).
		Where("local_product_id = ? AND external_product_key = ? AND source_id = ? AND status = ?",
			pair.LocalProductID, pair.ExternalProductKey, pair.SourceID, domain.StatusMatched).
		Updates(map[string]interface{}{
			"status":     domain.StatusSuperseded,
			"updated_at": time.Now().UTC(),
			"updated_by": updatedBy,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("superseding match: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

// List returns records matching the filter, newest first.
func (s *MatchStore) List(ctx context.Context, filter domain.MatchFilter) ([]domain.MatchRecord, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")

	if filter.LocalProductID != nil {
		query = query.Where("local_product_id = ?", *filter.LocalProductID)
	}
	if filter.ExternalProductKey != nil {
		query = query.Where("external_product_key = ?", *filter.ExternalProductKey)
	}
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []domain.MatchRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing match records: %w", err)
	}
	return records, nil
}

// DecidedPairs returns the latest non-superseded decision per external key
// for one internal record and source.
func (s *MatchStore) DecidedPairs(ctx context.Context, localProductID, sourceID int64) (map[string]domain.MatchStatus, error) {
	var records []domain.MatchRecord
	if err := s.db.WithContext(ctx).
		Where("local_product_id = ? AND source_id = ? AND status IN ?",
			localProductID, sourceID, []domain.MatchStatus{domain.StatusMatched, domain.StatusNotMatched}).
		Order("created_at").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("loading decided pairs: %w", err)
	}

	decided := make(map[string]domain.MatchStatus, len(records))
	for _, r := range records {
		decided[r.ExternalProductKey] = r.Status
	}
	return decided, nil
}

// isUniqueViolation detects unique-index violations across the sqlite and
// postgres drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
