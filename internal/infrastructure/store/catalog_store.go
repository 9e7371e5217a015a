package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shelflink/backend/internal/domain"
)

// CatalogStore implements domain.CatalogRepository over gorm.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a catalog store.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// LoadInternalPage returns up to limit internal records starting at offset,
// ordered by id so pagination is stable.
func (s *CatalogStore) LoadInternalPage(ctx context.Context, limit, offset int) ([]domain.InternalProduct, error) {
	var records []domain.InternalProduct
	if err := s.db.WithContext(ctx).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("loading internal page: %w", err)
	}
	return records, nil
}

// LoadExternalPage returns up to limit external records starting at offset.
// sourceID of zero means all sources.
func (s *CatalogStore) LoadExternalPage(ctx context.Context, limit, offset int, sourceID int64) ([]domain.ExternalProduct, error) {
	query := s.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset)
	if sourceID != 0 {
		query = query.Where("source_id = ?", sourceID)
	}

	var records []domain.ExternalProduct
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("loading external page: %w", err)
	}
	return records, nil
}

// GetInternalProduct returns one internal record by id.
func (s *CatalogStore) GetInternalProduct(ctx context.Context, id int64) (*domain.InternalProduct, error) {
	var record domain.InternalProduct
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("loading internal record %d: %w", id, err)
	}
	return &record, nil
}

// GetSource returns one source by id.
func (s *CatalogStore) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	var source domain.Source
	if err := s.db.WithContext(ctx).First(&source, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, fmt.Errorf("loading source %d: %w", id, err)
	}
	return &source, nil
}

// ListSources returns all known external sources.
func (s *CatalogStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	var sources []domain.Source
	if err := s.db.WithContext(ctx).Order("id").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return sources, nil
}
