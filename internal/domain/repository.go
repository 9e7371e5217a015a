package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogRepository defines paged read access to the two catalogs. All
// catalog I/O happens at the edges; nothing inside the scoring hot path
// touches storage.
type CatalogRepository interface {
	// LoadInternalPage returns up to limit internal records starting at offset.
	LoadInternalPage(ctx context.Context, limit, offset int) ([]InternalProduct, error)

	// LoadExternalPage returns up to limit external records starting at
	// offset. sourceID of zero means all sources.
	LoadExternalPage(ctx context.Context, limit, offset int, sourceID int64) ([]ExternalProduct, error)

	// GetInternalProduct returns one internal record by id.
	GetInternalProduct(ctx context.Context, id int64) (*InternalProduct, error)

	// GetSource returns one source by id.
	GetSource(ctx context.Context, id int64) (*Source, error)

	// ListSources returns all known external sources.
	ListSources(ctx context.Context) ([]Source, error)
}

// MatchFilter narrows a MatchRepository listing.
type MatchFilter struct {
	LocalProductID     *int64
	ExternalProductKey *string
	SourceID           *int64
	Status             *MatchStatus
	Limit              int
	Offset             int
}

// MatchRepository persists durable match decisions. Create must enforce the
// pair-uniqueness invariant for active matches at the storage layer, since
// check-then-insert is race-prone under concurrent writers.
type MatchRepository interface {
	// Create inserts a new match record. Returns ErrMatchConflict when an
	// active (matched) record already exists for the pair.
	Create(ctx context.Context, record *MatchRecord) error

	// Supersede transitions the active matched record for the pair to
	// superseded. Returns ErrMatchNotFound when no active record exists.
	Supersede(ctx context.Context, pair PairKey, updatedBy string) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter MatchFilter) ([]MatchRecord, error)

	// DecidedPairs returns the latest non-superseded decision status per
	// external key for one internal record and source. Consumed by the
	// candidate-assembly layer to mark candidates already decided.
	DecidedPairs(ctx context.Context, localProductID, sourceID int64) (map[string]MatchStatus, error)
}

// ReportSink receives qualifying candidates as they are discovered by the
// batch driver. Writes must be append-only and order-independent.
type ReportSink interface {
	Write(internal InternalProduct, candidate MatchCandidate) error
	Close() error
}
