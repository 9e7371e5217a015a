package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the lifecycle state of a durable match decision.
type MatchStatus string

const (
	// StatusMatched is an active, reviewed-and-accepted association.
	StatusMatched MatchStatus = "matched"
	// StatusNotMatched records an explicit rejection so the pair is not
	// resurfaced on future candidate scans.
	StatusNotMatched MatchStatus = "not_matched"
	// StatusSuperseded is the terminal soft-delete state, reachable only
	// from matched. Rows are never physically deleted.
	StatusSuperseded MatchStatus = "superseded"
)

// Valid reports whether s is a known status.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusMatched, StatusNotMatched, StatusSuperseded:
		return true
	}
	return false
}

// MatchRecord is the durable, audited outcome of a match decision.
// At most one active (matched) row may exist per
// (LocalProductID, ExternalProductKey, SourceID) tuple.
type MatchRecord struct {
	ID                 uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	LocalProductID     int64       `json:"localProductId" gorm:"index;not null"`
	ExternalProductKey string      `json:"externalProductKey" gorm:"size:128;index;not null"`
	SourceID           int64       `json:"sourceId" gorm:"index;not null"`
	Score              float64     `json:"score"`
	PriceDeltaPct      *float64    `json:"priceDeltaPct,omitempty"`
	Status             MatchStatus `json:"status" gorm:"size:16;index;not null"`
	ReviewedBy         string      `json:"reviewedBy" gorm:"size:128"`
	ReviewedAt         *time.Time  `json:"reviewedAt,omitempty"`
	Notes              string      `json:"notes" gorm:"type:text"`
	Version            int         `json:"version" gorm:"not null;default:1"`
	CreatedAt          time.Time   `json:"createdAt"`
	CreatedBy          string      `json:"createdBy" gorm:"size:128"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	UpdatedBy          string      `json:"updatedBy" gorm:"size:128"`
}

// TableName sets the table name for MatchRecord.
func (MatchRecord) TableName() string { return "match_records" }

// PairKey identifies a (local, external, source) pair.
type PairKey struct {
	LocalProductID     int64  `json:"localProductId"`
	ExternalProductKey string `json:"externalProductKey"`
	SourceID           int64  `json:"sourceId"`
}

// Pair returns the record's pair key.
func (m MatchRecord) Pair() PairKey {
	return PairKey{
		LocalProductID:     m.LocalProductID,
		ExternalProductKey: m.ExternalProductKey,
		SourceID:           m.SourceID,
	}
}
