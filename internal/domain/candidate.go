package domain

import "github.com/shopspring/decimal"

// Tier is the confidence bucket assigned to a scored candidate.
type Tier string

const (
	TierHigh   Tier = "high"
	TierReview Tier = "review"
	TierLow    Tier = "low"
)

// Scenario tags how a candidate was matched.
type Scenario string

const (
	// ScenarioIdentifierExact marks a GTIN short-circuit match.
	ScenarioIdentifierExact Scenario = "IDENTIFIER_EXACT"
	// ScenarioFeatureScored marks a weighted multi-feature match.
	ScenarioFeatureScored Scenario = "FEATURE_SCORED"
)

// Subscores holds the per-field 0-100 scores that feed the weighted blend.
type Subscores struct {
	Name     float64 `json:"name"`
	Brand    float64 `json:"brand"`
	Category float64 `json:"category"`
	Price    float64 `json:"price"`
}

// MatchCandidate is an ephemeral, engine-produced pairing between one
// internal and one external record. It is never persisted as-is; accepting
// or rejecting it produces a MatchRecord.
type MatchCandidate struct {
	InternalID  int64  `json:"internalId"`
	SourceID    int64  `json:"sourceId"`
	ExternalKey string `json:"externalKey"`

	OverallScore  float64   `json:"overallScore"` // 0-1
	Confidence    float64   `json:"confidence"`   // 0-100
	Tier          Tier      `json:"tier"`
	Scenario      Scenario  `json:"scenario"`
	Subscores     Subscores `json:"subscores"`
	Reasons       []string  `json:"reasons"`
	PriceDeltaPct *float64  `json:"priceDeltaPct,omitempty"`

	// Display copies of the external record.
	ExternalTitle      string           `json:"externalTitle"`
	ExternalBrand      *string          `json:"externalBrand,omitempty"`
	ExternalCategory   *string          `json:"externalCategory,omitempty"`
	ExternalPrice      *decimal.Decimal `json:"externalPrice,omitempty"`
	ExternalIdentifier *string          `json:"externalIdentifier,omitempty"`
	ExternalImageURL   string           `json:"externalImageUrl,omitempty"`
	ExternalURL        string           `json:"externalUrl,omitempty"`

	// DecidedStatus is set by the candidate-assembly layer when a durable
	// decision already exists for this pair.
	DecidedStatus *MatchStatus `json:"decidedStatus,omitempty"`
}
