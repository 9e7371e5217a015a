package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies an external catalog (a retailer or scrape target).
type Source struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"size:64;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName sets the table name for Source.
func (Source) TableName() string { return "sources" }

// InternalProduct is a record from our own catalog. Optional fields use
// pointers: a nil price means "not known", which is scored neutrally and
// must never be conflated with a zero price.
type InternalProduct struct {
	ID         int64            `json:"id" gorm:"primaryKey"`
	Title      string           `json:"title" gorm:"size:512;not null"`
	Brand      *string          `json:"brand,omitempty" gorm:"size:255"`
	Category   *string          `json:"category,omitempty" gorm:"size:255"`
	Price      *decimal.Decimal `json:"price,omitempty" gorm:"type:decimal(12,2)"`
	Identifier *string          `json:"identifier,omitempty" gorm:"size:14;index"`

	// Descriptive passthrough fields. Carried to output, never scored.
	Description string `json:"description,omitempty" gorm:"type:text"`
	SKU         string `json:"sku,omitempty" gorm:"size:128"`
	ImageURL    string `json:"imageUrl,omitempty" gorm:"size:1024"`
	URL         string `json:"url,omitempty" gorm:"size:1024"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for InternalProduct.
func (InternalProduct) TableName() string { return "internal_products" }

// ExternalProduct is a record scraped or imported from an external catalog.
// (SourceID, ExternalKey) identifies it within that catalog.
type ExternalProduct struct {
	ID          int64            `json:"id" gorm:"primaryKey"`
	SourceID    int64            `json:"sourceId" gorm:"index:idx_external_source_key,unique"`
	ExternalKey string           `json:"externalKey" gorm:"size:128;index:idx_external_source_key,unique"`
	Title       string           `json:"title" gorm:"size:512;not null"`
	Brand       *string          `json:"brand,omitempty" gorm:"size:255"`
	Category    *string          `json:"category,omitempty" gorm:"size:255"`
	Price       *decimal.Decimal `json:"price,omitempty" gorm:"type:decimal(12,2)"`
	SalePrice   *decimal.Decimal `json:"salePrice,omitempty" gorm:"type:decimal(12,2)"`
	Identifier  *string          `json:"identifier,omitempty" gorm:"size:14;index"`

	Description string `json:"description,omitempty" gorm:"type:text"`
	SKU         string `json:"sku,omitempty" gorm:"size:128"`
	ImageURL    string `json:"imageUrl,omitempty" gorm:"size:1024"`
	URL         string `json:"url,omitempty" gorm:"size:1024"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for ExternalProduct.
func (ExternalProduct) TableName() string { return "external_products" }

// OnSale reports whether the external record carries a discount price.
// A sale relaxes the perfect-band threshold during price scoring.
func (p ExternalProduct) OnSale() bool { return p.SalePrice != nil }

// EffectivePrice returns the sale price when present, else the list price.
func (p ExternalProduct) EffectivePrice() *decimal.Decimal {
	if p.SalePrice != nil {
		return p.SalePrice
	}
	return p.Price
}

// PriceDeltaPct computes the relative price difference between two prices as
// a percentage of the internal price. Returns nil when either side is
// missing or the internal price is zero.
func PriceDeltaPct(internal, external *decimal.Decimal) *float64 {
	if internal == nil || external == nil || internal.IsZero() {
		return nil
	}
	delta := external.Sub(*internal).Div(*internal).InexactFloat64() * 100
	return &delta
}
