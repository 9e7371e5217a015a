package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shelflink/backend/internal/domain"
)

// Feature scoring constants (0-100 scale).
const (
	brandScoreExact    = 100.0
	brandScoreAlias    = 90.0
	brandScoreInferred = 75.0
	brandInferredFloor = 0.75 // fuzzy brand similarity required for "inferred"

	categoryScoreExactLeaf  = 100.0
	categoryScoreSameBranch = 85.0
	categoryScoreSameDept   = 65.0

	priceScoreNeutral = 70.0 // either price missing: neutral, not a penalty
	priceScoreFloor   = 40.0 // linear band bottoms out here at 30% difference
	priceScoreFar     = 20.0 // beyond 30% difference
	pricePerfectBand  = 0.10
	priceSaleBand     = 0.15 // sale-flagged externals get a relaxed band
	priceFarBand      = 0.30

	accessoryPenalty = 10.0
	packPenalty      = 8.0
)

// accessoryWords flag add-on products. A name mentioning one while the
// other does not usually means a cover or charger is being compared against
// the product itself.
var accessoryWords = []string{"cover", "case", "strap", "adapter", "charger", "liner", "refill"}

// packCountRegex captures explicit pack/count numbers like "2 pack",
// "24-count" or "12 pcs".
var packCountRegex = regexp.MustCompile(`(?i)(\d+)\s*[- ]?(pack|count|pcs|ct)\b`)

// modelTokenRegex captures SKU-like alphanumeric model tokens such as
// "gx450" or "b7000-x".
var modelTokenRegex = regexp.MustCompile(`(?i)\b[a-z]*\d+[a-z0-9-]*\b`)

// scoreFlags carries the risk signals a pair accumulated during feature
// scoring. They never raise a score; the engine consumes them as caps.
type scoreFlags struct {
	brandConflict   bool
	crossDepartment bool
	modelMismatch   bool
}

// FeatureScorer turns similarity primitives into per-field 0-100 subscores.
type FeatureScorer struct {
	taxonomy *Taxonomy
}

// NewFeatureScorer creates a scorer over the given taxonomy tables.
func NewFeatureScorer(taxonomy *Taxonomy) *FeatureScorer {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	return &FeatureScorer{taxonomy: taxonomy}
}

// NameScore computes the 0-100 name subscore. Base is semantic name
// similarity; penalties apply for one-sided accessory terms and mismatched
// pack counts. A model-number mismatch on core-gear categories does not
// subtract points here but raises the modelMismatch flag for the engine's
// cap stage.
func (f *FeatureScorer) NameScore(internal domain.InternalProduct, external domain.ExternalProduct, flags *scoreFlags, reasons *[]string) float64 {
	score := NameSimilarity(internal.Title, external.Title) * 100

	if accessoryMismatch(internal.Title, external.Title) {
		score -= accessoryPenalty
		*reasons = append(*reasons, "accessory term on one side only (-10 name)")
	}

	if packCountMismatch(internal.Title, external.Title) {
		score -= packPenalty
		*reasons = append(*reasons, "pack count mismatch (-8 name)")
	}

	if f.modelNumberMismatch(internal, external) {
		flags.modelMismatch = true
	}

	if score < 0 {
		score = 0
	}
	return score
}

// BrandScore computes the 0-100 brand subscore. An absent brand on either
// side contributes zero without flagging a conflict; a present-but-alien
// brand flags brandConflict for the cap stage.
func (f *FeatureScorer) BrandScore(internal, external *string, flags *scoreFlags, reasons *[]string) float64 {
	if internal == nil || external == nil {
		return 0.0
	}

	a := *internal
	b := *external
	if normalizeBrand(a) != "" && normalizeBrand(a) == normalizeBrand(b) {
		return brandScoreExact
	}
	if f.taxonomy.BrandsAliased(a, b) {
		*reasons = append(*reasons, fmt.Sprintf("brand alias: %q ~ %q", a, b))
		return brandScoreAlias
	}
	if BrandSimilarity(a, b) > brandInferredFloor {
		*reasons = append(*reasons, fmt.Sprintf("brand inferred: %q ~ %q", a, b))
		return brandScoreInferred
	}

	flags.brandConflict = true
	*reasons = append(*reasons, fmt.Sprintf("brand conflict: %q vs %q", a, b))
	return 0.0
}

// CategoryScore computes the 0-100 category subscore. An absent category on
// either side contributes zero without flagging; unrelated categories flag
// crossDepartment for the cap stage.
func (f *FeatureScorer) CategoryScore(internal, external *string, flags *scoreFlags, reasons *[]string) float64 {
	if internal == nil || external == nil {
		return 0.0
	}

	a := *internal
	b := *external
	if categoryLeaf(a) == categoryLeaf(b) {
		return categoryScoreExactLeaf
	}
	if f.taxonomy.SameBranch(a, b) {
		return categoryScoreSameBranch
	}
	if f.taxonomy.SameDepartment(a, b) {
		return categoryScoreSameDept
	}

	flags.crossDepartment = true
	*reasons = append(*reasons, fmt.Sprintf("cross-department categories: %q vs %q", a, b))
	return 0.0
}

// PriceScore computes the 0-100 price subscore. A missing price on either
// side is neutral (70). Within the perfect band (±10%, ±15% when the
// external record is on sale) scores 100; between the band and 30% the
// score interpolates linearly down to 40; beyond 30% it is a flat 20.
func (f *FeatureScorer) PriceScore(internal *domain.InternalProduct, external *domain.ExternalProduct, reasons *[]string) float64 {
	externalPrice := external.EffectivePrice()
	if internal.Price == nil || externalPrice == nil {
		return priceScoreNeutral
	}

	band := pricePerfectBand
	if external.OnSale() {
		band = priceSaleBand
	}

	rel := relativePriceDiff(*internal.Price, *externalPrice)
	switch {
	case rel <= band:
		return 100.0
	case rel <= priceFarBand:
		// Linear interpolation from 100 at the band edge down to 40 at 30%.
		fraction := (rel - band) / (priceFarBand - band)
		return 100.0 - fraction*(100.0-priceScoreFloor)
	default:
		*reasons = append(*reasons, fmt.Sprintf("price differs by %.0f%%", rel*100))
		return priceScoreFar
	}
}

// modelNumberMismatch detects differing SKU-like model tokens on recognized
// core-gear categories.
func (f *FeatureScorer) modelNumberMismatch(internal domain.InternalProduct, external domain.ExternalProduct) bool {
	coreGear := false
	if internal.Category != nil && f.taxonomy.IsCoreGear(*internal.Category) {
		coreGear = true
	}
	if external.Category != nil && f.taxonomy.IsCoreGear(*external.Category) {
		coreGear = true
	}
	if !coreGear {
		return false
	}

	modelsA := modelTokens(internal.Title)
	modelsB := modelTokens(external.Title)
	if len(modelsA) == 0 || len(modelsB) == 0 {
		return false
	}

	for tok := range modelsA {
		if modelsB[tok] {
			return false
		}
	}
	return true
}

// modelTokens extracts alphanumeric SKU-like tokens (letters and digits
// mixed, at least three characters) from a product name.
func modelTokens(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, match := range modelTokenRegex.FindAllString(strings.ToLower(name), -1) {
		if len(match) < 3 {
			continue
		}
		if !containsLetter(match) || !containsDigit(match) {
			continue
		}
		tokens[match] = true
	}
	return tokens
}

// accessoryMismatch reports whether exactly one of the two names mentions
// an accessory-type word.
func accessoryMismatch(a, b string) bool {
	return mentionsAccessory(a) != mentionsAccessory(b)
}

func mentionsAccessory(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range accessoryWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// packCountMismatch reports whether both names encode explicit pack/count
// numbers and the numbers differ.
func packCountMismatch(a, b string) bool {
	countA, okA := packCount(a)
	countB, okB := packCount(b)
	return okA && okB && countA != countB
}

func packCount(name string) (string, bool) {
	match := packCountRegex.FindStringSubmatch(name)
	if match == nil {
		return "", false
	}
	return strings.TrimLeft(match[1], "0"), true
}

func containsLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
