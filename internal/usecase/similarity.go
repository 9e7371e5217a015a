package usecase

import (
	"math"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// Reusable metric instances; both are stateless after construction.
var (
	sorensenDice = metrics.NewSorensenDice()
	jaroWinkler  = metrics.NewJaroWinkler()
)

// Blend weights for name similarity.
const (
	nameWeightJaccard  = 0.30
	nameWeightCosine   = 0.25
	nameWeightEditDist = 0.20
	nameWeightDice     = 0.15
	nameWeightSemantic = 0.10
)

// legalSuffixes are corporate suffixes stripped during brand normalization.
var legalSuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "co": true, "corp": true,
	"company": true, "gmbh": true, "sa": true, "plc": true,
}

// NameSimilarity scores two product names in [0,1]. Identical normalized
// names score 1.0. Names whose key-term sets share nothing score 0.0
// regardless of raw overlap: shared filler words must never produce a match.
// Otherwise the score is a weighted blend of token-set Jaccard, term
// frequency cosine, normalized edit distance, Sorensen-Dice and
// stemmed-token Jaccard, scaled by key-term coverage.
func NameSimilarity(a, b string) float64 {
	normA := normalizeText(a)
	normB := normalizeText(b)
	if normA == "" || normB == "" {
		return 0.0
	}
	if normA == normB {
		return 1.0
	}

	termsA := keyTerms(a)
	termsB := keyTerms(b)
	overlap := overlapCoefficient(termsA, termsB)
	if overlap == 0 {
		return 0.0
	}

	tokensA := tokenize(a)
	tokensB := tokenize(b)

	blend := nameWeightJaccard*jaccardSimilarity(tokensA, tokensB) +
		nameWeightCosine*cosineSimilarity(tokensA, tokensB) +
		nameWeightEditDist*editSimilarity(normA, normB) +
		nameWeightDice*strutil.Similarity(normA, normB, sorensenDice) +
		nameWeightSemantic*jaccardSimilarity(stemTokens(tokensA), stemTokens(tokensB))

	// Reward full key-term coverage, punish partial coverage.
	score := blend * (0.7 + 0.3*overlap)

	return clamp01(score)
}

// BrandSimilarity scores two brand strings in [0,1]. Brand is a strong,
// near-binary identity signal, so fuzzy scores below a strict staircase
// collapse to zero rather than contributing noise.
func BrandSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}

	normA := normalizeBrand(a)
	normB := normalizeBrand(b)
	if normA != "" && normA == normB {
		return 0.95
	}

	best := math.Max(
		strutil.Similarity(normA, normB, jaroWinkler),
		math.Max(editSimilarity(normA, normB), strutil.Similarity(normA, normB, sorensenDice)),
	)

	switch {
	case best >= 0.95:
		return best * 0.8
	case best >= 0.90:
		return best * 0.6
	case best >= 0.85:
		return best * 0.4
	default:
		return 0.0
	}
}

// CategorySimilarity scores two category labels in [0,1] using the
// taxonomy's related-pair table, falling back to damped stemmed-token
// similarity.
func CategorySimilarity(a, b string, tax *Taxonomy) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	leafA := categoryLeaf(a)
	leafB := categoryLeaf(b)
	if leafA == leafB {
		return 1.0
	}

	if score, ok := tax.RelatedCategoryScore(a, b); ok {
		return score
	}

	semantic := jaccardSimilarity(
		stemTokens(strings.Fields(leafA)),
		stemTokens(strings.Fields(leafB)),
	)
	switch {
	case semantic >= 0.9:
		return semantic * 0.8
	case semantic >= 0.8:
		return semantic * 0.6
	default:
		return 0.0
	}
}

// PriceSimilarity maps the relative difference between two prices through a
// decreasing step function. Both prices must be present; the feature-level
// price score owns the "missing price" neutral value.
func PriceSimilarity(a, b *decimal.Decimal) float64 {
	if a == nil || b == nil {
		return 0.0
	}

	rel := relativePriceDiff(*a, *b)
	switch {
	case rel <= 0.02:
		return 1.0
	case rel <= 0.05:
		return 0.9
	case rel <= 0.10:
		return 0.75
	case rel <= 0.15:
		return 0.6
	case rel <= 0.20:
		return 0.45
	case rel <= 0.30:
		return 0.3
	case rel <= 0.40:
		return 0.2
	default:
		return 0.1
	}
}

// IdentifierSimilarity scores two product codes in [0,1]. Exact match after
// stripping separators scores 1.0; one code fully containing the other
// (format padding differences) scores 0.8; anything fuzzier only counts when
// the edit similarity clears 0.8 and is then damped, so loose fuzziness on
// identifiers cannot create a false positive.
func IdentifierSimilarity(a, b string) float64 {
	codeA := stripIdentifier(a)
	codeB := stripIdentifier(b)
	if codeA == "" || codeB == "" {
		return 0.0
	}
	if codeA == codeB {
		return 1.0
	}
	if strings.Contains(codeA, codeB) || strings.Contains(codeB, codeA) {
		return 0.8
	}

	sim := editSimilarity(codeA, codeB)
	if sim > 0.8 {
		return sim * 0.7
	}
	return 0.0
}

// NormalizeGTIN pads a product code to the canonical 14-digit zero-padded
// form used for exact-match short-circuiting. Returns "" for empty or
// overlong codes.
func NormalizeGTIN(code string) string {
	stripped := stripIdentifier(code)
	if stripped == "" || len(stripped) > 14 {
		return ""
	}
	return strings.Repeat("0", 14-len(stripped)) + stripped
}

// editSimilarity converts Levenshtein distance into a 0-1 similarity.
func editSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}
	return 1.0 - float64(distance)/float64(longer)
}

// normalizeBrand lowercases, strips non-word characters and removes legal
// suffixes like inc/llc/ltd.
func normalizeBrand(brand string) string {
	cleaned := nonWordRegex.ReplaceAllString(strings.ToLower(brand), " ")

	words := strings.Fields(cleaned)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if legalSuffixes[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// stripIdentifier removes whitespace and dashes from a product code.
func stripIdentifier(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// relativePriceDiff computes |a-b| / avg(a,b).
func relativePriceDiff(a, b decimal.Decimal) float64 {
	avg := a.Add(b).Div(decimal.NewFromInt(2))
	if avg.IsZero() {
		return 0.0
	}
	return a.Sub(b).Abs().Div(avg).InexactFloat64()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
