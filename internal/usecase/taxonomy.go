package usecase

import (
	"sort"
	"strings"
)

// Taxonomy holds the finite lookup tables consulted during scoring: brand
// aliases, category branch groupings, related-category constants and the
// coarse department keyword heuristics. Tables are explicit maps so they can
// be tested independently and swapped per deployment.
type Taxonomy struct {
	// brandAliases maps a normalized brand name to its canonical group key.
	// Two brands are aliases when they resolve to the same group.
	brandAliases map[string]string

	// categoryBranches maps a normalized category leaf to a curated branch
	// key (e.g. feeding, sleep, travel).
	categoryBranches map[string]string

	// relatedCategories maps a sorted "a|b" category pair to a tuned
	// similarity constant for known related but non-identical labels.
	relatedCategories map[string]float64

	// departmentKeywords maps a department key to name fragments that place
	// a category under it.
	departmentKeywords map[string][]string

	// coreGearCategories are categories where a differing model number is a
	// strong mismatch signal (strollers, car seats, cribs, high chairs).
	coreGearCategories map[string]bool
}

// NewTaxonomy builds a taxonomy from explicit tables. Any nil table falls
// back to the built-in defaults.
func NewTaxonomy(brandAliases map[string]string, categoryBranches map[string]string, relatedCategories map[string]float64) *Taxonomy {
	t := DefaultTaxonomy()
	if brandAliases != nil {
		t.brandAliases = normalizeTable(brandAliases, normalizeBrand)
	}
	if categoryBranches != nil {
		t.categoryBranches = normalizeTable(categoryBranches, categoryLeaf)
	}
	if relatedCategories != nil {
		t.relatedCategories = relatedCategories
	}
	return t
}

// DefaultTaxonomy returns the built-in tables for the baby/nursery retail
// domain the catalogs cover.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		brandAliases: map[string]string{
			"pampers":         "pampers",
			"pampers us":      "pampers",
			"huggies":         "huggies",
			"kimberly clark":  "huggies",
			"graco":           "graco",
			"graco children":  "graco",
			"chicco":          "chicco",
			"chicco usa":      "chicco",
			"fisher price":    "fisher-price",
			"fisherprice":     "fisher-price",
			"gerber":          "gerber",
			"nestle gerber":   "gerber",
			"philips avent":   "avent",
			"avent":           "avent",
			"munchkin":        "munchkin",
			"munchkin brands": "munchkin",
		},
		categoryBranches: map[string]string{
			"bottles":        "feeding",
			"bottle feeding": "feeding",
			"sippy cups":     "feeding",
			"high chairs":    "feeding",
			"highchairs":     "feeding",
			"bibs":           "feeding",
			"formula":        "feeding",
			"baby food":      "feeding",
			"diapers":        "diapering",
			"newborn diapers": "diapering",
			"training pants": "diapering",
			"wipes":          "diapering",
			"diaper pails":   "diapering",
			"blankets":       "sleep",
			"swaddles":       "sleep",
			"sleep sacks":    "sleep",
			"crib textiles":  "sleep",
			"cribs":          "sleep",
			"bassinets":      "sleep",
			"strollers":      "travel",
			"car seats":      "travel",
			"carriers":       "travel",
			"travel systems": "travel",
		},
		relatedCategories: map[string]float64{
			pairKey("blankets", "sleep"):          0.75,
			pairKey("blankets", "crib textiles"):  0.75,
			pairKey("sleep", "crib textiles"):     0.75,
			pairKey("diapers", "training pants"):  0.70,
			pairKey("bottles", "sippy cups"):      0.65,
			pairKey("strollers", "travel systems"): 0.70,
			pairKey("car seats", "travel systems"): 0.70,
		},
		departmentKeywords: map[string][]string{
			"baby": {
				"baby", "infant", "newborn", "toddler", "nursery",
				"diaper", "crib", "stroller", "bottle", "pacifier",
			},
		},
		coreGearCategories: map[string]bool{
			"strollers":      true,
			"car seats":      true,
			"cribs":          true,
			"high chairs":    true,
			"highchairs":     true,
			"travel systems": true,
			"bassinets":      true,
		},
	}
}

// BrandsAliased reports whether two brand strings are known aliases of one
// another.
func (t *Taxonomy) BrandsAliased(a, b string) bool {
	ga, okA := t.brandAliases[normalizeBrand(a)]
	gb, okB := t.brandAliases[normalizeBrand(b)]
	return okA && okB && ga == gb
}

// RelatedCategoryScore looks up the tuned constant for a known related
// category pair. The second return is false when the pair is not in the
// table.
func (t *Taxonomy) RelatedCategoryScore(a, b string) (float64, bool) {
	score, ok := t.relatedCategories[pairKey(categoryLeaf(a), categoryLeaf(b))]
	return score, ok
}

// SameBranch reports whether both categories fall under the same curated
// branch grouping.
func (t *Taxonomy) SameBranch(a, b string) bool {
	ba, okA := t.categoryBranches[categoryLeaf(a)]
	bb, okB := t.categoryBranches[categoryLeaf(b)]
	return okA && okB && ba == bb
}

// SameDepartment reports whether both categories fall under the same coarse
// department by name heuristics.
func (t *Taxonomy) SameDepartment(a, b string) bool {
	return t.department(a) != "" && t.department(a) == t.department(b)
}

// IsCoreGear reports whether the category is one where model-number
// mismatches are treated as a risk signal.
func (t *Taxonomy) IsCoreGear(category string) bool {
	return t.coreGearCategories[categoryLeaf(category)]
}

func (t *Taxonomy) department(category string) string {
	normalized := normalizeCategory(category)
	for dept, keywords := range t.departmentKeywords {
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				return dept
			}
		}
	}
	return ""
}

// categoryLeaf returns the normalized last segment of a hierarchical
// category label ("Baby > Sleep > Blankets" yields "blankets").
func categoryLeaf(category string) string {
	normalized := normalizeCategory(category)
	for _, sep := range []string{">", "/"} {
		if idx := strings.LastIndex(normalized, sep); idx >= 0 {
			normalized = normalized[idx+len(sep):]
		}
	}
	return strings.TrimSpace(normalized)
}

func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.ReplaceAll(c, "-", " ")
	c = strings.ReplaceAll(c, "_", " ")
	return multiSpaceRegex.ReplaceAllString(c, " ")
}

// pairKey builds an order-independent map key for a category pair.
func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1]
}

func normalizeTable(table map[string]string, normalize func(string) string) map[string]string {
	normalized := make(map[string]string, len(table))
	for k, v := range table {
		normalized[normalize(k)] = v
	}
	return normalized
}
