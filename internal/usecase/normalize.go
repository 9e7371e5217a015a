package usecase

import (
	"math"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// Package-level compiled regex patterns for performance
var (
	punctuationRegex = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRegex  = regexp.MustCompile(`\s+`)
	nonWordRegex     = regexp.MustCompile(`[^a-z0-9]`)
)

// stopWords are basic English filler words dropped during normalization.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	"it": true, "as": true, "be": true, "was": true, "are": true,
}

// extendedStopWords additionally removes units, packaging, marketing noise
// and size/age qualifiers. Tokens surviving this list are the "key terms"
// that gate name similarity: two names sharing no key term score zero no
// matter how much filler they share.
var extendedStopWords = map[string]bool{
	// Basic English stop words
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	"it": true, "as": true, "be": true, "was": true, "are": true,
	// Units
	"oz": true, "lb": true, "lbs": true, "ml": true, "liter": true,
	"liters": true, "gallon": true, "quart": true, "pint": true,
	"gram": true, "grams": true, "kg": true, "ounce": true, "ounces": true,
	"inch": true, "inches": true, "cm": true,
	// Packaging terms
	"pack": true, "packs": true, "count": true, "ct": true, "pk": true,
	"pcs": true, "box": true, "bag": true, "bottle": true, "bottles": true,
	"carton": true, "container": true, "pouch": true, "jar": true,
	"tub": true, "sleeve": true, "roll": true, "rolls": true,
	// Marketing/generic terms
	"value": true, "family": true, "each": true, "per": true,
	"bonus": true, "new": true, "improved": true, "premium": true,
	"product": true, "item": true, "brand": true, "edition": true,
	// Size/age qualifiers
	"size": true, "baby": true, "mini": true, "small": true, "large": true,
	"medium": true, "jumbo": true, "giant": true, "big": true,
	"newborn": true, "infant": true, "toddler": true, "kids": true,
	"junior": true, "youth": true,
}

// normalizeText lowercases, strips punctuation, collapses whitespace and
// drops basic stop words.
func normalizeText(s string) string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	words := strings.Fields(cleaned)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}

	return multiSpaceRegex.ReplaceAllString(strings.Join(kept, " "), " ")
}

// tokenize splits a string into normalized lowercase tokens, dropping
// single-character fragments.
func tokenize(s string) []string {
	words := strings.Fields(normalizeText(s))

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 1 {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// keyTerms extracts the discriminating tokens of a product name: longer
// than two characters and not in the extended stop-word list.
func keyTerms(s string) []string {
	tokens := tokenize(s)

	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		if extendedStopWords[tok] {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// stemTokens reduces tokens to their snowball stems so that plural and
// inflected variants compare equal. A token that fails to stem is kept
// verbatim.
func stemTokens(tokens []string) []string {
	stems := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		stem, err := snowball.Stem(tok, "english", false)
		if err != nil || stem == "" {
			stems = append(stems, tok)
			continue
		}
		stems = append(stems, stem)
	}
	return stems
}

// tokenSet converts a token slice into a membership set.
func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// jaccardSimilarity computes |A∩B| / |A∪B| over two token sets.
func jaccardSimilarity(a, b []string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// overlapCoefficient computes |A∩B| / min(|A|,|B|) over two token sets.
func overlapCoefficient(a, b []string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(intersection) / float64(smaller)
}

// cosineSimilarity computes term-frequency cosine similarity over two token
// slices, so repeated terms weigh more than in plain set overlap.
func cosineSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	freqA := termFrequencies(a)
	freqB := termFrequencies(b)

	var dot, normA, normB float64
	for t, fa := range freqA {
		if fb, ok := freqB[t]; ok {
			dot += float64(fa * fb)
		}
		normA += float64(fa * fa)
	}
	for _, fb := range freqB {
		normB += float64(fb * fb)
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}
