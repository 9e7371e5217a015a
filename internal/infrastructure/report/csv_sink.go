// Package report writes qualifying batch candidates to an append-only CSV
// file. Rows are flushed as they arrive so partial output survives a crash,
// and re-runs after a resume simply append (at-least-once tolerant).
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shelflink/backend/internal/domain"
)

var header = []string{
	"internal_id", "internal_gtin", "internal_title", "internal_brand", "internal_category", "internal_price",
	"source_id", "external_key", "external_gtin", "external_title", "external_brand", "external_category", "external_price",
	"scenario", "overall_score", "confidence", "tier", "reasons",
	"name_score", "brand_score", "category_score", "price_score", "price_delta_pct",
}

// CSVSink implements domain.ReportSink over a CSV file opened in append
// mode. The header is only written when the file is new or empty.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens (or creates) the report file at path for appending.
func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening report file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("inspecting report file %s: %w", path, err)
	}

	sink := &CSVSink{file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := sink.writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("writing report header: %w", err)
		}
		sink.writer.Flush()
	}
	return sink, nil
}

// Write appends one qualifying candidate row and flushes immediately.
func (s *CSVSink) Write(internal domain.InternalProduct, candidate domain.MatchCandidate) error {
	row := []string{
		strconv.FormatInt(internal.ID, 10),
		optString(internal.Identifier),
		internal.Title,
		optString(internal.Brand),
		optString(internal.Category),
		optDecimal(internal.Price),
		strconv.FormatInt(candidate.SourceID, 10),
		candidate.ExternalKey,
		optString(candidate.ExternalIdentifier),
		candidate.ExternalTitle,
		optString(candidate.ExternalBrand),
		optString(candidate.ExternalCategory),
		optDecimal(candidate.ExternalPrice),
		string(candidate.Scenario),
		strconv.FormatFloat(candidate.OverallScore, 'f', 4, 64),
		strconv.FormatFloat(candidate.Confidence, 'f', 1, 64),
		string(candidate.Tier),
		strings.Join(candidate.Reasons, "; "),
		strconv.FormatFloat(candidate.Subscores.Name, 'f', 1, 64),
		strconv.FormatFloat(candidate.Subscores.Brand, 'f', 1, 64),
		strconv.FormatFloat(candidate.Subscores.Category, 'f', 1, 64),
		strconv.FormatFloat(candidate.Subscores.Price, 'f', 1, 64),
		optFloat(candidate.PriceDeltaPct),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("writing report row: %w", err)
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes pending rows and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return fmt.Errorf("flushing report: %w", err)
	}
	return s.file.Close()
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optDecimal(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
