// Package checkpoint persists batch progress so a crashed or cancelled run
// can resume without rescoring completed work. The checkpoint is a
// resume-from-last-write recovery aid, not a transactional guarantee: a
// record may be scored twice if the process dies between scoring and the
// next flush, so downstream writes must tolerate at-least-once delivery.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// fileFormat is the persisted JSON shape.
type fileFormat struct {
	ProcessedIDs []int64   `json:"processedIds"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// File stores the set of processed internal-record ids in a JSON file.
type File struct {
	path string
}

// NewFile creates a checkpoint store at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the checkpoint file location.
func (f *File) Path() string { return f.path }

// Load reads the processed-id set. A missing file yields an empty set.
func (f *File) Load() (map[int64]bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int64]bool{}, nil
		}
		return nil, fmt.Errorf("reading checkpoint %s: %w", f.path, err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", f.path, err)
	}

	processed := make(map[int64]bool, len(parsed.ProcessedIDs))
	for _, id := range parsed.ProcessedIDs {
		processed[id] = true
	}
	return processed, nil
}

// Save writes the processed-id set atomically (temp file + rename) so a
// crash mid-write never corrupts the previous checkpoint.
func (f *File) Save(processed map[int64]bool) error {
	ids := make([]int64, 0, len(processed))
	for id := range processed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.Marshal(fileFormat{ProcessedIDs: ids, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint after a clean, complete run.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint %s: %w", f.path, err)
	}
	return nil
}
