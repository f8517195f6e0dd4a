// Package outputs writes the per-run artifact files a local operator can
// inspect after a batch: the cleaned input, entity metadata, refined
// records, refinement log and learning table.
package outputs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// File names inside the outputs directory.
const (
	CleanedFile  = "cleaned_data.json"
	MetadataFile = "metadata.json"
	RefinedFile  = "refined_data.json"
	LogFile      = "log.json"
	TableFile    = "q_table.json"
)

// Artifacts is everything written for one run.
type Artifacts struct {
	Cleaned  []record.Record
	Metadata []record.Metadata
	Refined  []record.Record
	Log      []record.LogEntry
	Table    map[string]float64
}

// Writer writes artifacts into a directory, overwriting the previous run.
type Writer struct {
	dir string
}

// NewWriter returns a writer rooted at dir. An empty dir disables writing.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the outputs directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores every artifact. The first failure aborts the remaining files.
func (w *Writer) Write(a Artifacts) error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create outputs dir: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{CleanedFile, nonNil(a.Cleaned)},
		{MetadataFile, nonNil(a.Metadata)},
		{RefinedFile, nonNil(a.Refined)},
		{LogFile, nonNil(a.Log)},
		{TableFile, a.Table},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(w.dir, f.name), f.v); err != nil {
			return err
		}
	}
	return nil
}

// ReadRefined loads the refined records of the last run.
func (w *Writer) ReadRefined() ([]record.Record, error) {
	raw, err := os.ReadFile(filepath.Join(w.dir, RefinedFile))
	if err != nil {
		return nil, fmt.Errorf("read refined: %w", err)
	}
	var out []record.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode refined: %w", err)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// nonNil keeps empty slices encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
