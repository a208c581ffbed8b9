// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Table is a ledger loaded into memory for in-place category updates.
// Columns it does not know about are carried through Save unchanged.
type Table struct {
	path    string
	header  []string
	records [][]string
	col     map[string]int

	// AddedCategory is set when Load had to add the Category column.
	AddedCategory bool
}

// Load reads the whole ledger at path. A ledger written by the crawl has
// no Category column; Load appends one with empty cells. Short rows are
// padded to the header width.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("ledger %s has no header", path)
	}

	t := &Table{path: path, header: cleanHeader(all[0]), records: all[1:]}
	t.index()
	if _, ok := t.col[ColTitle]; !ok {
		return nil, fmt.Errorf("ledger %s has no %q column", path, ColTitle)
	}
	if _, ok := t.col[ColCategory]; !ok {
		t.header = append(t.header, ColCategory)
		t.index()
		t.AddedCategory = true
	}

	for i, rec := range t.records {
		if len(rec) < len(t.header) {
			t.records[i] = append(rec, make([]string, len(t.header)-len(rec))...)
		}
	}
	return t, nil
}

func (t *Table) index() {
	t.col = make(map[string]int, len(t.header))
	for i, name := range t.header {
		if _, dup := t.col[name]; !dup {
			t.col[name] = i
		}
	}
}

// Path returns the ledger file path.
func (t *Table) Path() string {
	return t.path
}

// Header returns a copy of the column names.
func (t *Table) Header() []string {
	return slices.Clone(t.header)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// Record decodes row i.
func (t *Table) Record(i int) types.PaperRecord {
	return types.PaperRecord{
		Title:        t.cell(i, ColTitle),
		SourceURL:    t.cell(i, ColPaperURL),
		AssetURL:     t.cell(i, ColPDFURL),
		DownloadedAt: parseTimestamp(t.cell(i, ColTimestamp)),
		Category:     t.cell(i, ColCategory),
	}
}

// Records decodes every row in ledger order.
func (t *Table) Records() []types.PaperRecord {
	out := make([]types.PaperRecord, t.Len())
	for i := range out {
		out[i] = t.Record(i)
	}
	return out
}

// SetCategory changes the Category cell of row i. It is the only mutation
// a Table allows.
func (t *Table) SetCategory(i int, category string) {
	t.records[i][t.col[ColCategory]] = category
}

func (t *Table) cell(i int, col string) string {
	c, ok := t.col[col]
	if !ok || c >= len(t.records[i]) {
		return ""
	}
	return t.records[i][c]
}

// Save rewrites the ledger through a temporary file in the same directory
// and renames it over the original, so a crash mid-write leaves either the
// old or the new ledger, never a truncated one.
func (t *Table) Save() error {
	tmpFile, err := os.CreateTemp(filepath.Dir(t.path), ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	w := csv.NewWriter(tmpFile)
	w.Write(t.header)
	w.WriteAll(t.records)
	writeErr := w.Error()
	if writeErr == nil {
		writeErr = tmpFile.Chmod(0o644)
	}
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing ledger: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// SourceURLs returns the set of paper URLs already recorded.
func (t *Table) SourceURLs() map[string]bool {
	out := make(map[string]bool, t.Len())
	for i := range t.records {
		if u := t.cell(i, ColPaperURL); u != "" {
			out[u] = true
		}
	}
	return out
}
