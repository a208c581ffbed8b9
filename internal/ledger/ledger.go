// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists one CSV row per discovered paper. During a crawl
// rows are only appended; during classification only the Category cell of
// existing rows changes. No operation removes rows.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Column names of the ledger header.
const (
	ColTitle     = "Paper Title"
	ColPaperURL  = "Paper URL"
	ColPDFURL    = "PDF URL"
	ColTimestamp = "Download Timestamp"
	ColCategory  = "Category"
)

// Header is the header written to a new ledger. The Category column is
// added later by the classification sweep.
var Header = []string{ColTitle, ColPaperURL, ColPDFURL, ColTimestamp}

// Writer appends rows to the ledger. Append is safe for concurrent use;
// physical writes are serialized and flushed row by row.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	csv    *csv.Writer
	header []string
}

// Open opens the ledger at path for appending, creating it with Header
// when it does not exist or is empty. An existing header is kept, so rows
// appended after a sweep has added the Category column stay aligned.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	header := Header
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		existing, err := readHeader(path)
		if err != nil {
			return nil, err
		}
		header = existing
	case err != nil && !os.IsNotExist(err):
		return nil, fmt.Errorf("stat ledger %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}

	w := &Writer{path: path, file: f, csv: csv.NewWriter(f), header: header}
	if info == nil || info.Size() == 0 {
		if err := w.writeRow(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing ledger header: %w", err)
		}
	}
	return w, nil
}

// Path returns the ledger file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one row for rec and flushes it to the file.
func (w *Writer) Append(rec types.PaperRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeRow(encode(w.header, rec)); err != nil {
		return fmt.Errorf("appending %q to ledger: %w", rec.Title, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) writeRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// encode lays rec out according to header; unknown columns stay empty.
func encode(header []string, rec types.PaperRecord) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case ColTitle:
			row[i] = rec.Title
		case ColPaperURL:
			row[i] = rec.SourceURL
		case ColPDFURL:
			row[i] = rec.AssetURL
		case ColTimestamp:
			if !rec.DownloadedAt.IsZero() {
				row[i] = rec.DownloadedAt.Format(types.TimestampLayout)
			}
		case ColCategory:
			row[i] = rec.Category
		}
	}
	return row
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading ledger header: %w", err)
	}
	return cleanHeader(header), nil
}

// cleanHeader strips a UTF-8 byte order mark from the first column.
func cleanHeader(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}

func parseTimestamp(s string) time.Time {
	t, err := time.ParseInLocation(types.TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
