// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps ledger titles back to PDFs on disk.
//
// The crawl names files by a lossy sanitization of the title, so the
// mapping is a best-effort heuristic: a fixed list of spelling variants is
// tried in order and the first existing file wins. Two titles that sanitize
// to the same name resolve to the same file.
package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paper-harvester/internal/download"
)

// ErrNotFound is returned when no variant of a title exists on disk.
var ErrNotFound = errors.New("no PDF found for title")

// truncateRunes is the prefix length of the last variant.
const truncateRunes = 50

// Resolver finds the stored asset for a ledger title. Callers depend on
// this interface so the filename heuristic can later be replaced by a key
// stored in the ledger.
type Resolver interface {
	Resolve(title string) (string, error)
}

// FileResolver resolves titles against a flat directory of PDFs.
type FileResolver struct {
	Dir string
}

// Resolve returns the path of the first variant of title that exists as a
// regular file in Dir, or ErrNotFound.
func (r FileResolver) Resolve(title string) (string, error) {
	for _, name := range Variants(title) {
		path := filepath.Join(r.Dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Variants returns the candidate file names for title in lookup order:
// the sanitized title, spaces as underscores, spaces as hyphens, lowercase,
// lowercase with underscores, and the first 50 characters. Duplicates are
// dropped; an empty title has no variants.
func Variants(title string) []string {
	base := download.Sanitize(title)
	if base == "" {
		return nil
	}

	stems := []string{
		base,
		strings.ReplaceAll(base, " ", "_"),
		strings.ReplaceAll(base, " ", "-"),
		strings.ToLower(base),
		strings.ToLower(strings.ReplaceAll(base, " ", "_")),
		truncate(base, truncateRunes),
	}

	out := make([]string, 0, len(stems))
	seen := make(map[string]bool, len(stems))
	for _, s := range stems {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s+".pdf")
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
