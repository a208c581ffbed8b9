// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify labels downloaded papers against a closed taxonomy.
//
// The sweep walks the ledger in row order, one row at a time. Each
// unclassified row is resolved to its PDF, a short excerpt of the leading
// pages is sent to a Backend, and the answer is coerced onto the taxonomy.
// The ledger is saved after every processed row, so an interrupted sweep
// loses at most the row in flight and a rerun picks up where it stopped.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/internal/ledger"
	"github.com/pdiddy/paper-harvester/internal/resolve"
	"github.com/pdiddy/paper-harvester/internal/taxonomy"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Backend abstracts the text-classification service so tests can supply a
// fake. The response is free text; the sweep validates it.
type Backend interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// TextExtractor reads the text of the first pages of a document.
type TextExtractor interface {
	Extract(path string, pages int) (string, error)
}

// Summary holds counts from one sweep.
type Summary struct {
	Classified int
	Unknown    int
	Skipped    int
	SaveErrors int
}

// Total returns the number of rows visited.
func (s Summary) Total() int {
	return s.Classified + s.Unknown + s.Skipped
}

// Processed returns the number of rows that received a category.
func (s Summary) Processed() int {
	return s.Classified + s.Unknown
}

// Sweeper runs the classification sweep over a loaded ledger.
type Sweeper struct {
	Table     *ledger.Table
	Resolver  resolve.Resolver
	Extractor TextExtractor
	Backend   Backend
	Taxonomy  taxonomy.Taxonomy
	Config    types.ClassifyConfig
	Logger    *zap.Logger
}

// Run classifies every pending row and writes one status line per
// processed row to w. Per-row failures mark the row Unknown and never stop
// the sweep. Run returns early only when ctx is canceled; the row in
// flight is then left unclassified.
func (s *Sweeper) Run(ctx context.Context, w io.Writer) (Summary, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Table.AddedCategory {
		logger.Info("ledger has no Category column, adding it", zap.String("ledger", s.Table.Path()))
	}

	var summary Summary
	for i := range s.Table.Len() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rec := s.Table.Record(i)
		if !s.pending(rec) {
			summary.Skipped++
			continue
		}

		category, reason := s.classify(ctx, rec)
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		s.Table.SetCategory(i, category)
		if err := s.Table.Save(); err != nil {
			logger.Error("saving ledger", zap.String("title", rec.Title), zap.Error(err))
			summary.SaveErrors++
		}

		if reason != nil {
			fmt.Fprintf(w, "unknown    %s: %v\n", rec.Title, reason)
			logger.Debug("marked unknown", zap.String("title", rec.Title), zap.Error(reason))
			summary.Unknown++
			continue
		}
		fmt.Fprintf(w, "classified %s -> %s\n", rec.Title, category)
		summary.Classified++
	}
	return summary, nil
}

// pending reports whether rec still needs a category.
func (s *Sweeper) pending(rec types.PaperRecord) bool {
	if !rec.Classified() {
		return true
	}
	return s.Config.RetryUnknown && rec.Category == types.CategoryUnknown
}

// classify returns the category for rec. A non-nil reason explains why the
// category is Unknown.
func (s *Sweeper) classify(ctx context.Context, rec types.PaperRecord) (string, error) {
	path, err := s.Resolver.Resolve(rec.Title)
	if err != nil {
		return types.CategoryUnknown, fmt.Errorf("resolving file: %w", err)
	}

	text, err := s.Extractor.Extract(path, s.Config.Pages)
	if err != nil {
		return types.CategoryUnknown, fmt.Errorf("extracting text: %w", err)
	}
	excerpt := truncate(strings.TrimSpace(text), s.Config.ExcerptChars)
	if excerpt == "" {
		return types.CategoryUnknown, errors.New("no text in leading pages")
	}

	prompt, err := renderPrompt(s.Taxonomy.Labels(), excerpt)
	if err != nil {
		return types.CategoryUnknown, fmt.Errorf("rendering prompt: %w", err)
	}

	callCtx := ctx
	if s.Config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Config.Timeout)
		defer cancel()
	}
	resp, err := s.Backend.Classify(callCtx, prompt)
	if err != nil {
		return types.CategoryUnknown, fmt.Errorf("classifying: %w", err)
	}

	category := s.Taxonomy.Coerce(resp)
	if category == types.CategoryUnknown {
		return category, fmt.Errorf("response %q is not a taxonomy label", strings.TrimSpace(resp))
	}
	return category, nil
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
