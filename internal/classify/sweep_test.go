// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-harvester/internal/ledger"
	"github.com/pdiddy/paper-harvester/internal/resolve"
	"github.com/pdiddy/paper-harvester/internal/taxonomy"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

const (
	labelVision = "Computer Vision & Image Processing"
	labelData   = "Data Science & Statistical Learning"
)

// --- fakes ---

// fakeBackend answers by title keyword found in the prompt.
type fakeBackend struct {
	answers map[string]string
	err     error
	prompts []string
	hook    func(ctx context.Context, prompt string)
}

func (f *fakeBackend) Classify(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.hook != nil {
		f.hook(ctx, prompt)
	}
	if f.err != nil {
		return "", f.err
	}
	for key, answer := range f.answers {
		if strings.Contains(prompt, key) {
			return answer, nil
		}
	}
	return "", nil
}

// fakeExtractor returns the file content as the extracted text.
type fakeExtractor struct {
	err error
}

func (f fakeExtractor) Extract(path string, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// --- helpers ---

type row struct {
	title    string
	category string
	content  string // written to <title>.pdf when non-empty
}

func setup(t *testing.T, rows []row) (dir, ledgerPath string) {
	t.Helper()
	dir = t.TempDir()
	ledgerPath = filepath.Join(dir, types.LedgerFile)

	var b strings.Builder
	b.WriteString("Paper Title,Paper URL,PDF URL,Download Timestamp,Category\n")
	for _, r := range rows {
		b.WriteString(r.title + ",https://x/" + r.title + ",https://x/" + r.title + ".pdf,2024-01-01 00:00:00," + r.category + "\n")
		if r.content != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, r.title+".pdf"), []byte(r.content), 0o644))
		}
	}
	require.NoError(t, os.WriteFile(ledgerPath, []byte(b.String()), 0o644))
	return dir, ledgerPath
}

func newSweeper(t *testing.T, dir, ledgerPath string, backend Backend, extractor TextExtractor) *Sweeper {
	t.Helper()
	tbl, err := ledger.Load(ledgerPath)
	require.NoError(t, err)
	return &Sweeper{
		Table:     tbl,
		Resolver:  resolve.FileResolver{Dir: dir},
		Extractor: extractor,
		Backend:   backend,
		Taxonomy:  taxonomy.Default(),
		Config:    types.ClassifyConfig{Pages: 2, ExcerptChars: 1000},
	}
}

func categories(t *testing.T, ledgerPath string) []string {
	t.Helper()
	tbl, err := ledger.Load(ledgerPath)
	require.NoError(t, err)
	var out []string
	for _, rec := range tbl.Records() {
		out = append(out, rec.Category)
	}
	return out
}

// --- tests ---

func TestRun_ClassifiesAndIsIdempotent(t *testing.T) {
	dir, ledgerPath := setup(t, []row{
		{title: "Pixels", content: "convolution on images"},
		{title: "Regression", content: "statistical learning on tables"},
	})
	backend := &fakeBackend{answers: map[string]string{
		"convolution": labelVision,
		"statistical": "  " + labelData + "\n",
	}}

	var out bytes.Buffer
	summary, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Classified: 2}, summary)
	assert.Equal(t, []string{labelVision, labelData}, categories(t, ledgerPath))
	assert.Contains(t, out.String(), "classified Pixels -> "+labelVision)

	first, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)

	again := &fakeBackend{}
	summary, err = newSweeper(t, dir, ledgerPath, again, fakeExtractor{}).Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 2}, summary)
	assert.Empty(t, again.prompts)

	second, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRun_CoercesInvalidLabelToUnknown(t *testing.T) {
	dir, ledgerPath := setup(t, []row{{title: "Odd", content: "something"}})
	backend := &fakeBackend{answers: map[string]string{"something": "Category: " + labelData}}

	var out bytes.Buffer
	summary, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unknown)
	assert.Equal(t, []string{types.CategoryUnknown}, categories(t, ledgerPath))
	assert.Contains(t, out.String(), "not a taxonomy label")
}

func TestRun_MissingFileIsUnknown(t *testing.T) {
	dir, ledgerPath := setup(t, []row{{title: "Ghost"}})
	backend := &fakeBackend{}

	summary, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Unknown: 1}, summary)
	assert.Empty(t, backend.prompts)
	assert.Equal(t, []string{types.CategoryUnknown}, categories(t, ledgerPath))
}

func TestRun_FailuresAreUnknown(t *testing.T) {
	tests := []struct {
		name      string
		backend   *fakeBackend
		extractor fakeExtractor
		content   string
	}{
		{"backend error", &fakeBackend{err: errors.New("overloaded")}, fakeExtractor{}, "text"},
		{"extractor error", &fakeBackend{}, fakeExtractor{err: errors.New("bad xref")}, "text"},
		{"blank text", &fakeBackend{}, fakeExtractor{}, "  \n\t "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, ledgerPath := setup(t, []row{{title: "Paper", content: tt.content}})

			summary, err := newSweeper(t, dir, ledgerPath, tt.backend, tt.extractor).Run(context.Background(), &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, Summary{Unknown: 1}, summary)
			assert.Equal(t, []string{types.CategoryUnknown}, categories(t, ledgerPath))
		})
	}
}

func TestRun_UnknownIsTerminalUnlessRetryRequested(t *testing.T) {
	dir, ledgerPath := setup(t, []row{
		{title: "Before", category: types.CategoryUnknown, content: "convolution"},
		{title: "Done", category: labelData, content: "convolution"},
	})
	backend := &fakeBackend{answers: map[string]string{"convolution": labelVision}}

	summary, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 2}, summary)

	s := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{})
	s.Config.RetryUnknown = true
	summary, err = s.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Classified: 1, Skipped: 1}, summary)
	assert.Equal(t, []string{labelVision, labelData}, categories(t, ledgerPath))
}

func TestRun_TruncatesExcerptByCharacters(t *testing.T) {
	text := strings.Repeat("é", 1000) + "TAIL"
	dir, ledgerPath := setup(t, []row{{title: "Long", content: text}})
	backend := &fakeBackend{}

	_, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, backend.prompts, 1)
	assert.Contains(t, backend.prompts[0], strings.Repeat("é", 1000))
	assert.NotContains(t, backend.prompts[0], "TAIL")
	for _, label := range taxonomy.Default().Labels() {
		assert.Contains(t, backend.prompts[0], label)
	}
}

func TestRun_SavesAfterEachRow(t *testing.T) {
	dir, ledgerPath := setup(t, []row{
		{title: "First", content: "convolution"},
		{title: "Second", content: "statistical"},
	})

	var seenOnDisk []string
	backend := &fakeBackend{answers: map[string]string{
		"convolution": labelVision,
		"statistical": labelData,
	}}
	backend.hook = func(_ context.Context, prompt string) {
		if strings.Contains(prompt, "statistical") {
			seenOnDisk = categories(t, ledgerPath)
		}
	}

	_, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{labelVision, ""}, seenOnDisk)
}

func TestRun_AddsCategoryColumn(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, types.LedgerFile)
	require.NoError(t, os.WriteFile(ledgerPath, []byte("Paper Title,Paper URL,PDF URL,Download Timestamp\nA,https://x/a,https://x/a.pdf,2024-01-01 00:00:00\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.pdf"), []byte("convolution"), 0o644))

	backend := &fakeBackend{answers: map[string]string{"convolution": labelVision}}
	_, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, "Paper Title,Paper URL,PDF URL,Download Timestamp,Category\n"+
		"A,https://x/a,https://x/a.pdf,2024-01-01 00:00:00,"+labelVision+"\n", string(data))
}

func TestRun_CancelLeavesRowInFlightUnclassified(t *testing.T) {
	dir, ledgerPath := setup(t, []row{
		{title: "First", content: "convolution"},
		{title: "Second", content: "statistical"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &fakeBackend{answers: map[string]string{"convolution": labelVision}}
	backend.hook = func(_ context.Context, prompt string) {
		if strings.Contains(prompt, "statistical") {
			cancel()
		}
	}

	summary, err := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{}).Run(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Classified)
	assert.Equal(t, []string{labelVision, ""}, categories(t, ledgerPath))
}

func TestRun_AppliesCallTimeout(t *testing.T) {
	dir, ledgerPath := setup(t, []row{{title: "Paper", content: "convolution"}})

	var deadline time.Time
	var hasDeadline bool
	backend := &fakeBackend{answers: map[string]string{"convolution": labelVision}}
	backend.hook = func(ctx context.Context, _ string) {
		deadline, hasDeadline = ctx.Deadline()
	}

	s := newSweeper(t, dir, ledgerPath, backend, fakeExtractor{})
	s.Config.Timeout = time.Minute
	_, err := s.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "héllo", truncate("héllo", 0))
}
