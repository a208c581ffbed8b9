// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

func sampleRecord(title string) types.PaperRecord {
	return types.PaperRecord{
		Title:        title,
		SourceURL:    "https://papers.example.org/" + title + "-Abstract.html",
		AssetURL:     "https://papers.example.org/" + title + "-Paper.pdf",
		DownloadedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local),
	}
}

func TestOpen_CreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "metadata.csv")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Paper Title,Paper URL,PDF URL,Download Timestamp\n", string(data))
}

func TestAppend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	w, err := Open(path)
	require.NoError(t, err)

	rec := sampleRecord("Attention, \"Please\"")
	require.NoError(t, w.Append(rec))
	require.NoError(t, w.Append(types.PaperRecord{Title: "No Asset", SourceURL: "https://x/b", DownloadedAt: rec.DownloadedAt}))
	require.NoError(t, w.Close())

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.AddedCategory)

	got := tbl.Record(0)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.SourceURL, got.SourceURL)
	assert.Equal(t, rec.AssetURL, got.AssetURL)
	assert.True(t, rec.DownloadedAt.Equal(got.DownloadedAt))
	assert.False(t, got.Classified())

	assert.False(t, tbl.Record(1).HasAsset())
}

func TestAppend_ConcurrentWritersProduceOneRowEach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	w, err := Open(path)
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Append(sampleRecord(fmt.Sprintf("Paper %03d with, a comma", i))))
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, n, tbl.Len())

	seen := make(map[string]int)
	for _, rec := range tbl.Records() {
		seen[rec.Title]++
	}
	assert.Len(t, seen, n)
	for title, count := range seen {
		assert.Equal(t, 1, count, "title %q", title)
	}
}

func TestOpen_KeepsExistingHeaderWithCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	content := "Paper Title,Paper URL,PDF URL,Download Timestamp,Category\n" +
		"Old,https://x/old,https://x/old.pdf,2024-01-01 00:00:00,Data Science & Statistical Learning\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRecord("New")))
	require.NoError(t, w.Close())

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.False(t, tbl.AddedCategory)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Data Science & Statistical Learning", tbl.Record(0).Category)
	assert.Equal(t, "New", tbl.Record(1).Title)
	assert.Equal(t, "", tbl.Record(1).Category)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	assert.Error(t, err)

	noTitle := filepath.Join(dir, "notitle.csv")
	require.NoError(t, os.WriteFile(noTitle, []byte("a,b\n1,2\n"), 0o644))
	_, err = Load(noTitle)
	assert.Error(t, err)
}

func TestTable_SaveUpdatesCategoryAndPreservesColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	content := "\ufeffPaper Title,Paper URL,PDF URL,Download Timestamp,Notes\n" +
		"A,https://x/a,https://x/a.pdf,2024-01-01 00:00:00,keep me\n" +
		"B,https://x/b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.True(t, tbl.AddedCategory)
	assert.Equal(t, []string{ColTitle, ColPaperURL, ColPDFURL, ColTimestamp, "Notes", ColCategory}, tbl.Header())

	tbl.SetCategory(0, "Computer Vision & Image Processing")
	tbl.SetCategory(1, types.CategoryUnknown)
	require.NoError(t, tbl.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Paper Title,Paper URL,PDF URL,Download Timestamp,Notes,Category\n"+
			"A,https://x/a,https://x/a.pdf,2024-01-01 00:00:00,keep me,Computer Vision & Image Processing\n"+
			"B,https://x/b,,,,Unknown\n",
		string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".ledger-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestTable_SourceURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRecord("A")))
	require.NoError(t, w.Append(sampleRecord("B")))
	require.NoError(t, w.Close())

	tbl, err := Load(path)
	require.NoError(t, err)
	urls := tbl.SourceURLs()
	assert.Len(t, urls, 2)
	assert.True(t, urls[sampleRecord("A").SourceURL])
}
