// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download streams PDF assets into the flat PDF directory.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// unsafeChars are replaced with "_" when a title becomes a filename.
var unsafeChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// Sanitize turns a paper title into a filesystem-safe file stem. The
// mapping is lossy: distinct titles can produce the same stem.
func Sanitize(title string) string {
	return strings.TrimSpace(unsafeChars.Replace(title))
}

// Opener opens a streaming GET for a URL. httputil.Fetcher implements it.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Downloader writes assets into Dir. It does not retry; callers wrap
// Download in a retry policy.
type Downloader struct {
	opener Opener
	dir    string
}

// New returns a Downloader writing into dir.
func New(opener Opener, dir string) *Downloader {
	return &Downloader{opener: opener, dir: dir}
}

// Path returns where an asset with the given stem is stored.
func (d *Downloader) Path(name string) string {
	return filepath.Join(d.dir, name+".pdf")
}

// Download fetches assetURL into Dir/name.pdf and returns the path. The body
// is streamed to a temporary file that is renamed into place only after the
// copy completes, so a failed or interrupted download never leaves a file
// under the final name.
func (d *Downloader) Download(ctx context.Context, assetURL, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name for %s", assetURL)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", d.dir, err)
	}

	body, err := d.opener.Open(ctx, assetURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmpFile, err := os.CreateTemp(d.dir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, body)
	if copyErr == nil {
		copyErr = tmpFile.Chmod(0o644)
	}
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	destPath := d.Path(name)
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}
