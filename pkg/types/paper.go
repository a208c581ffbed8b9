// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CategoryUnknown marks a paper the sweep could not resolve or classify.
// An empty Category means the paper has not been classified yet.
const CategoryUnknown = "Unknown"

// TimestampLayout is the layout of the Download Timestamp ledger column.
const TimestampLayout = "2006-01-02 15:04:05"

// PaperRecord is one ledger row: a paper discovered on the archive and,
// when an asset link was found, downloaded to the PDF directory.
type PaperRecord struct {
	// Title is the page title of the paper. It is the only join key
	// between the ledger and files on disk and is not guaranteed unique.
	Title string `json:"title" yaml:"title"`

	// SourceURL is the paper's detail page.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// AssetURL is the direct PDF URL, empty when the page had no asset link.
	AssetURL string `json:"asset_url,omitempty" yaml:"asset_url,omitempty"`

	// DownloadedAt is when the row was recorded.
	DownloadedAt time.Time `json:"downloaded_at" yaml:"downloaded_at"`

	// Category is a taxonomy label, CategoryUnknown, or empty (unclassified).
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// HasAsset reports whether the row points at a downloaded PDF.
func (p PaperRecord) HasAsset() bool {
	return p.AssetURL != ""
}

// Classified reports whether the sweep has already assigned a category.
func (p PaperRecord) Classified() bool {
	return p.Category != ""
}
