// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package links finds anchors in fetched HTML by CSS selector and resolves
// them against the page URL.
package links

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extract returns the href of every element in doc matching selector,
// resolved against base, in document order and without duplicates.
// Fragments are dropped; anchors without an href are ignored.
func Extract(doc []byte, base *url.URL, selector string) ([]string, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var out []string
	seen := make(map[string]bool)
	d.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		u := abs.String()
		if seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	})
	return out, nil
}

// First returns the first link Extract would return, or "" when none match.
func First(doc []byte, base *url.URL, selector string) (string, error) {
	all, err := Extract(doc, base, selector)
	if err != nil || len(all) == 0 {
		return "", err
	}
	return all[0], nil
}

// Title returns the trimmed text of the document's <title>, with inner
// whitespace runs collapsed.
func Title(doc []byte) (string, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return strings.Join(strings.Fields(d.Find("title").First().Text()), " "), nil
}
