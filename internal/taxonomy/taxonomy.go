// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package taxonomy holds the closed set of labels a paper may be assigned.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

var defaultLabels = []string{
	"Computer Vision & Image Processing",
	"Artificial Intelligence & Machine Learning",
	"Optimization & Theoretical Machine Learning",
	"Data Science & Statistical Learning",
	"Mathematical & Computational Modeling",
}

// Taxonomy is an ordered, duplicate-free list of labels. The zero value is
// empty and matches nothing.
type Taxonomy struct {
	labels []string
}

// Default returns the built-in five-label taxonomy.
func Default() Taxonomy {
	t, _ := New(defaultLabels)
	return t
}

// New builds a taxonomy from labels. Entries are trimmed; blank entries and
// duplicates are dropped. The reserved label "Unknown" is rejected.
func New(labels []string) (Taxonomy, error) {
	var out []string
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || slices.Contains(out, l) {
			continue
		}
		if l == types.CategoryUnknown {
			return Taxonomy{}, fmt.Errorf("label %q is reserved", l)
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return Taxonomy{}, errors.New("taxonomy has no labels")
	}
	return Taxonomy{labels: out}, nil
}

// file accepts either a bare YAML list or a mapping with a labels key.
type file struct {
	Labels []string `yaml:"labels"`
}

// Load reads a taxonomy from a YAML file.
func Load(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("reading taxonomy: %w", err)
	}

	var labels []string
	if err := yaml.Unmarshal(data, &labels); err != nil {
		var f file
		if err2 := yaml.Unmarshal(data, &f); err2 != nil {
			return Taxonomy{}, fmt.Errorf("parsing taxonomy %s: %w", path, err2)
		}
		labels = f.Labels
	}

	t, err := New(labels)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Labels returns a copy of the labels in order.
func (t Taxonomy) Labels() []string {
	return slices.Clone(t.labels)
}

// Len returns the number of labels.
func (t Taxonomy) Len() int {
	return len(t.labels)
}

// Match returns the label equal to s after trimming surrounding whitespace.
// Matching is exact and case-sensitive.
func (t Taxonomy) Match(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if slices.Contains(t.labels, s) {
		return s, true
	}
	return "", false
}

// Coerce maps a model response to a label, or to "Unknown" when the
// response is not exactly one of the labels.
func (t Taxonomy) Coerce(s string) string {
	if l, ok := t.Match(s); ok {
		return l
	}
	return types.CategoryUnknown
}
