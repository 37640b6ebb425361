package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

// fold normalizes text for case-insensitive comparison. NFC first so that
// "natação" typed with combining marks still matches the catalog keyword.
// A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// foldAll folds keywords and drops empty ones, which would otherwise match
// every text.
func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, fold(s))
	}
	return out
}

type axisMatcher struct {
	key       string
	habits    []string
	journal   []string
	finance   []string
	biography []string
}

// Detector classifies activities against the axis rules of one catalog.
// Build one per run; it holds no state beyond the folded keyword lists.
type Detector struct {
	axes []axisMatcher
}

// NewDetector prepares the rules of c for matching.
func NewDetector(c *catalog.Catalog) *Detector {
	d := &Detector{axes: make([]axisMatcher, 0, len(c.Axes))}
	for _, a := range c.Axes {
		d.axes = append(d.axes, axisMatcher{
			key:       a.Key,
			habits:    foldAll(a.Evidence.Habits),
			journal:   foldAll(a.Evidence.Journal),
			finance:   foldAll(a.Evidence.Finance),
			biography: foldAll(a.Evidence.Biography),
		})
	}
	return d
}

// Detect returns the keys of every axis the activity is evidence for, in
// catalog order. Unknown types and records without subtype, text or tags
// match nothing.
func (d *Detector) Detect(a store.Activity) []string {
	subtype := fold(a.Subtype)
	text := fold(a.Text)
	var tags []string
	if len(a.Tags) > 0 {
		tags = foldAll(a.Tags)
	}

	var matched []string
	for _, m := range d.axes {
		ok := false
		switch a.Type {
		case store.TypeHabit:
			ok = containsAny(subtype, m.habits)
		case store.TypeJournal:
			ok = containsAny(text, m.journal) || tagMatch(tags, m.journal)
		case store.TypeFinance:
			ok = containsAny(text, m.finance) || tagMatch(tags, m.finance)
		case store.TypeBiography:
			ok = containsAny(text, m.biography)
		}
		if ok {
			matched = append(matched, m.key)
		}
	}
	return matched
}

// Detect is a convenience wrapper for one-off classification.
func Detect(c *catalog.Catalog, a store.Activity) []string {
	return NewDetector(c).Detect(a)
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func tagMatch(tags, keywords []string) bool {
	for _, t := range tags {
		for _, k := range keywords {
			if t == k {
				return true
			}
		}
	}
	return false
}
