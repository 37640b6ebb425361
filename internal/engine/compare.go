package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Comparison reasons.
const (
	ReasonNotInData    = "not_in_data"
	ReasonNotDeclared  = "not_declared"
	absenceScoreCutoff = 0.5
	minSharedWordRunes = 4
)

// Overlap is a declared label backed by an observed axis.
type Overlap struct {
	Declared string  `json:"declared"`
	Observed string  `json:"observed"`
	AxisKey  string  `json:"axis_key"`
	Match    float64 `json:"match"`
}

// Divergence is a declared label with no observed axis behind it.
type Divergence struct {
	Declared string `json:"declared"`
	Reason   string `json:"reason"`
}

// Absence is a strong observed axis the user never declared.
type Absence struct {
	Observed string  `json:"observed"`
	AxisKey  string  `json:"axis_key"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// Comparison is advisory output; it is never persisted.
type Comparison struct {
	Overlaps    []Overlap    `json:"overlaps"`
	Divergences []Divergence `json:"divergences"`
	Absences    []Absence    `json:"absences"`
}

// Compare matches declared labels against observed axes. Each label takes
// the first axis, in the given order, whose label fuzzy-matches it.
func Compare(labels []string, axes []ObservedAxis) Comparison {
	c := Comparison{
		Overlaps:    []Overlap{},
		Divergences: []Divergence{},
		Absences:    []Absence{},
	}
	matched := make([]bool, len(axes))

	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		found := -1
		for i, a := range axes {
			if FuzzyMatch(label, a.Label) {
				found = i
				break
			}
		}
		if found < 0 {
			c.Divergences = append(c.Divergences, Divergence{Declared: label, Reason: ReasonNotInData})
			continue
		}
		matched[found] = true
		a := axes[found]
		c.Overlaps = append(c.Overlaps, Overlap{
			Declared: label,
			Observed: a.Label,
			AxisKey:  a.AxisKey,
			Match:    a.Score,
		})
	}

	for i, a := range axes {
		if matched[i] || a.Score <= absenceScoreCutoff {
			continue
		}
		c.Absences = append(c.Absences, Absence{
			Observed: a.Label,
			AxisKey:  a.AxisKey,
			Score:    a.Score,
			Reason:   ReasonNotDeclared,
		})
	}
	return c
}

// FuzzyMatch reports whether two labels name the same thing: equal ignoring
// case, one containing the other, or sharing a word of four or more letters.
func FuzzyMatch(a, b string) bool {
	a, b = fold(strings.TrimSpace(a)), fold(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	words := make(map[string]bool)
	for _, w := range splitWords(a) {
		if utf8.RuneCountInString(w) >= minSharedWordRunes {
			words[w] = true
		}
	}
	for _, w := range splitWords(b) {
		if words[w] {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
