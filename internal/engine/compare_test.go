package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestCompareSubstringOverlap(t *testing.T) {
	axes := []ObservedAxis{{AxisKey: "body_movement", Label: "Corpo & Movimento", Score: 0.6}}

	got := Compare([]string{"Corpo"}, axes)
	want := Comparison{
		Overlaps:    []Overlap{{Declared: "Corpo", Observed: "Corpo & Movimento", AxisKey: "body_movement", Match: 0.6}},
		Divergences: []Divergence{},
		Absences:    []Absence{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareDivergenceAndAbsence(t *testing.T) {
	axes := []ObservedAxis{
		{AxisKey: "work", Label: "Trabalho & Projetos", Score: 0.8},
		{AxisKey: "social", Label: "Relações & Vida Social", Score: 0.55},
		{AxisKey: "mind", Label: "Estudo & Leitura", Score: 0.5},
	}

	got := Compare([]string{"músico", "  ", "vida social"}, axes)
	want := Comparison{
		Overlaps:    []Overlap{{Declared: "vida social", Observed: "Relações & Vida Social", AxisKey: "social", Match: 0.55}},
		Divergences: []Divergence{{Declared: "músico", Reason: ReasonNotInData}},
		Absences: []Absence{
			{Observed: "Trabalho & Projetos", AxisKey: "work", Score: 0.8, Reason: ReasonNotDeclared},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareFirstMatchWins(t *testing.T) {
	axes := []ObservedAxis{
		{AxisKey: "a", Label: "Organização da Vida", Score: 0.4},
		{AxisKey: "b", Label: "Vida Social", Score: 0.9},
	}
	got := Compare([]string{"vida"}, axes)
	if assert.Len(t, got.Overlaps, 1) {
		assert.Equal(t, "a", got.Overlaps[0].AxisKey)
	}
	assert.Equal(t, []Absence{{Observed: "Vida Social", AxisKey: "b", Score: 0.9, Reason: ReasonNotDeclared}}, got.Absences)
}

func TestCompareEmpty(t *testing.T) {
	got := Compare(nil, nil)
	assert.Empty(t, got.Overlaps)
	assert.NotNil(t, got.Overlaps)
	assert.Empty(t, got.Divergences)
	assert.Empty(t, got.Absences)
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Corpo", "Corpo & Movimento", true},
		{"CORPO & MOVIMENTO", "corpo & movimento", true},
		{"estudo & desenvolvimento", "Estudo & Leitura", true},
		{"movimento corporal", "Corpo & Movimento", true},
		{"arte", "Criação & Expressão", false},
		{"vida", "Relações & Vida Social", true},
		{"mãe", "Família", false},
		{"de", "Organização da Vida", false},
		{"", "Corpo", false},
		{"natação", "NATAÇÃO", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FuzzyMatch(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
