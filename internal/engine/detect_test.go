package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/store"
)

func TestDetect(t *testing.T) {
	c := testCatalog(t)
	now := day(2024, time.May, 1)

	tests := []struct {
		name string
		act  store.Activity
		want []string
	}{
		{"habit subtype substring", habit("u", "Corrida leve", now), []string{"body"}},
		{"habit case folded", habit("u", "YOGA", now), []string{"body"}},
		{"habit no match", habit("u", "cozinhar", now), nil},
		{"journal text", journal("u", "Hoje o treino foi pesado", now), []string{"body"}},
		{"journal tag exact", journal("u", "dia comum", now, "Livro"), []string{"mind"}},
		{"journal tag is not substring", journal("u", "dia comum", now, "livros"), nil},
		{"journal matches two axes", journal("u", "treino e depois um livro", now), []string{"body", "mind"}},
		{"finance text", act("u", store.TypeFinance, "", "mensalidade academia", now), []string{"body"}},
		{"finance tag", act("u", store.TypeFinance, "", "compra", now, "livraria"), []string{"mind"}},
		{"biography text", act("u", store.TypeBiography, "", "Corri minha primeira maratona", now), []string{"body"}},
		{"biography ignores tags", act("u", store.TypeBiography, "", "", now, "maratona"), nil},
		{"habit ignores text", act("u", store.TypeHabit, "", "corrida", now), nil},
		{"empty record", act("u", store.TypeJournal, "", "", now), nil},
		{"unknown type", act("u", "mood", "corrida", "corrida", now), nil},
	}
	d := NewDetector(c)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.act))
		})
	}
}

func TestDetectAccentsAndEmptyKeywords(t *testing.T) {
	c, err := catalog.Parse([]byte(`
axes:
  - key: swim
    label: Natação
    evidence:
      habits: ["natação", "", "  "]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := day(2024, time.May, 1)

	decomposed := "NATAC\u0327A\u0303O"
	assert.Equal(t, []string{"swim"}, Detect(c, habit("u", decomposed, now)))
	assert.Nil(t, Detect(c, habit("u", "corrida", now)), "empty keywords must not match everything")
}

func TestDetectIsPure(t *testing.T) {
	c := testCatalog(t)
	a := journal("u", "treino e livro", day(2024, time.May, 1), "estudo")
	first := Detect(c, a)
	second := Detect(c, a)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"estudo"}, a.Tags)
}
