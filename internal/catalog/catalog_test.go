package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	require.Len(t, c.Axes, 7)
	assert.NotEmpty(t, c.Achievements)

	body := c.Axis("body_movement")
	require.NotNil(t, body)
	assert.Equal(t, "Corpo & Movimento", body.Label)
	assert.Equal(t, 10, body.Minimum.HabitDays)
	assert.Equal(t, 2, body.Minimum.MonthsActive)
	assert.Contains(t, body.Evidence.Habits, "natação")

	assert.Equal(t, "unknown_axis", c.Label("unknown_axis"))
	assert.Nil(t, c.Axis("unknown_axis"))
}

func TestDefaultReturnsFreshCopies(t *testing.T) {
	a := Default()
	a.Axes[0].Label = "mutated"
	b := Default()
	assert.NotEqual(t, "mutated", b.Axes[0].Label)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty axis key", `
axes:
  - key: ""
    label: X
`},
		{"duplicate axis key", `
axes:
  - key: a
    label: A
  - key: a
    label: B
`},
		{"empty label", `
axes:
  - key: a
`},
		{"integration too high", `
axes:
  - key: a
    label: A
    minimum_signals: {integration: 5}
`},
		{"unknown signal", `
axes:
  - key: a
    label: A
achievements:
  - id: x
    signal: vibes
    threshold: 1
`},
		{"zero threshold", `
achievements:
  - id: x
    signal: streak
    threshold: 0
`},
		{"duplicate achievement", `
achievements:
  - id: x
    signal: streak
    threshold: 3
  - id: x
    signal: streak
    threshold: 5
`},
		{"unknown axis reference", `
achievements:
  - id: x
    axis_key: nope
    signal: streak
    threshold: 3
`},
		{"not yaml", "axes: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseValid(t *testing.T) {
	c, err := Parse([]byte(`
axes:
  - key: reading
    label: Leitura
    evidence:
      habits: [ler]
    minimum_signals:
      habit_days: 2
achievements:
  - id: reader
    axis_key: reading
    signal: activity_count
    threshold: 5
    level: 1
`))
	require.NoError(t, err)
	require.Len(t, c.Axes, 1)
	assert.Equal(t, []string{"ler"}, c.Axes[0].Evidence.Habits)
	assert.Equal(t, SignalActivityCount, c.Achievements[0].Signal)
	assert.Equal(t, 5.0, c.Achievements[0].Threshold)
}

func TestStaticProvider(t *testing.T) {
	c := Default()
	var p Provider = Static{C: c}
	assert.Same(t, c, p.Current())
}

const oneAxis = `
axes:
  - key: reading
    label: Leitura
`

const twoAxes = `
axes:
  - key: reading
    label: Leitura
  - key: cooking
    label: Cozinha
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, oneAxis)

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.Len(t, w.Current().Axes, 1)

	writeFile(t, path, twoAxes)
	require.NoError(t, w.Reload())
	assert.Len(t, w.Current().Axes, 2)
	assert.EqualValues(t, 1, w.Reloads())

	// A broken file keeps the last good catalog.
	writeFile(t, path, "axes: [")
	assert.Error(t, w.Reload())
	assert.Len(t, w.Current().Axes, 2)
	assert.EqualValues(t, 1, w.Reloads())
}

func TestNewWatcherRequiresValidFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestWatcherPicksUpFileChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, oneAxis)

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	reloaded := make(chan *Catalog, 4)
	w.OnReload = func(c *Catalog) { reloaded <- c }

	require.NoError(t, w.Start())
	require.NoError(t, w.Start()) // idempotent

	writeFile(t, path, twoAxes)

	select {
	case c := <-reloaded:
		assert.Len(t, c.Axes, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog change was not picked up")
	}
	assert.Len(t, w.Current().Axes, 2)

	w.Stop()
	w.Stop() // idempotent
}
