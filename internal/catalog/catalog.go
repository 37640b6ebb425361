package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Signal names the aggregate value an achievement is measured against.
type Signal string

const (
	SignalActivityCount Signal = "activity_count"
	SignalStreak        Signal = "streak"
	SignalDiaryMentions Signal = "diary_mentions"
	SignalTimeSpan      Signal = "time_span"
	SignalFrequency     Signal = "frequency" // thresholds expressed 0-100
)

var validSignals = map[Signal]bool{
	SignalActivityCount: true,
	SignalStreak:        true,
	SignalDiaryMentions: true,
	SignalTimeSpan:      true,
	SignalFrequency:     true,
}

// Evidence lists the keywords that tie each activity source to an axis.
type Evidence struct {
	Habits    []string `yaml:"habits,omitempty" json:"habits,omitempty"`
	Journal   []string `yaml:"journal,omitempty" json:"journal,omitempty"`
	Finance   []string `yaml:"finance,omitempty" json:"finance,omitempty"`
	Biography []string `yaml:"biography,omitempty" json:"biography,omitempty"`
}

// Minimum holds the floors an axis must reach before it is emitted.
// Zero means the floor is not specified.
type Minimum struct {
	HabitDays    int `yaml:"habit_days,omitempty" json:"habit_days,omitempty"`
	MonthsActive int `yaml:"months_active,omitempty" json:"months_active,omitempty"`
	Integration  int `yaml:"integration,omitempty" json:"integration,omitempty"` // distinct evidence categories, 1-4
}

// AxisDefinition is one recurring life theme and the rules that detect it.
type AxisDefinition struct {
	Key            string   `yaml:"key" json:"key"`
	Label          string   `yaml:"label" json:"label"`
	Description    string   `yaml:"description,omitempty" json:"description,omitempty"`
	NeutralReading string   `yaml:"neutral_reading,omitempty" json:"neutral_reading,omitempty"`
	Evidence       Evidence `yaml:"evidence" json:"evidence"`
	Minimum        Minimum  `yaml:"minimum_signals" json:"minimum_signals"`
}

// AchievementDefinition is a milestone over one signal. An empty AxisKey
// applies the milestone to the strongest available aggregate.
type AchievementDefinition struct {
	ID          string  `yaml:"id" json:"id"`
	AxisKey     string  `yaml:"axis_key,omitempty" json:"axis_key,omitempty"`
	Title       string  `yaml:"title,omitempty" json:"title,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Signal      Signal  `yaml:"signal" json:"signal"`
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	Level       int     `yaml:"level,omitempty" json:"level,omitempty"`
}

// Catalog is the axis registry plus the achievement catalog. Treat a loaded
// Catalog as read-only; reloads produce a new value.
type Catalog struct {
	Axes         []AxisDefinition        `yaml:"axes" json:"axes"`
	Achievements []AchievementDefinition `yaml:"achievements" json:"achievements"`
}

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks key uniqueness and achievement references.
func (c *Catalog) Validate() error {
	axes := make(map[string]bool, len(c.Axes))
	for i, a := range c.Axes {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return fmt.Errorf("axis %d: empty key", i)
		}
		if axes[key] {
			return fmt.Errorf("axis %q: duplicate key", key)
		}
		if strings.TrimSpace(a.Label) == "" {
			return fmt.Errorf("axis %q: empty label", key)
		}
		if a.Minimum.Integration > 4 {
			return fmt.Errorf("axis %q: integration %d exceeds the four evidence categories", key, a.Minimum.Integration)
		}
		axes[key] = true
	}

	ids := make(map[string]bool, len(c.Achievements))
	for i, a := range c.Achievements {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("achievement %d: empty id", i)
		}
		if ids[a.ID] {
			return fmt.Errorf("achievement %q: duplicate id", a.ID)
		}
		ids[a.ID] = true
		if !validSignals[a.Signal] {
			return fmt.Errorf("achievement %q: unknown signal %q", a.ID, a.Signal)
		}
		if a.Threshold <= 0 {
			return fmt.Errorf("achievement %q: threshold must be positive", a.ID)
		}
		if a.AxisKey != "" && !axes[a.AxisKey] {
			return fmt.Errorf("achievement %q: unknown axis %q", a.ID, a.AxisKey)
		}
	}
	return nil
}

// Axis returns the definition for key, or nil.
func (c *Catalog) Axis(key string) *AxisDefinition {
	for i := range c.Axes {
		if c.Axes[i].Key == key {
			return &c.Axes[i]
		}
	}
	return nil
}

// Label returns the display label for key, falling back to the key itself.
func (c *Catalog) Label(key string) string {
	if a := c.Axis(key); a != nil {
		return a.Label
	}
	return key
}

// Provider hands out the catalog in effect. Callers read it once per run.
type Provider interface {
	Current() *Catalog
}

// Static is a Provider over a fixed catalog.
type Static struct {
	C *Catalog
}

// Current implements Provider.
func (s Static) Current() *Catalog { return s.C }
