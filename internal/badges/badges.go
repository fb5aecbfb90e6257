// Package badges holds the fixed, ordered catalog of achievement badges and
// the metric each badge is earned against.
package badges

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Metric names the profile total a badge threshold is compared with.
type Metric string

const (
	MetricPounds   Metric = "pounds"
	MetricCleanups Metric = "cleanups"
	MetricPoints   Metric = "points"
	MetricStreak   Metric = "streak"
)

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricPounds, MetricCleanups, MetricPoints, MetricStreak:
		return true
	}
	return false
}

// Descriptor describes one badge.
type Descriptor struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Metric      Metric  `yaml:"metric" json:"metric"`
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	Icon        string  `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// Totals are the profile values a badge is checked against.
type Totals struct {
	Pounds   float64
	Cleanups int64
	Points   int64
	Streak   int64
}

// Value returns the total matching m.
func (t Totals) Value(m Metric) float64 {
	switch m {
	case MetricPounds:
		return t.Pounds
	case MetricCleanups:
		return float64(t.Cleanups)
	case MetricPoints:
		return float64(t.Points)
	case MetricStreak:
		return float64(t.Streak)
	}
	return 0
}

// Earned reports whether totals meet the badge threshold.
func (d Descriptor) Earned(t Totals) bool {
	return t.Value(d.Metric) >= d.Threshold
}

var (
	ErrInvalidCatalog = errors.New("invalid badge catalog")
	ErrUnknownBadge   = errors.New("unknown badge")
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is an immutable ordered list of badges.
type Catalog struct {
	items []Descriptor
	index map[string]int
}

var defaultCatalog = mustLoad(catalogYAML)

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Load parses a YAML catalog document. Badge ids must be unique, metrics
// known and thresholds positive.
func Load(data []byte) (*Catalog, error) {
	var doc struct {
		Badges []Descriptor `yaml:"badges"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewCatalog(doc.Badges...)
}

// NewCatalog builds a catalog preserving the given order.
func NewCatalog(items ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		items: make([]Descriptor, 0, len(items)),
		index: make(map[string]int, len(items)),
	}

	for _, d := range items {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: badge without id", ErrInvalidCatalog)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate badge %q", ErrInvalidCatalog, d.ID)
		}
		if !d.Metric.Valid() {
			return nil, fmt.Errorf("%w: badge %q has unknown metric %q", ErrInvalidCatalog, d.ID, d.Metric)
		}
		if d.Threshold <= 0 {
			return nil, fmt.Errorf("%w: badge %q threshold must be positive", ErrInvalidCatalog, d.ID)
		}
		c.index[d.ID] = len(c.items)
		c.items = append(c.items, d)
	}

	return c, nil
}

func mustLoad(data []byte) *Catalog {
	c, err := Load(data)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns a copy of the catalog in order.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of badges.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Get returns the badge with the given id.
func (c *Catalog) Get(id string) (Descriptor, error) {
	i, ok := c.index[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownBadge, id)
	}
	return c.items[i], nil
}

// Resolve returns the descriptors for ids in the given order. Ids not in the
// catalog are skipped.
func (c *Catalog) Resolve(ids []string) []Descriptor {
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.index[id]; ok {
			out = append(out, c.items[i])
		}
	}
	return out
}
