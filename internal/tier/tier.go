// Package tier maps point balances to named reward tiers using a threshold
// table. The table is configuration input: tier names with strictly
// increasing minimum point thresholds, lowest tier at zero.
package tier

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyTable is returned when a table is constructed with no levels.
	ErrEmptyTable = errors.New("tier: threshold table must not be empty")

	// ErrNonIncreasing is returned when thresholds are not strictly
	// increasing by tier rank.
	ErrNonIncreasing = errors.New("tier: thresholds must be strictly increasing")

	// ErrNegativeThreshold is returned when any threshold is below zero.
	ErrNegativeThreshold = errors.New("tier: thresholds must be non-negative")
)

// Level is one reward tier: a name and the minimum points that unlock it.
type Level struct {
	Name      string `json:"name"`
	MinPoints int64  `json:"min_points"`
}

// Table is an ordered set of tier levels. Immutable after construction.
type Table struct {
	levels []Level // ascending by MinPoints
}

// New validates and builds a threshold table. Levels may be passed in any
// order; they are sorted ascending by threshold. Thresholds must be
// non-negative and strictly increasing.
func New(levels []Level) (*Table, error) {
	if len(levels) == 0 {
		return nil, ErrEmptyTable
	}

	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints < sorted[j].MinPoints
	})

	for i, l := range sorted {
		if l.MinPoints < 0 {
			return nil, fmt.Errorf("%w: %s has %d", ErrNegativeThreshold, l.Name, l.MinPoints)
		}
		if i > 0 && l.MinPoints == sorted[i-1].MinPoints {
			return nil, fmt.Errorf("%w: %s and %s share threshold %d",
				ErrNonIncreasing, sorted[i-1].Name, l.Name, l.MinPoints)
		}
	}

	return &Table{levels: sorted}, nil
}

// Default returns the compiled-in tier ladder.
func Default() *Table {
	t, _ := New([]Level{
		{Name: "bronze", MinPoints: 0},
		{Name: "silver", MinPoints: 200},
		{Name: "gold", MinPoints: 500},
		{Name: "platinum", MinPoints: 1500},
		{Name: "diamond", MinPoints: 5000},
	})
	return t
}

// Parse builds a table from a JSON array of levels, e.g.
// [{"name":"bronze","min_points":0},{"name":"silver","min_points":200}].
// Used for the TIER_THRESHOLDS config override.
func Parse(data []byte) (*Table, error) {
	var levels []Level
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, fmt.Errorf("tier: parse thresholds: %w", err)
	}
	return New(levels)
}

// ForPoints returns the highest tier whose threshold is at or below the
// given points, scanning from the top. Negative or sub-threshold balances
// fall back to the lowest defined tier, so the function is total for all
// inputs.
func (t *Table) ForPoints(points int64) Level {
	for i := len(t.levels) - 1; i >= 0; i-- {
		if t.levels[i].MinPoints <= points {
			return t.levels[i]
		}
	}
	return t.levels[0]
}

// Levels returns a copy of the ordered tier ladder.
func (t *Table) Levels() []Level {
	out := make([]Level, len(t.levels))
	copy(out, t.levels)
	return out
}
