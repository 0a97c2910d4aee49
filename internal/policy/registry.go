package policy

import (
	"sort"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

// Table holds the compiled rules of one config generation.
// It is immutable once built; a reload builds a new Table.
type Table struct {
	patterns []Pattern
	timeouts map[string]domain.Timeout
}

// Compile builds a Table from rule key -> timeout. Invalid expressions degrade
// to literal matching, so compilation cannot fail.
func Compile(rules map[string]domain.Timeout) *Table {
	t := &Table{
		patterns: make([]Pattern, 0, len(rules)),
		timeouts: make(map[string]domain.Timeout, len(rules)),
	}
	for key, timeout := range rules {
		t.patterns = append(t.patterns, NewPattern(key))
		t.timeouts[key] = timeout
	}

	// Map order is random; keep scans and error messages stable.
	sort.Slice(t.patterns, func(i, j int) bool {
		return t.patterns[i].Key < t.patterns[j].Key
	})
	return t
}

// Timeout returns the policy value of a rule key.
func (t *Table) Timeout(key string) (domain.Timeout, bool) {
	v, ok := t.timeouts[key]
	return v, ok
}

// Patterns returns the compiled patterns sorted by key.
func (t *Table) Patterns() []Pattern {
	result := make([]Pattern, len(t.patterns))
	copy(result, t.patterns)
	return result
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.patterns)
}
