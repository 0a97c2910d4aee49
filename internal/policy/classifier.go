package policy

import "github.com/eliteGoblin/focusd/win_mon/internal/domain"

// Classify resolves the single rule that applies to a window.
//
// Each pattern is tried against the full name and, only if that fails, against
// the short name. More than one match in either group is an
// *domain.AmbiguousRuleError. A unique full-name match wins over a unique
// short-name match; no match returns nil without error.
func (t *Table) Classify(fullName *string, shortName string) (*Pattern, error) {
	var byName, byShort []Pattern

	for _, p := range t.patterns {
		if fullName != nil && p.Match(*fullName) {
			byName = append(byName, p)
		} else if p.Match(shortName) {
			byShort = append(byShort, p)
		}

		for _, matches := range [][]Pattern{byName, byShort} {
			if len(matches) > 1 {
				return nil, &domain.AmbiguousRuleError{
					FullName:  fullName,
					ShortName: shortName,
					Patterns:  keys(matches),
				}
			}
		}
	}

	for _, matches := range [][]Pattern{byName, byShort} {
		if len(matches) == 1 {
			p := matches[0]
			return &p, nil
		}
	}
	return nil, nil
}

func keys(patterns []Pattern) []string {
	result := make([]string, len(patterns))
	for i, p := range patterns {
		result[i] = p.Key
	}
	return result
}
