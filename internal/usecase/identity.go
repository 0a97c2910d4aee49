// Package usecase contains application business logic.
package usecase

import (
	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
)

// Classifier resolves the rule of a window. Implemented by *policy.Table.
type Classifier interface {
	Classify(fullName *string, shortName string) (*policy.Pattern, error)
}

// IdentityCache memoizes fingerprint -> tracking key for one rule generation.
type IdentityCache struct {
	entries map[domain.Fingerprint]domain.TrackingKey
}

// NewIdentityCache creates an empty cache.
func NewIdentityCache() *IdentityCache {
	return &IdentityCache{entries: make(map[domain.Fingerprint]domain.TrackingKey)}
}

// Resolve returns the tracking key of a window, classifying it on first sight.
// Unclassified windows get a key built from their own fingerprint.
func (c *IdentityCache) Resolve(attrs domain.WindowAttributes, classifier Classifier) (domain.TrackingKey, error) {
	fp := attrs.Fingerprint()
	if key, ok := c.entries[fp]; ok {
		return key, nil
	}

	pattern, err := classifier.Classify(attrs.FullName(), attrs.ShortName())
	if err != nil {
		return domain.TrackingKey{}, err
	}

	key := domain.FallbackKey(fp)
	if pattern != nil {
		key = domain.RuleKey(pattern.Key)
	}
	c.entries[fp] = key
	return key, nil
}

// ForgetKey drops every fingerprint that maps to key and returns how many were dropped.
func (c *IdentityCache) ForgetKey(key domain.TrackingKey) int {
	n := 0
	for fp, k := range c.entries {
		if k == key {
			delete(c.entries, fp)
			n++
		}
	}
	return n
}

// Invalidate drops all entries. Called when the rule table is replaced.
func (c *IdentityCache) Invalidate() {
	c.entries = make(map[domain.Fingerprint]domain.TrackingKey)
}

// Len returns the number of cached fingerprints.
func (c *IdentityCache) Len() int {
	return len(c.entries)
}
