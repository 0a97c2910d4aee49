package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

// ActivityTimer holds one ActivityRecord per tracking key.
type ActivityTimer struct {
	records   map[domain.TrackingKey]*domain.ActivityRecord
	threshold time.Duration
}

// NewActivityTimer creates a timer using domain.FocusChangeThreshold.
func NewActivityTimer() *ActivityTimer {
	return NewActivityTimerWithThreshold(domain.FocusChangeThreshold)
}

// NewActivityTimerWithThreshold creates a timer with a custom refocus threshold (for testing).
func NewActivityTimerWithThreshold(threshold time.Duration) *ActivityTimer {
	return &ActivityTimer{
		records:   make(map[domain.TrackingKey]*domain.ActivityRecord),
		threshold: threshold,
	}
}

// Observe records that key holds focus at now.
// A new focus session starts on first sight or when the key has been unseen
// for longer than the threshold; otherwise the session continues.
func (t *ActivityTimer) Observe(key domain.TrackingKey, now time.Time) domain.Observation {
	obs := domain.Observation{Key: key, Now: now, PrevLastSeen: now}

	rec, ok := t.records[key]
	if ok {
		obs.PrevLastSeen = rec.LastSeen
	}
	if !ok || now.Sub(rec.LastSeen) > t.threshold {
		rec = &domain.ActivityRecord{FocusStart: now}
		t.records[key] = rec
		obs.Refocused = true
	}
	// Clock steps backwards must not break FocusStart <= LastSeen.
	if now.Before(rec.FocusStart) {
		rec.FocusStart = now
	}
	rec.LastSeen = now

	obs.FocusStart = rec.FocusStart
	obs.Duration = int(now.Sub(rec.FocusStart) / time.Second)
	return obs
}

// Record returns a copy of the record of key.
func (t *ActivityTimer) Record(key domain.TrackingKey) (domain.ActivityRecord, bool) {
	rec, ok := t.records[key]
	if !ok {
		return domain.ActivityRecord{}, false
	}
	return *rec, true
}

// Delete removes the record of key.
func (t *ActivityTimer) Delete(key domain.TrackingKey) {
	delete(t.records, key)
}

// Expired returns the keys last seen more than ttl before now.
func (t *ActivityTimer) Expired(now time.Time, ttl time.Duration) []domain.TrackingKey {
	var keys []domain.TrackingKey
	for key, rec := range t.records {
		if now.Sub(rec.LastSeen) > ttl {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of tracked keys.
func (t *ActivityTimer) Len() int {
	return len(t.records)
}
