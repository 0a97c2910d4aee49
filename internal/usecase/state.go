package usecase

import "github.com/eliteGoblin/focusd/win_mon/internal/domain"

// State is the tracking state owned by the poll loop and passed into every
// component call.
type State struct {
	Cache *IdentityCache
	Timer *ActivityTimer
}

// NewState creates empty tracking state.
func NewState() *State {
	return &State{
		Cache: NewIdentityCache(),
		Timer: NewActivityTimer(),
	}
}

// Forget removes key from the timer and every cache entry that resolves to it.
func (s *State) Forget(key domain.TrackingKey) {
	s.Timer.Delete(key)
	s.Cache.ForgetKey(key)
}
