// Package service contains the domain logic sitting between the HTTP
// handlers and the repositories: the reservation coordinator, the song
// request lifecycle and the timer service backing hold expiry.
package service

import (
	"sync"
	"time"
)

// TimerService owns the pending hold-expiry timers, keyed by timeslot id.
// It replaces the ambient session→setTimeout map of the old system with a
// single owned object: created at process start, stopped at shutdown,
// entries removed when a timer fires or is cancelled.
//
// Holds are per-timeslot, so the key is the slot id; scheduling a timer
// for an id that already has one replaces (cancels) the previous timer.
type TimerService struct {
	mu     sync.Mutex
	timers map[uint64]*time.Timer
}

// NewTimerService returns an empty timer registry.
func NewTimerService() *TimerService {
	return &TimerService{timers: make(map[uint64]*time.Timer)}
}

// Schedule arms a single-shot timer for the given id. When it fires, the
// registration is removed before fn runs, so fn may safely schedule a new
// timer for the same id. fn runs on the timer goroutine; it must
// re-validate current state before acting, since the timer may fire just
// after a legitimate transition already cancelled the hold logically.
func (s *TimerService) Schedule(id uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[id]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		// Only remove our own registration: a Cancel+Schedule pair may
		// have replaced it while this callback was being dispatched.
		if cur, ok := s.timers[id]; ok && cur == t {
			delete(s.timers, id)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = t
}

// Cancel stops and removes the pending timer for id. It returns false
// when no timer was registered, which includes the case where the timer
// already fired; callers relying on exclusivity must use state
// re-validation, not this return value.
func (s *TimerService) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	t.Stop()
	return true
}

// Pending reports the number of armed timers. Used by tests and the
// shutdown log line.
func (s *TimerService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer. Called once at shutdown.
func (s *TimerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
