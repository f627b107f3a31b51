package pipeline

import (
	"context"
	"sync"
)

// userLimiter bounds concurrent requests per user. Each user gets an
// independent semaphore so a burst from one user queues behind itself, not
// behind everyone else.
type userLimiter struct {
	capacity int

	mu    sync.Mutex
	users map[string]*userSlot
}

type userSlot struct {
	sem    chan struct{}
	active int
}

func newUserLimiter(capacity int) *userLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &userLimiter{
		capacity: capacity,
		users:    make(map[string]*userSlot),
	}
}

// acquire takes a slot for the user, waiting when the user is at capacity.
// Returns false when the context ends first.
func (l *userLimiter) acquire(ctx context.Context, userID string) bool {
	if ctx.Err() != nil {
		return false
	}

	l.mu.Lock()
	slot, ok := l.users[userID]
	if !ok {
		slot = &userSlot{sem: make(chan struct{}, l.capacity)}
		l.users[userID] = slot
	}
	slot.active++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		l.mu.Lock()
		slot.active--
		l.mu.Unlock()
		return false
	}
}

func (l *userLimiter) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.users[userID]
	if !ok {
		return
	}
	<-slot.sem
	slot.active--
}

// cleanup drops limiter state for users with no requests in flight.
func (l *userLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, slot := range l.users {
		if slot.active == 0 {
			delete(l.users, id)
		}
	}
}

// counts reports in-flight requests and tracked users.
func (l *userLimiter) counts() (active, users int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, slot := range l.users {
		active += slot.active
	}
	return active, len(l.users)
}

// Health reports pipeline liveness and rate limiting state, pruning limiter
// entries for idle users as a side effect.
func (s *Service) Health() map[string]any {
	s.limiter.cleanup()
	active, users := s.limiter.counts()

	personas := make(map[string]any)
	for _, p := range s.personas.List() {
		personas[p.Type] = map[string]any{
			"available": true,
			"persona":   p,
		}
	}

	return map[string]any{
		"initialized":                s.model != nil,
		"active_requests":            active,
		"active_users":               users,
		"max_requests_per_user":      s.cfg.MaxRequestsPerUser,
		"scaling_mode":               "per_user_rate_limiting",
		"theoretical_max_concurrent": users * s.cfg.MaxRequestsPerUser,
		"personas":                   personas,
	}
}
