package services

import (
	"fmt"
	"sync"

	domain "github.com/biccshop/checkout/internal/domain"
)

var checkoutTransitions = map[domain.CheckoutState][]domain.CheckoutState{
	domain.CheckoutStateInitializing: {domain.CheckoutStateEditing, domain.CheckoutStateAbandoned},
	domain.CheckoutStateEditing:      {domain.CheckoutStateEditing, domain.CheckoutStateValidating, domain.CheckoutStateAbandoned},
	domain.CheckoutStateValidating:   {domain.CheckoutStateEditing, domain.CheckoutStateSubmitting},
	domain.CheckoutStateSubmitting:   {domain.CheckoutStatePlaced, domain.CheckoutStateFailed},
	domain.CheckoutStateFailed:       {domain.CheckoutStateEditing},
}

// canTransition reports whether the session lifecycle allows moving from -> to.
func canTransition(from, to domain.CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(session *domain.CheckoutSession, to domain.CheckoutState) error {
	if !canTransition(session.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrCheckoutState, session.State, to)
	}
	session.State = to
	return nil
}

// sessionLocks serialises work on one session id inside a process. Cross-process exclusion
// for submission is provided by the session repository's submission guard.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until id is free and returns the matching unlock func.
func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
