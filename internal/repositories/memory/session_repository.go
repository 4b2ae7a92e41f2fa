package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

// SessionRepository keeps checkout sessions for a single process.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.CheckoutSession
	active   map[string]string
	guards   map[string]time.Time
	now      func() time.Time
}

var _ repositories.CheckoutSessionRepository = (*SessionRepository)(nil)

// NewSessionRepository returns an empty session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]domain.CheckoutSession),
		active:   make(map[string]string),
		guards:   make(map[string]time.Time),
		now:      time.Now,
	}
}

func (r *SessionRepository) Get(_ context.Context, sessionID string) (domain.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return domain.CheckoutSession{}, repositories.NotFound("checkout_sessions.get", "session %q", sessionID)
	}
	return cloneSession(session), nil
}

func (r *SessionRepository) Save(_ context.Context, session domain.CheckoutSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return repositories.NewStoreError("checkout_sessions.save", repositories.ErrorKindConflict, errors.New("session id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = cloneSession(session)
	if session.CustomerID == "" {
		return nil
	}
	if session.State.Terminal() {
		if r.active[session.CustomerID] == session.ID {
			delete(r.active, session.CustomerID)
		}
		return nil
	}
	r.active[session.CustomerID] = session.ID
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID)
	return nil
}

func (r *SessionRepository) ActiveForCustomer(_ context.Context, customerID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[customerID]
	if !ok {
		return "", repositories.NotFound("checkout_sessions.active", "customer %q has no session", customerID)
	}
	return id, nil
}

func (r *SessionRepository) AcquireSubmission(_ context.Context, sessionID string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if until, held := r.guards[sessionID]; held && now.Before(until) {
		return false, nil
	}
	r.guards[sessionID] = now.Add(ttl)
	return true, nil
}

func (r *SessionRepository) ReleaseSubmission(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.guards, sessionID)
	return nil
}

// PurgeExpired removes sessions expired at now unless a submission holds them.
func (r *SessionRepository) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for id, session := range r.sessions {
		if session.ExpiresAt.After(now) {
			continue
		}
		if until, held := r.guards[id]; held && now.Before(until) {
			continue
		}
		r.removeLocked(id)
		purged++
	}
	return purged, nil
}

func (r *SessionRepository) removeLocked(sessionID string) {
	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	delete(r.guards, sessionID)
	if r.active[session.CustomerID] == sessionID {
		delete(r.active, session.CustomerID)
	}
}

func cloneSession(s domain.CheckoutSession) domain.CheckoutSession {
	s.Draft.Cart.Lines = append([]domain.CartLine(nil), s.Draft.Cart.Lines...)
	s.Violations = append([]domain.FieldViolation(nil), s.Violations...)
	if s.Draft.Coupon != nil {
		coupon := *s.Draft.Coupon
		s.Draft.Coupon = &coupon
	}
	if s.Draft.DeliveryDate != nil {
		date := *s.Draft.DeliveryDate
		s.Draft.DeliveryDate = &date
	}
	return s
}
