package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type stubCleaner struct {
	now     time.Time
	limit   int
	removed int
	err     error
}

func (s *stubCleaner) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.now, s.limit = now, limit
	return s.removed, s.err
}

func TestMaintenanceHandlersPurge(t *testing.T) {
	now := time.Date(2025, 8, 1, 3, 0, 0, 0, time.UTC)
	cleaner := &stubCleaner{removed: 7}
	service := &stubCheckoutService{purgeFunc: func(context.Context) (int, error) { return 3, nil }}

	router := chi.NewRouter()
	router.Route("/internal", NewMaintenanceHandlers(service, cleaner, func() time.Time { return now }).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/maintenance/checkout-sessions:purge", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp purgeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PurgedSessions != 3 || resp.PurgedIdempotencyKeys != 7 {
		t.Fatalf("unexpected response %#v", resp)
	}
	if !cleaner.now.Equal(now) || cleaner.limit != defaultIdempotencyCleanupLimit {
		t.Fatalf("unexpected cleanup call %v %d", cleaner.now, cleaner.limit)
	}
}

func TestMaintenanceHandlersPurgeToleratesCleanupFailure(t *testing.T) {
	service := &stubCheckoutService{purgeFunc: func(context.Context) (int, error) { return 1, nil }}
	router := chi.NewRouter()
	router.Route("/internal", NewMaintenanceHandlers(service, &stubCleaner{err: errors.New("firestore down")}, nil).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/maintenance/checkout-sessions:purge", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
