package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/biccshop/checkout/internal/platform/httpx"
	"github.com/biccshop/checkout/internal/platform/requestctx"
	"github.com/biccshop/checkout/internal/services"
)

const defaultIdempotencyCleanupLimit = 500

// IdempotencyCleaner removes expired idempotency records.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// MaintenanceHandlers serves the scheduler-triggered housekeeping endpoints under /internal.
type MaintenanceHandlers struct {
	checkout    services.CheckoutService
	idempotency IdempotencyCleaner
	clock       func() time.Time
}

// NewMaintenanceHandlers constructs maintenance handlers. OIDC is applied by the router.
func NewMaintenanceHandlers(checkout services.CheckoutService, idempotency IdempotencyCleaner, clock func() time.Time) *MaintenanceHandlers {
	if clock == nil {
		clock = time.Now
	}
	return &MaintenanceHandlers{checkout: checkout, idempotency: idempotency, clock: clock}
}

// Routes registers the maintenance endpoints.
func (h *MaintenanceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/checkout-sessions:purge", h.purge)
}

type purgeResponse struct {
	PurgedSessions        int    `json:"purgedSessions"`
	PurgedIdempotencyKeys int    `json:"purgedIdempotencyKeys"`
	CompletedAt           string `json:"completedAt"`
}

func (h *MaintenanceHandlers) purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	sessions, err := h.checkout.PurgeExpired(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	resp := purgeResponse{PurgedSessions: sessions}
	if h.idempotency != nil {
		keys, err := h.idempotency.CleanupExpired(ctx, h.clock().UTC(), defaultIdempotencyCleanupLimit)
		if err != nil {
			// Sessions are already purged; the next run retries the keys.
			requestctx.Logger(ctx).Warn("idempotency cleanup failed", zap.Error(err))
		}
		resp.PurgedIdempotencyKeys = keys
	}
	resp.CompletedAt = formatTime(h.clock())
	writeJSONResponse(w, http.StatusOK, resp)
}
