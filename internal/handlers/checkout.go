package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/platform/httpx"
	"github.com/biccshop/checkout/internal/platform/requestctx"
	"github.com/biccshop/checkout/internal/services"
)

const (
	defaultCouponAttempts = 10
	defaultCouponWindow   = time.Minute
)

// CheckoutHandlers exposes the checkout session endpoints to authenticated customers.
type CheckoutHandlers struct {
	checkout      services.CheckoutService
	submitGuard   func(http.Handler) http.Handler
	couponLimiter attemptLimiter
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithSubmitMiddleware wraps the submit route, typically with the idempotency middleware.
func WithSubmitMiddleware(mw func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.submitGuard = mw
	}
}

// WithCouponRateLimit caps coupon attempts per customer. A non-positive limit disables it.
func WithCouponRateLimit(limit int, window time.Duration, clock func() time.Time) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.couponLimiter = newWindowLimiter(limit, window, clock)
	}
}

// NewCheckoutHandlers constructs checkout handlers. Authentication is applied by the router.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		checkout:      checkout,
		couponLimiter: newWindowLimiter(defaultCouponAttempts, defaultCouponWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sessions", h.startSession)
	r.Route("/sessions/{sessionID}", func(s chi.Router) {
		s.Use(scopeCheckoutSession)
		s.Get("/", h.getSession)
		s.Delete("/", h.abandonSession)
		s.Put("/coupon", h.applyCoupon)
		s.Delete("/coupon", h.clearCoupon)
		s.Put("/shipping", h.selectShipping)
		s.Put("/shipping/address", h.updateAddress)
		s.Put("/shipping/collection-point", h.chooseCollectionPoint)
		s.Put("/payment", h.selectPayment)
		s.Put("/payment/card", h.updateCard)
		s.Put("/delivery-date", h.setDeliveryDate)
		s.Post("/validate", h.validate)
		if h.submitGuard != nil {
			s.With(h.submitGuard).Post("/submit", h.submit)
		} else {
			s.Post("/submit", h.submit)
		}
	})
}

// scopeCheckoutSession tags session routes with the session id for error bodies and logs.
func scopeCheckoutSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestctx.WithCheckoutSession(r.Context(), chi.URLParam(r, "sessionID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type selectShippingRequest struct {
	Mode string `json:"mode"`
}

type updateAddressRequest struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	PostCode string `json:"postCode"`
	State    string `json:"state"`
}

type chooseCollectionPointRequest struct {
	Index *int `json:"index"`
}

type selectPaymentRequest struct {
	Method string `json:"method"`
}

type updateCardRequest struct {
	HolderName string `json:"holderName"`
	Number     string `json:"number"`
	CVV        string `json:"cvv"`
	Expiry     string `json:"expiry"`
}

type deliveryDateRequest struct {
	DeliveryDate *string `json:"deliveryDate"`
}

type validateResponse struct {
	Valid      bool                   `json:"valid"`
	Violations []violationPayload     `json:"violations"`
	Session    checkoutSessionPayload `json:"session"`
}

func (h *CheckoutHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.prepare(w, r)
	if !ok {
		return
	}
	session, err := h.checkout.Start(r.Context(), customer)
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+session.ID)
	writeJSONResponse(w, http.StatusCreated, buildCheckoutSessionPayload(session))
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		return h.checkout.Get(ctx, customer, sessionID)
	})
}

func (h *CheckoutHandlers) abandonSession(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		return h.checkout.Abandon(ctx, customer, sessionID)
	})
}

func (h *CheckoutHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		if h.couponLimiter != nil && !h.couponLimiter.Allow(customer.ID) {
			return domain.CheckoutSession{}, errCouponRateLimited
		}
		return h.checkout.ApplyCoupon(ctx, customer, sessionID, req.Code)
	})
}

func (h *CheckoutHandlers) clearCoupon(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		return h.checkout.ClearCoupon(ctx, customer, sessionID)
	})
}

func (h *CheckoutHandlers) selectShipping(w http.ResponseWriter, r *http.Request) {
	var req selectShippingRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		mode, err := services.ParseShippingMode(req.Mode)
		if err != nil {
			return domain.CheckoutSession{}, err
		}
		return h.checkout.SelectShipping(ctx, customer, sessionID, mode)
	})
}

func (h *CheckoutHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	var req updateAddressRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		return h.checkout.UpdateAddress(ctx, customer, sessionID, services.ShippingAddress{
			Street:   req.Street,
			City:     req.City,
			PostCode: req.PostCode,
			State:    req.State,
		})
	})
}

func (h *CheckoutHandlers) chooseCollectionPoint(w http.ResponseWriter, r *http.Request) {
	var req chooseCollectionPointRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		if req.Index == nil {
			return domain.CheckoutSession{}, fmt.Errorf("%w: index is required", services.ErrCheckoutInvalidInput)
		}
		return h.checkout.ChooseCollectionPoint(ctx, customer, sessionID, *req.Index)
	})
}

func (h *CheckoutHandlers) selectPayment(w http.ResponseWriter, r *http.Request) {
	var req selectPaymentRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		method := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method)))
		return h.checkout.SelectPayment(ctx, customer, sessionID, method)
	})
}

func (h *CheckoutHandlers) updateCard(w http.ResponseWriter, r *http.Request) {
	var req updateCardRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		return h.checkout.UpdateCardDetails(ctx, customer, sessionID, domain.CardDetails{
			HolderName: req.HolderName,
			Number:     req.Number,
			CVV:        req.CVV,
			Expiry:     req.Expiry,
		})
	})
}

func (h *CheckoutHandlers) setDeliveryDate(w http.ResponseWriter, r *http.Request) {
	var req deliveryDateRequest
	h.mutateWithBody(w, r, &req, func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error) {
		date, err := parseDeliveryDate(req.DeliveryDate)
		if err != nil {
			return domain.CheckoutSession{}, err
		}
		return h.checkout.SetDeliveryDate(ctx, customer, sessionID, date)
	})
}

func (h *CheckoutHandlers) validate(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.prepare(w, r)
	if !ok {
		return
	}
	session, result, err := h.checkout.Validate(r.Context(), customer, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, validateResponse{
		Valid:      result.OK,
		Violations: buildViolationPayloads(result.Violations),
		Session:    buildCheckoutSessionPayload(session),
	})
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.prepare(w, r)
	if !ok {
		return
	}
	order, err := h.checkout.Submit(r.Context(), customer, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *CheckoutHandlers) prepare(w http.ResponseWriter, r *http.Request) (domain.Customer, bool) {
	if h.checkout == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return domain.Customer{}, false
	}
	return customerFromRequest(w, r)
}

type sessionOperation func(ctx context.Context, customer domain.Customer, sessionID string) (domain.CheckoutSession, error)

func (h *CheckoutHandlers) mutate(w http.ResponseWriter, r *http.Request, op sessionOperation) {
	customer, ok := h.prepare(w, r)
	if !ok {
		return
	}
	session, err := op(r.Context(), customer, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutSessionPayload(session))
}

func (h *CheckoutHandlers) mutateWithBody(w http.ResponseWriter, r *http.Request, dst any, op sessionOperation) {
	customer, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if !decodeJSONBody(w, r, dst) {
		return
	}
	session, err := op(r.Context(), customer, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCheckoutSessionPayload(session))
}

// parseDeliveryDate accepts a calendar date or an RFC 3339 timestamp. Null or blank clears it.
func parseDeliveryDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: deliveryDate must be YYYY-MM-DD or RFC 3339", services.ErrCheckoutInvalidInput)
}
