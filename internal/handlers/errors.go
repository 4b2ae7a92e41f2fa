package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/biccshop/checkout/internal/platform/httpx"
	"github.com/biccshop/checkout/internal/services"
)

var errCouponRateLimited = errors.New("too many coupon attempts")

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "checkout has invalid fields", http.StatusBadRequest).WithDetails(map[string]any{
			"fields":     validationErr.Fields(),
			"violations": buildViolationPayloads(validationErr.Violations),
		}))
		return
	}

	switch {
	case errors.Is(err, errCouponRateLimited):
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many coupon attempts; try again later", http.StatusTooManyRequests))
	case errors.Is(err, services.ErrCouponInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_invalid", "coupon code is not valid", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrSubmissionInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("submission_in_progress", "order submission already in progress", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", "operation not allowed in the current checkout state", http.StatusConflict))
	case errors.Is(err, services.ErrSubmissionFailed):
		httpx.WriteError(ctx, w, httpx.NewError("submission_failed", "order could not be placed; retry", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "checkout session belongs to another customer", http.StatusForbidden))
	case errors.Is(err, services.ErrCheckoutUnavailable), errors.Is(err, services.ErrCouponRegistryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "checkout is temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrCheckoutInvalidInput),
		errors.Is(err, services.ErrUnknownPaymentMethod),
		errors.Is(err, services.ErrUnknownShippingMode),
		errors.Is(err, services.ErrCollectionPointOutOfRange):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "orders are temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to load orders", http.StatusInternalServerError))
	}
}
