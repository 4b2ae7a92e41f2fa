package services

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/biccshop/checkout/internal/domain"
)

var (
	// ErrCheckoutInvalidInput signals malformed request data such as a blank coupon code.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutNotFound indicates the checkout session does not exist or has expired.
	ErrCheckoutNotFound = errors.New("checkout: session not found")
	// ErrCheckoutForbidden indicates the session belongs to another customer.
	ErrCheckoutForbidden = errors.New("checkout: session belongs to another customer")
	// ErrCheckoutState indicates the operation is not allowed in the session's current state.
	ErrCheckoutState = errors.New("checkout: operation not allowed in current state")
	// ErrCheckoutUnavailable indicates a backing store could not be reached.
	ErrCheckoutUnavailable = errors.New("checkout: dependency unavailable")
	// ErrCheckoutValidation is matched by every *ValidationError.
	ErrCheckoutValidation = errors.New("checkout: validation failed")
	// ErrCouponInvalid signals an unknown, inactive or expired coupon code.
	ErrCouponInvalid = errors.New("checkout: coupon invalid")
	// ErrCouponRegistryUnavailable indicates the coupon registry could not be queried.
	ErrCouponRegistryUnavailable = errors.New("checkout: coupon registry unavailable")
	// ErrEmptyCart is returned when an order would be built from an empty cart.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrSubmissionInProgress rejects a submit while another one is still running.
	ErrSubmissionInProgress = errors.New("checkout: submission already in progress")
	// ErrSubmissionFailed is matched by every *SubmissionError.
	ErrSubmissionFailed = errors.New("checkout: order submission failed")
	// ErrUnknownPaymentMethod is returned for payment methods outside the fee table.
	ErrUnknownPaymentMethod = errors.New("checkout: unknown payment method")
	// ErrUnknownShippingMode is returned for shipping modes other than home or collection point.
	ErrUnknownShippingMode = errors.New("checkout: unknown shipping mode")
	// ErrCollectionPointOutOfRange is returned when the chosen index is not in the directory.
	ErrCollectionPointOutOfRange = errors.New("checkout: collection point index out of range")
	// ErrOrderNotFound indicates the order does not exist or is not visible to the customer.
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrOrderInvalidInput signals malformed order queries.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("orders: dependency unavailable")
)

// ValidationError blocks submission and lists every failed field.
type ValidationError struct {
	Violations []domain.FieldViolation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrCheckoutValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCheckoutValidation.Error(), strings.Join(e.Fields(), ", "))
}

// Is lets errors.Is(err, ErrCheckoutValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrCheckoutValidation
}

// Fields returns the violated field names in rule order.
func (e *ValidationError) Fields() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Field)
	}
	return out
}

// SubmissionError wraps a remote failure while persisting the order. No order was created.
type SubmissionError struct {
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e == nil {
		return ErrSubmissionFailed.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (session %s)", ErrSubmissionFailed.Error(), e.SessionID)
	}
	return fmt.Sprintf("%s (session %s): %v", ErrSubmissionFailed.Error(), e.SessionID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrSubmissionFailed) match.
func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}
