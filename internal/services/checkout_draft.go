package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
)

// DraftTotals is the derived pricing of a draft.
type DraftTotals struct {
	Subtotal   int64
	Discount   int64
	Tax        int64
	Shipping   int64
	GatewayFee int64
	OrderTotal int64
	// Floored is set when the raw total was negative and clamped to zero.
	Floored bool
}

// RecomputeTotal derives every dependent amount of the draft at the default rates.
func RecomputeTotal(draft domain.CheckoutDraft) DraftTotals {
	return PricingRates{}.Recompute(draft)
}

// Recompute derives every dependent amount of the draft from its inputs.
// orderTotal = subtotal + shipping + gatewayFee - discount + tax, never below zero.
func (r PricingRates) Recompute(draft domain.CheckoutDraft) DraftTotals {
	subtotal := draft.Cart.Subtotal
	if subtotal < 0 {
		subtotal = 0
	}
	totals := DraftTotals{
		Subtotal: subtotal,
		Discount: DiscountFor(draft.Coupon, subtotal),
		Tax:      percentOf(subtotal, r.TaxPercent()),
		Shipping: maxInt64(draft.Shipping.Charge, 0),
	}
	if draft.Payment.Method != "" {
		if quote, err := r.FeeFor(draft.Payment.Method, subtotal); err == nil {
			totals.GatewayFee = quote.Fee
		}
	}
	raw := totals.Subtotal + totals.Shipping + totals.GatewayFee - totals.Discount + totals.Tax
	if raw < 0 {
		raw = 0
		totals.Floored = true
	}
	totals.OrderTotal = raw
	return totals
}

// CheckoutDraft owns the mutable pricing state of a session. Every mutation stores a fresh
// RecomputeTotal result before returning, so the exposed total is never stale.
type CheckoutDraft struct {
	state    domain.CheckoutDraft
	shipping *ShippingSelector
	rates    PricingRates
	logger   func(context.Context, string, map[string]any)
}

// NewCheckoutDraft starts a draft for the cart with home delivery selected and no payment method.
func NewCheckoutDraft(cart domain.CartSnapshot, shipping *ShippingSelector) *CheckoutDraft {
	if shipping == nil {
		shipping = NewShippingSelector(ShippingSelectorConfig{})
	}
	d := &CheckoutDraft{
		state: domain.CheckoutDraft{
			Shipping: shipping.Initial(),
		},
		shipping: shipping,
	}
	d.LoadCart(cart)
	return d
}

// ResumeDraft wraps persisted draft state for further mutation.
func ResumeDraft(state domain.CheckoutDraft, shipping *ShippingSelector) *CheckoutDraft {
	if shipping == nil {
		shipping = NewShippingSelector(ShippingSelectorConfig{})
	}
	d := &CheckoutDraft{state: state, shipping: shipping}
	d.recompute()
	return d
}

// WithRates prices the draft at rates instead of the defaults.
func (d *CheckoutDraft) WithRates(rates PricingRates) *CheckoutDraft {
	d.rates = rates
	d.recompute()
	return d
}

// WithLogger attaches an event hook used for notable pricing events.
func (d *CheckoutDraft) WithLogger(logger func(context.Context, string, map[string]any)) *CheckoutDraft {
	d.logger = logger
	return d
}

// Snapshot returns a copy of the current state.
func (d *CheckoutDraft) Snapshot() domain.CheckoutDraft {
	out := d.state
	out.Cart.Lines = append([]domain.CartLine(nil), d.state.Cart.Lines...)
	if d.state.Coupon != nil {
		c := *d.state.Coupon
		out.Coupon = &c
	}
	if d.state.DeliveryDate != nil {
		t := *d.state.DeliveryDate
		out.DeliveryDate = &t
	}
	return out
}

// LoadCart replaces the cart snapshot.
func (d *CheckoutDraft) LoadCart(cart domain.CartSnapshot) {
	d.state.Cart = cart
	d.recompute()
}

// ApplyCoupon replaces any previously applied coupon.
func (d *CheckoutDraft) ApplyCoupon(coupon domain.Coupon) {
	c := coupon
	d.state.Coupon = &c
	d.recompute()
}

// ClearCoupon removes the coupon; the discount returns to zero.
func (d *CheckoutDraft) ClearCoupon() {
	d.state.Coupon = nil
	d.recompute()
}

// SelectShipping switches the shipping mode.
func (d *CheckoutDraft) SelectShipping(mode domain.ShippingMode) error {
	next, err := d.shipping.Select(d.state.Shipping, mode)
	if err != nil {
		return err
	}
	d.state.Shipping = next
	d.recompute()
	return nil
}

// ChooseCollectionPoint copies the indexed point into the destination; -1 clears it.
func (d *CheckoutDraft) ChooseCollectionPoint(points []domain.CollectionPoint, index int) error {
	next, err := d.shipping.ChooseCollectionPoint(d.state.Shipping, points, index)
	if err != nil {
		return err
	}
	d.state.Shipping = next
	d.recompute()
	return nil
}

// ShippingAddress is the editable part of the destination.
type ShippingAddress struct {
	Street   string
	City     string
	PostCode string
	State    string
}

// UpdateAddress overwrites the destination fields.
func (d *CheckoutDraft) UpdateAddress(addr ShippingAddress) {
	d.state.Shipping.Street = strings.TrimSpace(addr.Street)
	d.state.Shipping.City = strings.TrimSpace(addr.City)
	d.state.Shipping.PostCode = strings.TrimSpace(addr.PostCode)
	d.state.Shipping.State = strings.TrimSpace(addr.State)
	d.recompute()
}

// SelectPayment applies the fee table for method and resets any card entry.
func (d *CheckoutDraft) SelectPayment(method domain.PaymentMethod) error {
	quote, err := d.rates.FeeFor(method, d.state.Cart.Subtotal)
	if err != nil {
		return err
	}
	d.state.Payment = domain.PaymentSelection{
		Method:          method,
		GatewayFee:      quote.Fee,
		Status:          quote.Status,
		Reason:          quote.Reason,
		CardFormVisible: quote.CardFormVisible,
	}
	d.recompute()
	return nil
}

// UpdateCardDetails stores card entry; only allowed while the card form is shown.
func (d *CheckoutDraft) UpdateCardDetails(card domain.CardDetails) error {
	if !d.state.Payment.CardFormVisible {
		return fmt.Errorf("%w: card details require the card payment method", ErrCheckoutInvalidInput)
	}
	d.state.Payment.Card = domain.CardDetails{
		HolderName: strings.TrimSpace(card.HolderName),
		Number:     strings.ReplaceAll(strings.TrimSpace(card.Number), " ", ""),
		CVV:        strings.TrimSpace(card.CVV),
		Expiry:     strings.TrimSpace(card.Expiry),
	}
	d.recompute()
	return nil
}

// SetDeliveryDate records the requested delivery date echoed into every order detail.
func (d *CheckoutDraft) SetDeliveryDate(date *time.Time) {
	if date == nil {
		d.state.DeliveryDate = nil
	} else {
		t := date.UTC()
		d.state.DeliveryDate = &t
	}
	d.recompute()
}

func (d *CheckoutDraft) recompute() {
	totals := d.rates.Recompute(d.state)
	d.state.Discount = totals.Discount
	d.state.DiscountReason = ""
	if d.state.Coupon != nil {
		d.state.DiscountReason = DiscountReason(*d.state.Coupon)
	}
	d.state.Tax = totals.Tax
	d.state.Payment.GatewayFee = totals.GatewayFee
	d.state.OrderTotal = totals.OrderTotal
	if totals.Floored && d.logger != nil {
		d.logger(context.Background(), "checkout_total_floored", map[string]any{
			"subtotal": totals.Subtotal,
			"discount": totals.Discount,
		})
	}
}

func percentOf(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return (amount*pct + 50) / 100
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// formatMinor renders minor units with two decimals, e.g. 1050 -> "10.50".
func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
