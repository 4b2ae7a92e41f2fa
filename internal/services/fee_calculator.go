package services

import (
	"fmt"
	"strings"

	domain "github.com/biccshop/checkout/internal/domain"
)

const (
	defaultTaxPercent     = 10
	defaultCardFeePercent = 5
)

// PricingRates holds the percentages applied to the cart subtotal. The zero value uses
// 10% tax and a 5% card fee; NewPricingRates sets both explicitly.
type PricingRates struct {
	taxPercent     int64
	cardFeePercent int64
	set            bool
}

// NewPricingRates validates whole-percent rates in [0, 100].
func NewPricingRates(taxPercent, cardFeePercent int64) (PricingRates, error) {
	if taxPercent < 0 || taxPercent > 100 {
		return PricingRates{}, fmt.Errorf("%w: tax percent %d out of range", ErrCheckoutInvalidInput, taxPercent)
	}
	if cardFeePercent < 0 || cardFeePercent > 100 {
		return PricingRates{}, fmt.Errorf("%w: card fee percent %d out of range", ErrCheckoutInvalidInput, cardFeePercent)
	}
	return PricingRates{taxPercent: taxPercent, cardFeePercent: cardFeePercent, set: true}, nil
}

// TaxPercent is applied to the subtotal before discounts.
func (r PricingRates) TaxPercent() int64 {
	if !r.set {
		return defaultTaxPercent
	}
	return r.taxPercent
}

// CardFeePercent is the gateway fee estimate for card payments.
func (r PricingRates) CardFeePercent() int64 {
	if !r.set {
		return defaultCardFeePercent
	}
	return r.cardFeePercent
}

// FeeQuote is the fee table entry for a payment method. Reason is display-only.
type FeeQuote struct {
	Fee             int64
	Status          domain.PaymentStatus
	Reason          string
	CardFormVisible bool
}

// FeeFor looks up the gateway fee for method against subtotal at the default rates.
func FeeFor(method domain.PaymentMethod, subtotal int64) (FeeQuote, error) {
	return PricingRates{}.FeeFor(method, subtotal)
}

// FeeFor looks up the gateway fee for method against subtotal.
func (r PricingRates) FeeFor(method domain.PaymentMethod, subtotal int64) (FeeQuote, error) {
	switch method {
	case domain.PaymentMethodCOD:
		return FeeQuote{Status: domain.PaymentStatusUnpaid, Reason: "COD"}, nil
	case domain.PaymentMethodCard:
		return FeeQuote{
			Fee:             percentOf(subtotal, r.CardFeePercent()),
			Status:          domain.PaymentStatusPaid,
			Reason:          fmt.Sprintf("Card (%d%%)", r.CardFeePercent()),
			CardFormVisible: true,
		}, nil
	case domain.PaymentMethodWallet:
		return FeeQuote{Status: domain.PaymentStatusPaid, Reason: "Wallet"}, nil
	default:
		return FeeQuote{}, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
}

// ParsePaymentMethod normalises user input into a known payment method.
func ParsePaymentMethod(raw string) (domain.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cod", "cash_on_delivery":
		return domain.PaymentMethodCOD, nil
	case "card":
		return domain.PaymentMethodCard, nil
	case "wallet", "bkash":
		return domain.PaymentMethodWallet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, raw)
	}
}
