package services

import (
	"strings"

	domain "github.com/biccshop/checkout/internal/domain"
)

// Field names reported in violations; they match the order payload.
const (
	FieldShippingStreet   = "shippingStreet"
	FieldShippingCity     = "shippingCity"
	FieldShippingPostCode = "shippingPostCode"
	FieldShippingState    = "shippingState"
	FieldPaymentMethod    = "paymentMethod"
	FieldCardHolderName   = "cardHolderName"
	FieldCardNumber       = "cardNumber"
	FieldCardCVV          = "cardCvv"
	FieldCardExpiryDate   = "cardExpiryDate"
)

var (
	defaultCityPlaceholders   = []string{"select a city", "Sélectionner une ville"}
	defaultRegionPlaceholders = []string{"select a region", "Sélectionner une région"}
)

// ValidationRule is one declarative submission precondition. Check returns true when satisfied.
type ValidationRule struct {
	Field   string
	Check   func(draft domain.CheckoutDraft) bool
	Message string
}

// ValidationResult lists every failed rule in rule order.
type ValidationResult struct {
	OK         bool
	Violations []domain.FieldViolation
}

// OrderValidatorConfig overrides the placeholder values the address pickers emit.
type OrderValidatorConfig struct {
	CityPlaceholders   []string
	RegionPlaceholders []string
}

// OrderValidator evaluates its rule set uniformly against a draft.
type OrderValidator struct {
	rules []ValidationRule
}

// NewOrderValidator builds the standard rule set.
func NewOrderValidator(cfg OrderValidatorConfig) *OrderValidator {
	cities := cfg.CityPlaceholders
	if len(cities) == 0 {
		cities = defaultCityPlaceholders
	}
	regions := cfg.RegionPlaceholders
	if len(regions) == 0 {
		regions = defaultRegionPlaceholders
	}

	card := func(get func(domain.CardDetails) string) func(domain.CheckoutDraft) bool {
		return func(d domain.CheckoutDraft) bool {
			if d.Payment.Method != domain.PaymentMethodCard {
				return true
			}
			return present(get(d.Payment.Card))
		}
	}

	return &OrderValidator{rules: []ValidationRule{
		{
			Field:   FieldShippingStreet,
			Check:   func(d domain.CheckoutDraft) bool { return present(d.Shipping.Street) },
			Message: "shipping street is required",
		},
		{
			Field: FieldShippingCity,
			Check: func(d domain.CheckoutDraft) bool {
				return present(d.Shipping.City) && !isPlaceholder(d.Shipping.City, cities)
			},
			Message: "shipping city is required",
		},
		{
			Field:   FieldShippingPostCode,
			Check:   func(d domain.CheckoutDraft) bool { return present(d.Shipping.PostCode) },
			Message: "shipping postcode is required",
		},
		{
			Field: FieldShippingState,
			Check: func(d domain.CheckoutDraft) bool {
				return present(d.Shipping.State) && !isPlaceholder(d.Shipping.State, regions)
			},
			Message: "shipping state is required",
		},
		{
			Field:   FieldPaymentMethod,
			Check:   func(d domain.CheckoutDraft) bool { return d.Payment.Method != "" },
			Message: "payment method is required",
		},
		{
			Field:   FieldCardHolderName,
			Check:   card(func(c domain.CardDetails) string { return c.HolderName }),
			Message: "card holder name is required",
		},
		{
			Field:   FieldCardNumber,
			Check:   card(func(c domain.CardDetails) string { return c.Number }),
			Message: "card number is required",
		},
		{
			Field:   FieldCardCVV,
			Check:   card(func(c domain.CardDetails) string { return c.CVV }),
			Message: "card CVV is required",
		},
		{
			Field:   FieldCardExpiryDate,
			Check:   card(func(c domain.CardDetails) string { return c.Expiry }),
			Message: "card expiry date is required",
		},
	}}
}

// Rules returns a copy of the rule set.
func (v *OrderValidator) Rules() []ValidationRule {
	return append([]ValidationRule(nil), v.rules...)
}

// Validate runs every rule. The draft is passed by value and never modified.
func (v *OrderValidator) Validate(draft domain.CheckoutDraft) ValidationResult {
	var violations []domain.FieldViolation
	for _, rule := range v.rules {
		if rule.Check(draft) {
			continue
		}
		violations = append(violations, domain.FieldViolation{Field: rule.Field, Message: rule.Message})
	}
	return ValidationResult{OK: len(violations) == 0, Violations: violations}
}

func present(value string) bool {
	return strings.TrimSpace(value) != ""
}

func isPlaceholder(value string, placeholders []string) bool {
	trimmed := strings.TrimSpace(value)
	for _, p := range placeholders {
		if strings.EqualFold(trimmed, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}
