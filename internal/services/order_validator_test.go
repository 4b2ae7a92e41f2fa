package services

import (
	"reflect"
	"testing"

	domain "github.com/biccshop/checkout/internal/domain"
)

func completeDraft() domain.CheckoutDraft {
	return domain.CheckoutDraft{
		Cart: domain.CartSnapshot{Lines: []domain.CartLine{{ProductID: "p", UnitPrice: 100, Quantity: 1, LineSubtotal: 100}}, Subtotal: 100},
		Shipping: domain.ShippingSelection{
			Mode:     domain.ShippingModeHome,
			Street:   "12 Kemal Ataturk Ave",
			City:     "Dhaka",
			PostCode: "1213",
			State:    "Dhaka Division",
		},
		Payment: domain.PaymentSelection{Method: domain.PaymentMethodCOD},
	}
}

func violationFields(result ValidationResult) []string {
	fields := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

func TestOrderValidatorAcceptsCompleteDraft(t *testing.T) {
	result := NewOrderValidator(OrderValidatorConfig{}).Validate(completeDraft())
	if !result.OK || len(result.Violations) != 0 {
		t.Fatalf("expected ok, got %#v", result)
	}
}

func TestOrderValidatorMissingStreet(t *testing.T) {
	draft := completeDraft()
	draft.Shipping.Street = "   "
	result := NewOrderValidator(OrderValidatorConfig{}).Validate(draft)
	if result.OK {
		t.Fatalf("expected failure")
	}
	if got := violationFields(result); !reflect.DeepEqual(got, []string{FieldShippingStreet}) {
		t.Fatalf("unexpected violations %v", got)
	}
}

func TestOrderValidatorCardFieldsRequired(t *testing.T) {
	draft := completeDraft()
	draft.Payment = domain.PaymentSelection{Method: domain.PaymentMethodCard, CardFormVisible: true}
	result := NewOrderValidator(OrderValidatorConfig{}).Validate(draft)
	want := []string{FieldCardHolderName, FieldCardNumber, FieldCardCVV, FieldCardExpiryDate}
	if got := violationFields(result); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOrderValidatorRejectsPlaceholders(t *testing.T) {
	draft := completeDraft()
	draft.Shipping.City = "Select a city"
	draft.Shipping.State = "Sélectionner une région"
	result := NewOrderValidator(OrderValidatorConfig{}).Validate(draft)
	want := []string{FieldShippingCity, FieldShippingState}
	if got := violationFields(result); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	custom := NewOrderValidator(OrderValidatorConfig{CityPlaceholders: []string{"--"}})
	draft = completeDraft()
	draft.Shipping.City = "--"
	if got := violationFields(custom.Validate(draft)); !reflect.DeepEqual(got, []string{FieldShippingCity}) {
		t.Fatalf("expected custom placeholder rejected, got %v", got)
	}
}

func TestOrderValidatorReportsEveryViolationInRuleOrder(t *testing.T) {
	validator := NewOrderValidator(OrderValidatorConfig{})
	result := validator.Validate(domain.CheckoutDraft{})
	want := []string{FieldShippingStreet, FieldShippingCity, FieldShippingPostCode, FieldShippingState, FieldPaymentMethod}
	if got := violationFields(result); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(validator.Rules()) != 9 {
		t.Fatalf("expected 9 rules, got %d", len(validator.Rules()))
	}
}

func TestOrderValidatorDoesNotMutateDraft(t *testing.T) {
	draft := completeDraft()
	draft.Shipping.Street = ""
	before := draft
	NewOrderValidator(OrderValidatorConfig{}).Validate(draft)
	if !reflect.DeepEqual(before, draft) {
		t.Fatalf("draft mutated by validation")
	}
}
