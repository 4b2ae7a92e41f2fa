package services

import (
	"errors"
	"testing"

	domain "github.com/biccshop/checkout/internal/domain"
)

func TestParseShippingMode(t *testing.T) {
	cases := map[string]domain.ShippingMode{
		"home":             domain.ShippingModeHome,
		" Home_Delivery ":  domain.ShippingModeHome,
		"collection-point": domain.ShippingModeCollectionPoint,
		"COLLECTION_POINT": domain.ShippingModeCollectionPoint,
		"pickup":           domain.ShippingModeCollectionPoint,
	}
	for raw, want := range cases {
		got, err := ParseShippingMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseShippingMode(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseShippingMode("drone"); !errors.Is(err, ErrUnknownShippingMode) {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestShippingSelectorModeChangeClearsDestination(t *testing.T) {
	s := NewShippingSelector(ShippingSelectorConfig{})
	current := s.Initial()
	current.Street = "12 Kemal Ataturk Ave"
	current.City = "Dhaka"
	current.PostCode = "1213"
	current.State = "Dhaka Division"

	next, err := s.Select(current, domain.ShippingModeCollectionPoint)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if next.Street != "" || next.PostCode != "" {
		t.Fatalf("expected street and postcode cleared, got %#v", next)
	}
	if next.City != "Dhaka" || next.State != "Dhaka Division" {
		t.Fatalf("expected city and state kept, got %#v", next)
	}
	if next.Charge != 800 || next.Country != "Bangladesh" {
		t.Fatalf("unexpected charge/country %d/%s", next.Charge, next.Country)
	}

	same, err := s.Select(next, domain.ShippingModeCollectionPoint)
	if err != nil || same != next {
		t.Fatalf("reselecting the same mode should be a no-op, got %#v, %v", same, err)
	}
}

func TestShippingSelectorChooseCollectionPoint(t *testing.T) {
	s := NewShippingSelector(ShippingSelectorConfig{FlatCharge: 600, Country: "Bangladesh"})
	points := []domain.CollectionPoint{
		{ID: "cp-ctg", Name: "Agrabad Point", Address: "45 Agrabad C/A", District: "Chattogram", PostCode: "4100", State: "Chattogram Division"},
	}
	current, err := s.Select(s.Initial(), domain.ShippingModeCollectionPoint)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	chosen, err := s.ChooseCollectionPoint(current, points, 0)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if chosen.CollectionPointID != "cp-ctg" || chosen.Street != "45 Agrabad C/A" || chosen.City != "Chattogram" || chosen.PostCode != "4100" {
		t.Fatalf("unexpected destination %#v", chosen)
	}
	if chosen.Charge != 600 {
		t.Fatalf("expected flat charge kept, got %d", chosen.Charge)
	}

	cleared, err := s.ChooseCollectionPoint(chosen, nil, -1)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.CollectionPointID != "" || cleared.Street != "" || cleared.PostCode != "" {
		t.Fatalf("expected destination cleared, got %#v", cleared)
	}

	if _, err := s.ChooseCollectionPoint(chosen, points, 1); !errors.Is(err, ErrCollectionPointOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if _, err := s.ChooseCollectionPoint(s.Initial(), points, 0); !errors.Is(err, ErrCheckoutState) {
		t.Fatalf("expected state error for home delivery, got %v", err)
	}
}
