package services

import (
	"fmt"
	"strings"

	domain "github.com/biccshop/checkout/internal/domain"
)

const (
	defaultFlatShippingCharge = 800
	defaultShippingCountry    = "Bangladesh"
)

// ShippingSelectorConfig configures the flat-rate shipping policy.
type ShippingSelectorConfig struct {
	FlatCharge int64
	Country    string
}

// ShippingSelector charges one flat rate for every mode and region.
type ShippingSelector struct {
	flatCharge int64
	country    string
}

// NewShippingSelector applies defaults for zero values.
func NewShippingSelector(cfg ShippingSelectorConfig) *ShippingSelector {
	charge := cfg.FlatCharge
	if charge <= 0 {
		charge = defaultFlatShippingCharge
	}
	country := strings.TrimSpace(cfg.Country)
	if country == "" {
		country = defaultShippingCountry
	}
	return &ShippingSelector{flatCharge: charge, country: country}
}

// Country is the destination country stamped on every order.
func (s *ShippingSelector) Country() string {
	return s.country
}

// Initial is the selection of a new draft: home delivery, empty destination.
func (s *ShippingSelector) Initial() domain.ShippingSelection {
	return domain.ShippingSelection{
		Mode:    domain.ShippingModeHome,
		Charge:  s.flatCharge,
		Country: s.country,
	}
}

// Select switches mode. A mode change clears street, postcode and collection point;
// city and state are kept since they drive the district filter.
func (s *ShippingSelector) Select(current domain.ShippingSelection, mode domain.ShippingMode) (domain.ShippingSelection, error) {
	switch mode {
	case domain.ShippingModeHome, domain.ShippingModeCollectionPoint:
	default:
		return current, fmt.Errorf("%w: %q", ErrUnknownShippingMode, mode)
	}
	next := current
	next.Charge = s.flatCharge
	next.Country = s.country
	if current.Mode != mode {
		next.Mode = mode
		next.Street = ""
		next.PostCode = ""
		next.CollectionPointID = ""
	}
	return next, nil
}

// ChooseCollectionPoint copies points[index] into the destination. index -1 clears the
// destination address and leaves the charge unchanged.
func (s *ShippingSelector) ChooseCollectionPoint(current domain.ShippingSelection, points []domain.CollectionPoint, index int) (domain.ShippingSelection, error) {
	if current.Mode != domain.ShippingModeCollectionPoint {
		return current, fmt.Errorf("%w: shipping mode is not collection point", ErrCheckoutState)
	}
	next := current
	if index == -1 {
		next.Street = ""
		next.PostCode = ""
		next.CollectionPointID = ""
		return next, nil
	}
	if index < 0 || index >= len(points) {
		return current, fmt.Errorf("%w: %d of %d", ErrCollectionPointOutOfRange, index, len(points))
	}
	point := points[index]
	next.CollectionPointID = point.ID
	next.Street = point.Address
	next.PostCode = point.PostCode
	if district := strings.TrimSpace(point.District); district != "" {
		next.City = district
	}
	if state := strings.TrimSpace(point.State); state != "" {
		next.State = state
	}
	return next, nil
}

// ParseShippingMode normalises user input into a known shipping mode.
func ParseShippingMode(raw string) (domain.ShippingMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "home", "home_delivery":
		return domain.ShippingModeHome, nil
	case "collection_point", "collection-point", "pickup":
		return domain.ShippingModeCollectionPoint, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownShippingMode, raw)
	}
}
