package services

import (
	"strings"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
)

// OrderBuilder freezes a draft and its cart into an order snapshot. It performs no I/O.
type OrderBuilder struct {
	country string
	rates   PricingRates
}

// NewOrderBuilder stamps orders with the given destination country.
func NewOrderBuilder(country string) *OrderBuilder {
	country = strings.TrimSpace(country)
	if country == "" {
		country = defaultShippingCountry
	}
	return &OrderBuilder{country: country}
}

// WithRates prices orders at rates instead of the defaults.
func (b *OrderBuilder) WithRates(rates PricingRates) *OrderBuilder {
	b.rates = rates
	return b
}

// Build returns ErrEmptyCart when cart has no lines. ID is left for the caller to assign.
func (b *OrderBuilder) Build(draft domain.CheckoutDraft, cart domain.CartSnapshot, customer domain.Customer, now time.Time) (domain.Order, error) {
	if cart.Empty() {
		return domain.Order{}, ErrEmptyCart
	}

	totals := b.rates.Recompute(draft)
	var deliveryDate *time.Time
	if draft.DeliveryDate != nil {
		t := draft.DeliveryDate.UTC()
		deliveryDate = &t
	}

	details := make([]domain.OrderDetail, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		details = append(details, domain.OrderDetail{
			ProductID:           line.ProductID,
			SellerID:            line.SellerID,
			StoreName:           line.StoreName,
			ProductName:         line.ProductName,
			ProductUnitPrice:    line.UnitPrice,
			ProductThumbnailURL: line.ProductThumbnailURL,
			Quantity:            line.Quantity,
			SubTotal:            line.LineSubtotal,
			Status:              domain.OrderDetailStatusPending,
			DeliveryDate:        deliveryDate,
		})
	}

	order := domain.Order{
		OrderDate:        now.UTC(),
		CustomerID:       customer.ID,
		CustomerName:     customer.Name,
		CustomerEmail:    customer.Email,
		SubTotal:         totals.Subtotal,
		Discount:         totals.Discount,
		ShippingCharge:   totals.Shipping,
		Tax:              totals.Tax,
		GatewayFee:       totals.GatewayFee,
		OrderTotal:       totals.OrderTotal,
		ShippingMode:     draft.Shipping.Mode,
		ShippingStreet:   draft.Shipping.Street,
		ShippingCity:     draft.Shipping.City,
		ShippingPostCode: draft.Shipping.PostCode,
		ShippingState:    draft.Shipping.State,
		ShippingCountry:  b.country,
		Status:           domain.OrderStatusProcessing,
		PaymentMethod:    draft.Payment.Method,
		PaymentStatus:    draft.Payment.Status,
		OrderDetails:     details,
	}
	if draft.Coupon != nil {
		order.CouponCode = draft.Coupon.Code
		order.DiscountReason = DiscountReason(*draft.Coupon)
	}
	if draft.Payment.Method == domain.PaymentMethodCard {
		order.CardHolderName = draft.Payment.Card.HolderName
		order.CardNumber = maskCardNumber(draft.Payment.Card.Number)
		order.CardExpiryDate = draft.Payment.Card.Expiry
	}
	return order, nil
}

// maskCardNumber keeps the last four digits. A number stored masked is kept as is.
func maskCardNumber(number string) string {
	if strings.Contains(number, "*") {
		return number
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
