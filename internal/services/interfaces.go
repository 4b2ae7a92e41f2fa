package services

import (
	"context"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	CheckoutSession    = domain.CheckoutSession
	Order              = domain.Order
	OrderDetail        = domain.OrderDetail
	CollectionPoint    = domain.CollectionPoint
	Customer           = domain.Customer
	SystemHealthReport = domain.SystemHealthReport
)

// CheckoutService drives one customer's checkout session from cart load to placed order.
type CheckoutService interface {
	Start(ctx context.Context, customer Customer) (CheckoutSession, error)
	Get(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error)
	Abandon(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error)

	ApplyCoupon(ctx context.Context, customer Customer, sessionID string, code string) (CheckoutSession, error)
	ClearCoupon(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error)
	SelectShipping(ctx context.Context, customer Customer, sessionID string, mode domain.ShippingMode) (CheckoutSession, error)
	UpdateAddress(ctx context.Context, customer Customer, sessionID string, addr ShippingAddress) (CheckoutSession, error)
	ChooseCollectionPoint(ctx context.Context, customer Customer, sessionID string, index int) (CheckoutSession, error)
	SelectPayment(ctx context.Context, customer Customer, sessionID string, method domain.PaymentMethod) (CheckoutSession, error)
	UpdateCardDetails(ctx context.Context, customer Customer, sessionID string, card domain.CardDetails) (CheckoutSession, error)
	SetDeliveryDate(ctx context.Context, customer Customer, sessionID string, date *time.Time) (CheckoutSession, error)

	Validate(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, ValidationResult, error)
	Submit(ctx context.Context, customer Customer, sessionID string) (Order, error)

	PurgeExpired(ctx context.Context) (int, error)
}

// OrderService exposes placed orders to their owners (invoice and history views).
type OrderService interface {
	GetOrder(ctx context.Context, customer Customer, orderID string) (Order, error)
	ListOrders(ctx context.Context, customer Customer, pager Pagination) (domain.CursorPage[Order], error)
}

// CollectionPointService lists pickup locations, optionally by district.
type CollectionPointService interface {
	List(ctx context.Context, district string) ([]CollectionPoint, error)
}

// SystemService exposes health information for readiness checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CartEvents notifies the cart service that a customer's cart changed.
type CartEvents interface {
	CartChanged(ctx context.Context, event CartChangedEvent) error
}

// CartChangedEvent is emitted after checkout clears a cart.
type CartChangedEvent struct {
	CustomerID string    `json:"customerId"`
	Reason     string    `json:"reason"`
	OrderID    string    `json:"orderId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ConfirmationPublisher hands rendered confirmation messages to the mail worker.
type ConfirmationPublisher interface {
	PublishConfirmation(ctx context.Context, message OrderConfirmationMessage) (string, error)
}

// OrderConfirmationMessage is the payload consumed by the mail worker.
type OrderConfirmationMessage struct {
	OrderID        string    `json:"orderId"`
	CustomerID     string    `json:"customerId"`
	To             string    `json:"to"`
	Subject        string    `json:"subject"`
	HTMLBody       string    `json:"htmlBody"`
	Locale         string    `json:"locale,omitempty"`
	PlacedAt       time.Time `json:"placedAt"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// ConfirmationSender renders and dispatches the confirmation for a placed order.
type ConfirmationSender interface {
	Send(ctx context.Context, customer Customer, order Order) error
}
