package repositories

import (
	"context"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Coupons() CouponRepository
	CollectionPoints() CollectionPointRepository
	Orders() OrderRepository
	CheckoutSessions() CheckoutSessionRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository reads and clears the cart owned by the cart service.
type CartRepository interface {
	Items(ctx context.Context, customerID string) ([]domain.CartLine, error)
	Clear(ctx context.Context, customerID string) error
}

// CouponRepository is the coupon registry. FindByCode returns a RepositoryError with IsNotFound
// when the code is unknown.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
}

// CollectionPointRepository lists pickup locations.
type CollectionPointRepository interface {
	List(ctx context.Context) ([]domain.CollectionPoint, error)
	ListByDistrict(ctx context.Context, district string) ([]domain.CollectionPoint, error)
}

// OrderRepository persists placed orders together with their details.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
}

// CheckoutSessionRepository stores checkout sessions and guards submission.
type CheckoutSessionRepository interface {
	Get(ctx context.Context, sessionID string) (domain.CheckoutSession, error)
	Save(ctx context.Context, session domain.CheckoutSession) error
	Delete(ctx context.Context, sessionID string) error
	// ActiveForCustomer returns the id of the customer's current session; IsNotFound when none.
	ActiveForCustomer(ctx context.Context, customerID string) (string, error)
	// AcquireSubmission reports false when another submission already holds the session.
	AcquireSubmission(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	ReleaseSubmission(ctx context.Context, sessionID string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
