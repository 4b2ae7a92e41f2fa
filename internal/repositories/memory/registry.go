package memory

import (
	"context"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

// Stores exposes the concrete memory stores so tests and local tooling can inspect them.
type Stores struct {
	Carts            *CartRepository
	Coupons          *CouponRepository
	CollectionPoints *CollectionPointRepository
	Orders           *OrderRepository
	Sessions         *SessionRepository
}

// NewStores builds every store from seed.
func NewStores(seed Seed) Stores {
	coupons := make([]domain.Coupon, 0, len(seed.Coupons))
	for _, c := range seed.Coupons {
		coupons = append(coupons, c.toDomain())
	}
	points := make([]domain.CollectionPoint, 0, len(seed.CollectionPoints))
	for _, p := range seed.CollectionPoints {
		points = append(points, p.toDomain())
	}
	carts := NewCartRepository()
	for customerID, lines := range seed.Carts {
		converted := make([]domain.CartLine, 0, len(lines))
		for _, l := range lines {
			converted = append(converted, l.toDomain())
		}
		carts.Put(customerID, converted)
	}
	return Stores{
		Carts:            carts,
		Coupons:          NewCouponRepository(coupons...),
		CollectionPoints: NewCollectionPointRepository(points...),
		Orders:           NewOrderRepository(),
		Sessions:         NewSessionRepository(),
	}
}

// Registry adapts the stores to repositories.Registry. Sessions may be overridden so a
// memory catalogue can run against a shared Redis session store.
func (s Stores) Registry(sessions repositories.CheckoutSessionRepository) (repositories.Registry, error) {
	if sessions == nil {
		sessions = s.Sessions
	}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}})
	if err != nil {
		return nil, err
	}
	return repositories.NewRegistry(repositories.RegistryParts{
		Carts:            s.Carts,
		Coupons:          s.Coupons,
		CollectionPoints: s.CollectionPoints,
		Orders:           s.Orders,
		CheckoutSessions: sessions,
		Health:           health,
	})
}
