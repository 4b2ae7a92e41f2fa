package repositories

import (
	"context"
	"errors"
	"fmt"
)

// RegistryParts lists the stores a Registry hands out. Closers run in reverse order on Close.
type RegistryParts struct {
	Carts            CartRepository
	Coupons          CouponRepository
	CollectionPoints CollectionPointRepository
	Orders           OrderRepository
	CheckoutSessions CheckoutSessionRepository
	Health           HealthRepository
	Closers          []func(context.Context) error
}

type registry struct {
	parts RegistryParts
}

// NewRegistry validates that every store is present.
func NewRegistry(parts RegistryParts) (Registry, error) {
	var missing []string
	if parts.Carts == nil {
		missing = append(missing, "carts")
	}
	if parts.Coupons == nil {
		missing = append(missing, "coupons")
	}
	if parts.CollectionPoints == nil {
		missing = append(missing, "collection points")
	}
	if parts.Orders == nil {
		missing = append(missing, "orders")
	}
	if parts.CheckoutSessions == nil {
		missing = append(missing, "checkout sessions")
	}
	if parts.Health == nil {
		missing = append(missing, "health")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("repositories registry: missing %v", missing)
	}
	return &registry{parts: parts}, nil
}

func (r *registry) Carts() CartRepository                       { return r.parts.Carts }
func (r *registry) Coupons() CouponRepository                   { return r.parts.Coupons }
func (r *registry) CollectionPoints() CollectionPointRepository { return r.parts.CollectionPoints }
func (r *registry) Orders() OrderRepository                     { return r.parts.Orders }
func (r *registry) CheckoutSessions() CheckoutSessionRepository { return r.parts.CheckoutSessions }
func (r *registry) Health() HealthRepository                    { return r.parts.Health }

// Close runs every closer and joins their errors.
func (r *registry) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.parts.Closers) - 1; i >= 0; i-- {
		if closer := r.parts.Closers[i]; closer != nil {
			if err := closer(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
