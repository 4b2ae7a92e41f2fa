package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/platform/resilience"
	"github.com/biccshop/checkout/internal/repositories"
)

// CouponResolution is the outcome of a coupon lookup. Invalid codes are a normal outcome,
// not an error.
type CouponResolution struct {
	Code   string
	Valid  bool
	Reason string
	Coupon domain.Coupon
}

// CouponResolverDeps bundles collaborators for the resolver.
type CouponResolverDeps struct {
	Coupons repositories.CouponRepository
	Breaker *resilience.Breaker
	Clock   func() time.Time
	Logger  func(context.Context, string, map[string]any)
}

// CouponResolver validates codes against the coupon registry.
type CouponResolver struct {
	coupons repositories.CouponRepository
	breaker *resilience.Breaker
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCouponResolver validates dependencies and applies defaults.
func NewCouponResolver(deps CouponResolverDeps) (*CouponResolver, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon resolver: coupon repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CouponResolver{
		coupons: deps.Coupons,
		breaker: deps.Breaker,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// Resolve looks the code up. Unknown, inactive and expired coupons yield Valid=false with a
// nil error; only an unreachable registry returns ErrCouponRegistryUnavailable.
func (r *CouponResolver) Resolve(ctx context.Context, code string) (CouponResolution, error) {
	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return CouponResolution{}, fmt.Errorf("%w: coupon code is required", ErrCheckoutInvalidInput)
	}

	coupon, err := resilience.Do(ctx, r.breaker, func(ctx context.Context) (domain.Coupon, error) {
		return r.coupons.FindByCode(ctx, normalized)
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return r.invalid(ctx, normalized, "coupon not found"), nil
		}
		r.logger(ctx, "checkout_coupon_registry_error", map[string]any{
			"code":  normalized,
			"error": err.Error(),
		})
		return CouponResolution{}, fmt.Errorf("%w: %v", ErrCouponRegistryUnavailable, err)
	}

	switch {
	case !coupon.Active:
		return r.invalid(ctx, normalized, "coupon is not active"), nil
	case coupon.ExpiresAt != nil && !r.clock().Before(coupon.ExpiresAt.UTC()):
		return r.invalid(ctx, normalized, "coupon has expired"), nil
	case coupon.Kind != domain.CouponKindFlat && coupon.Kind != domain.CouponKindPercent:
		return r.invalid(ctx, normalized, "coupon kind is not supported"), nil
	case coupon.Value <= 0:
		return r.invalid(ctx, normalized, "coupon has no value"), nil
	}

	coupon.Code = normalized
	return CouponResolution{Code: normalized, Valid: true, Coupon: coupon}, nil
}

func (r *CouponResolver) invalid(ctx context.Context, code, reason string) CouponResolution {
	r.logger(ctx, "checkout_coupon_invalid", map[string]any{
		"code":   code,
		"reason": reason,
	})
	return CouponResolution{Code: code, Reason: reason}
}

// DiscountFor computes the coupon discount clamped to [0, subtotal].
func DiscountFor(coupon *domain.Coupon, subtotal int64) int64 {
	if coupon == nil || subtotal <= 0 || coupon.Value <= 0 {
		return 0
	}
	var raw int64
	switch coupon.Kind {
	case domain.CouponKindFlat:
		raw = coupon.Value
	case domain.CouponKindPercent:
		raw = percentOf(subtotal, coupon.Value)
	default:
		return 0
	}
	if raw > subtotal {
		return subtotal
	}
	return raw
}

// DiscountReason renders the display annotation for a coupon, e.g. "(Flat 10.00)" or "(10%)".
func DiscountReason(coupon domain.Coupon) string {
	switch coupon.Kind {
	case domain.CouponKindFlat:
		return fmt.Sprintf("(Flat %s)", formatMinor(coupon.Value))
	case domain.CouponKindPercent:
		return fmt.Sprintf("(%d%%)", coupon.Value)
	default:
		return ""
	}
}

// NormalizeCouponCode trims and upper-cases a code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
