package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/platform/resilience"
	"github.com/biccshop/checkout/internal/repositories"
)

type stubCouponRepository struct {
	coupons map[string]domain.Coupon
	err     error
	calls   int
	before  func()
}

func (s *stubCouponRepository) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	if s.before != nil {
		s.before()
	}
	s.calls++
	if s.err != nil {
		return domain.Coupon{}, s.err
	}
	coupon, ok := s.coupons[code]
	if !ok {
		return domain.Coupon{}, repositories.NotFound("coupons.find", "coupon %q", code)
	}
	return coupon, nil
}

func TestCouponResolverResolve(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	repo := &stubCouponRepository{coupons: map[string]domain.Coupon{
		"SAVE10":  {Code: "SAVE10", Kind: domain.CouponKindFlat, Value: 1000, Active: true, ExpiresAt: &future},
		"OLD":     {Code: "OLD", Kind: domain.CouponKindPercent, Value: 10, Active: true, ExpiresAt: &past},
		"PAUSED":  {Code: "PAUSED", Kind: domain.CouponKindPercent, Value: 10, Active: false},
		"WEIRD":   {Code: "WEIRD", Kind: "bogo", Value: 1, Active: true},
		"NOTHING": {Code: "NOTHING", Kind: domain.CouponKindFlat, Value: 0, Active: true},
	}}
	var events []string
	resolver, err := NewCouponResolver(CouponResolverDeps{
		Coupons: repo,
		Clock:   func() time.Time { return now },
		Logger: func(_ context.Context, event string, _ map[string]any) {
			events = append(events, event)
		},
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	res, err := resolver.Resolve(context.Background(), "  save10 ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Valid || res.Code != "SAVE10" || res.Coupon.Value != 1000 {
		t.Fatalf("unexpected resolution %#v", res)
	}

	cases := map[string]string{
		"missing": "coupon not found",
		"old":     "coupon has expired",
		"paused":  "coupon is not active",
		"weird":   "coupon kind is not supported",
		"nothing": "coupon has no value",
	}
	for code, reason := range cases {
		res, err := resolver.Resolve(context.Background(), code)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", code, err)
		}
		if res.Valid || res.Reason != reason {
			t.Fatalf("%s: expected invalid with %q, got %#v", code, reason, res)
		}
	}
	if len(events) != len(cases) {
		t.Fatalf("expected %d invalid events, got %v", len(cases), events)
	}

	if _, err := resolver.Resolve(context.Background(), "   "); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input for blank code, got %v", err)
	}
}

func TestCouponResolverRegistryUnavailable(t *testing.T) {
	repo := &stubCouponRepository{err: repositories.NewStoreError("coupons.find", repositories.ErrorKindUnavailable, errors.New("timeout"))}
	breaker := resilience.NewBreaker("coupons", resilience.Config{ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	resolver, err := NewCouponResolver(CouponResolverDeps{Coupons: repo, Breaker: breaker})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := resolver.Resolve(context.Background(), "SAVE10"); !errors.Is(err, ErrCouponRegistryUnavailable) {
			t.Fatalf("attempt %d: expected registry unavailable, got %v", i, err)
		}
	}
	if _, err := resolver.Resolve(context.Background(), "SAVE10"); !errors.Is(err, ErrCouponRegistryUnavailable) {
		t.Fatalf("expected registry unavailable while open, got %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected breaker to short-circuit the third call, got %d calls", repo.calls)
	}
}

func TestDiscountReason(t *testing.T) {
	if got := DiscountReason(domain.Coupon{Kind: domain.CouponKindFlat, Value: 1050}); got != "(Flat 10.50)" {
		t.Fatalf("unexpected flat reason %q", got)
	}
	if got := DiscountReason(domain.Coupon{Kind: domain.CouponKindPercent, Value: 15}); got != "(15%)" {
		t.Fatalf("unexpected percent reason %q", got)
	}
}
