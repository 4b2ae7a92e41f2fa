package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
	pfirestore "github.com/biccshop/checkout/internal/platform/firestore"
	"github.com/biccshop/checkout/internal/repositories"
)

const couponCollection = "coupons"

// CouponRepository reads coupon definitions keyed by their upper-case code.
type CouponRepository struct {
	coupons *pfirestore.Collection[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon registry.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		coupons: pfirestore.NewCollection[couponDocument](provider, couponCollection),
	}, nil
}

// FindByCode loads the coupon stored under code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.coupons == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	doc, err := r.coupons.Get(ctx, code)
	if err != nil {
		return domain.Coupon{}, err
	}
	coupon := domain.Coupon{
		Code:   doc.ID,
		Kind:   domain.CouponKind(strings.ToLower(strings.TrimSpace(doc.Data.Kind))),
		Value:  doc.Data.Value,
		Active: doc.Data.Active,
	}
	if doc.Data.ExpiresAt != nil {
		expires := doc.Data.ExpiresAt.UTC()
		coupon.ExpiresAt = &expires
	}
	return coupon, nil
}

type couponDocument struct {
	Kind      string     `firestore:"kind"`
	Value     int64      `firestore:"value"`
	Active    bool       `firestore:"active"`
	ExpiresAt *time.Time `firestore:"expiresAt,omitempty"`
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
