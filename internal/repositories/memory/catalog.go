package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

// CartRepository keeps carts in a map keyed by customer.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartLine
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository returns an empty cart store.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string][]domain.CartLine)}
}

// Put replaces the customer's cart.
func (r *CartRepository) Put(customerID string, lines []domain.CartLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[customerID] = append([]domain.CartLine(nil), lines...)
}

func (r *CartRepository) Items(_ context.Context, customerID string) ([]domain.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.CartLine(nil), r.carts[customerID]...), nil
}

func (r *CartRepository) Clear(_ context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, customerID)
	return nil
}

// CouponRepository is a fixed coupon registry keyed by upper-case code.
type CouponRepository struct {
	mu      sync.RWMutex
	coupons map[string]domain.Coupon
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository indexes the given coupons.
func NewCouponRepository(coupons ...domain.Coupon) *CouponRepository {
	repo := &CouponRepository{coupons: make(map[string]domain.Coupon, len(coupons))}
	for _, c := range coupons {
		repo.Put(c)
	}
	return repo
}

// Put adds or replaces a coupon.
func (r *CouponRepository) Put(coupon domain.Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	r.coupons[coupon.Code] = coupon
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	coupon, ok := r.coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.Coupon{}, repositories.NotFound("coupons.find", "coupon %q", code)
	}
	return coupon, nil
}

// CollectionPointRepository holds pickup locations sorted by name.
type CollectionPointRepository struct {
	points []domain.CollectionPoint
}

var _ repositories.CollectionPointRepository = (*CollectionPointRepository)(nil)

// NewCollectionPointRepository copies and sorts the given points.
func NewCollectionPointRepository(points ...domain.CollectionPoint) *CollectionPointRepository {
	sorted := append([]domain.CollectionPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &CollectionPointRepository{points: sorted}
}

func (r *CollectionPointRepository) List(context.Context) ([]domain.CollectionPoint, error) {
	return append([]domain.CollectionPoint{}, r.points...), nil
}

func (r *CollectionPointRepository) ListByDistrict(_ context.Context, district string) ([]domain.CollectionPoint, error) {
	district = strings.TrimSpace(district)
	out := make([]domain.CollectionPoint, 0)
	for _, p := range r.points {
		if strings.EqualFold(p.District, district) {
			out = append(out, p)
		}
	}
	return out, nil
}
