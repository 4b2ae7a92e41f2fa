package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

// CouponRepository reads the coupons table.
type CouponRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a Postgres coupon registry.
func NewCouponRepository(pool *pgxpool.Pool) (*CouponRepository, error) {
	if pool == nil {
		return nil, errors.New("coupon repository requires postgres pool")
	}
	return &CouponRepository{pool: pool}, nil
}

// FindByCode looks the code up case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	var (
		c    domain.Coupon
		kind string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT code, kind, value, active, expires_at FROM coupons WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&c.Code, &kind, &c.Value, &c.Active, &c.ExpiresAt)
	if err != nil {
		return domain.Coupon{}, wrapError("coupons.find", err)
	}
	c.Kind = domain.CouponKind(kind)
	return c, nil
}

// CollectionPointRepository reads active rows of collection_points ordered by name.
type CollectionPointRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CollectionPointRepository = (*CollectionPointRepository)(nil)

// NewCollectionPointRepository constructs a Postgres pickup directory.
func NewCollectionPointRepository(pool *pgxpool.Pool) (*CollectionPointRepository, error) {
	if pool == nil {
		return nil, errors.New("collection point repository requires postgres pool")
	}
	return &CollectionPointRepository{pool: pool}, nil
}

const collectionPointColumns = `id, name, address, district, post_code, state`

func (r *CollectionPointRepository) List(ctx context.Context) ([]domain.CollectionPoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+collectionPointColumns+` FROM collection_points WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, wrapError("collection_points.list", err)
	}
	return collectPoints(rows)
}

func (r *CollectionPointRepository) ListByDistrict(ctx context.Context, district string) ([]domain.CollectionPoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+collectionPointColumns+` FROM collection_points
WHERE active AND lower(district) = lower($1) ORDER BY name, id`, strings.TrimSpace(district))
	if err != nil {
		return nil, wrapError("collection_points.list", err)
	}
	return collectPoints(rows)
}

func collectPoints(rows pgx.Rows) ([]domain.CollectionPoint, error) {
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CollectionPoint, error) {
		var p domain.CollectionPoint
		err := row.Scan(&p.ID, &p.Name, &p.Address, &p.District, &p.PostCode, &p.State)
		return p, err
	})
	if err != nil {
		return nil, wrapError("collection_points.scan", err)
	}
	if points == nil {
		points = []domain.CollectionPoint{}
	}
	return points, nil
}
