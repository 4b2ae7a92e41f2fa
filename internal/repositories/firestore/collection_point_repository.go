package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/biccshop/checkout/internal/domain"
	pfirestore "github.com/biccshop/checkout/internal/platform/firestore"
	"github.com/biccshop/checkout/internal/repositories"
)

const collectionPointCollection = "collection_points"

// CollectionPointRepository lists pickup locations sorted by name.
type CollectionPointRepository struct {
	points *pfirestore.Collection[collectionPointDocument]
}

// NewCollectionPointRepository constructs a Firestore-backed collection point directory.
func NewCollectionPointRepository(provider *pfirestore.Provider) (*CollectionPointRepository, error) {
	if provider == nil {
		return nil, errors.New("collection point repository requires firestore provider")
	}
	return &CollectionPointRepository{
		points: pfirestore.NewCollection[collectionPointDocument](provider, collectionPointCollection),
	}, nil
}

// List returns every active point.
func (r *CollectionPointRepository) List(ctx context.Context) ([]domain.CollectionPoint, error) {
	return r.query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true).OrderBy("name", firestore.Asc)
	})
}

// ListByDistrict returns the active points in district.
func (r *CollectionPointRepository) ListByDistrict(ctx context.Context, district string) ([]domain.CollectionPoint, error) {
	district = strings.TrimSpace(district)
	if district == "" {
		return r.List(ctx)
	}
	return r.query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true).Where("district", "==", district).OrderBy("name", firestore.Asc)
	})
}

func (r *CollectionPointRepository) query(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.CollectionPoint, error) {
	if r == nil || r.points == nil {
		return nil, errors.New("collection point repository not initialised")
	}
	docs, err := r.points.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	points := make([]domain.CollectionPoint, 0, len(docs))
	for _, doc := range docs {
		points = append(points, domain.CollectionPoint{
			ID:       doc.ID,
			Name:     strings.TrimSpace(doc.Data.Name),
			Address:  strings.TrimSpace(doc.Data.Address),
			District: strings.TrimSpace(doc.Data.District),
			PostCode: strings.TrimSpace(doc.Data.PostCode),
			State:    strings.TrimSpace(doc.Data.State),
		})
	}
	return points, nil
}

type collectionPointDocument struct {
	Name     string `firestore:"name"`
	Address  string `firestore:"address"`
	District string `firestore:"district"`
	PostCode string `firestore:"postCode"`
	State    string `firestore:"state"`
	Active   bool   `firestore:"active"`
}

var _ repositories.CollectionPointRepository = (*CollectionPointRepository)(nil)
