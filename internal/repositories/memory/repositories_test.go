package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func TestOrderRepositoryInsertAndList(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, domain.Order{
			ID:           fmt.Sprintf("ord_%d", i),
			CustomerID:   "cust-1",
			OrderDate:    base.Add(time.Duration(i/2) * time.Minute),
			OrderDetails: []domain.OrderDetail{{ProductID: "p-1", Quantity: 1}},
		}))
	}
	require.NoError(t, repo.Insert(ctx, domain.Order{ID: "ord_other", CustomerID: "cust-2", OrderDate: base}))

	err := repo.Insert(ctx, domain.Order{ID: "ord_0", CustomerID: "cust-1"})
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsConflict())

	var seen []string
	token := ""
	for {
		page, err := repo.ListByCustomer(ctx, "cust-1", domain.Pagination{PageSize: 2, PageToken: token})
		require.NoError(t, err)
		for _, o := range page.Items {
			assert.Nil(t, o.OrderDetails)
			seen = append(seen, o.ID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	assert.Equal(t, []string{"ord_4", "ord_3", "ord_2", "ord_1", "ord_0"}, seen)

	got, err := repo.FindByID(ctx, "ord_3")
	require.NoError(t, err)
	assert.Len(t, got.OrderDetails, 1)

	_, err = repo.FindByID(ctx, "ord_missing")
	assert.True(t, isNotFound(err))

	_, err = repo.ListByCustomer(ctx, "cust-1", domain.Pagination{PageToken: "%%%"})
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsConflict())
}

func TestSessionRepositoryGuardAndPurge(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	expired := domain.CheckoutSession{ID: "s-1", CustomerID: "cust-1", State: domain.CheckoutStateEditing, ExpiresAt: now.Add(-time.Minute)}
	held := domain.CheckoutSession{ID: "s-2", CustomerID: "cust-2", State: domain.CheckoutStateSubmitting, ExpiresAt: now.Add(-time.Minute)}
	live := domain.CheckoutSession{ID: "s-3", CustomerID: "cust-3", State: domain.CheckoutStateEditing, ExpiresAt: now.Add(time.Hour)}
	for _, s := range []domain.CheckoutSession{expired, held, live} {
		require.NoError(t, repo.Save(ctx, s))
	}

	ok, err := repo.AcquireSubmission(ctx, "s-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.AcquireSubmission(ctx, "s-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	purged, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = repo.Get(ctx, "s-1")
	assert.True(t, isNotFound(err))
	_, err = repo.ActiveForCustomer(ctx, "cust-1")
	assert.True(t, isNotFound(err))

	require.NoError(t, repo.ReleaseSubmission(ctx, "s-2"))
	now = now.Add(time.Second)
	purged, err = repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	id, err := repo.ActiveForCustomer(ctx, "cust-3")
	require.NoError(t, err)
	assert.Equal(t, "s-3", id)
}

func TestSessionRepositoryReturnsCopies(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	session := domain.CheckoutSession{
		ID:         "s-1",
		CustomerID: "cust-1",
		State:      domain.CheckoutStateEditing,
		Draft: domain.CheckoutDraft{
			Cart:   domain.CartSnapshot{Lines: []domain.CartLine{{ProductID: "p-1"}}},
			Coupon: &domain.Coupon{Code: "SAVE"},
		},
	}
	require.NoError(t, repo.Save(ctx, session))

	got, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	got.Draft.Cart.Lines[0].ProductID = "changed"
	got.Draft.Coupon.Code = "changed"

	again, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", again.Draft.Cart.Lines[0].ProductID)
	assert.Equal(t, "SAVE", again.Draft.Coupon.Code)

	session.State = domain.CheckoutStateAbandoned
	require.NoError(t, repo.Save(ctx, session))
	_, err = repo.ActiveForCustomer(ctx, "cust-1")
	assert.True(t, isNotFound(err))
}

func TestCollectionPointsByDistrict(t *testing.T) {
	repo := NewCollectionPointRepository(
		domain.CollectionPoint{ID: "b", Name: "Banani", District: "Dhaka"},
		domain.CollectionPoint{ID: "a", Name: "Agrabad", District: "Chattogram"},
	)
	points, err := repo.ListByDistrict(context.Background(), "dhaka")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "b", points[0].ID)

	none, err := repo.ListByDistrict(context.Background(), "Rajshahi")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
