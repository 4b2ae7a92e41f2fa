//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("CHECKOUT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHECKOUT_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := Open(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	customer := fmt.Sprintf("cust-%d", time.Now().UnixNano())
	_, err = pool.Exec(ctx, `DELETE FROM orders WHERE customer_id = $1`, customer)
	require.NoError(t, err)

	repo, err := NewOrderRepository(pool)
	require.NoError(t, err)

	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	delivery := base.Add(72 * time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, domain.Order{
			ID:            fmt.Sprintf("%s-ord-%d", customer, i),
			OrderDate:     base.Add(time.Duration(i) * time.Minute),
			CustomerID:    customer,
			SubTotal:      4000,
			OrderTotal:    5200,
			ShippingMode:  domain.ShippingModeHome,
			Status:        domain.OrderStatusProcessing,
			PaymentMethod: domain.PaymentMethodCOD,
			PaymentStatus: domain.PaymentStatusUnpaid,
			OrderDetails: []domain.OrderDetail{
				{ProductID: "p-1", ProductUnitPrice: 2000, Quantity: 2, SubTotal: 4000, Status: domain.OrderDetailStatusPending, DeliveryDate: &delivery},
			},
		}))
	}

	err = repo.Insert(ctx, domain.Order{ID: customer + "-ord-0", CustomerID: customer, OrderDate: base})
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsConflict())

	got, err := repo.FindByID(ctx, customer+"-ord-1")
	require.NoError(t, err)
	require.Len(t, got.OrderDetails, 1)
	require.NotNil(t, got.OrderDetails[0].DeliveryDate)
	assert.True(t, got.OrderDetails[0].DeliveryDate.Equal(delivery))

	first, err := repo.ListByCustomer(ctx, customer, domain.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, customer+"-ord-2", first.Items[0].ID)
	require.NotEmpty(t, first.NextPageToken)

	second, err := repo.ListByCustomer(ctx, customer, domain.Pagination{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, customer+"-ord-0", second.Items[0].ID)
	assert.Empty(t, second.NextPageToken)

	_, err = repo.FindByID(ctx, "missing")
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}
