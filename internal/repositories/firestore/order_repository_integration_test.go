//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	provider := emulatorProvider(t, "orders-test")
	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := provider.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	delivery := base.Add(72 * time.Hour)
	for i := 0; i < 3; i++ {
		order := domain.Order{
			ID:            fmt.Sprintf("ord_%d", i),
			OrderDate:     base.Add(time.Duration(i) * time.Minute),
			CustomerID:    "cust-1",
			SubTotal:      4000,
			OrderTotal:    5200,
			Status:        domain.OrderStatusProcessing,
			PaymentMethod: domain.PaymentMethodCOD,
			PaymentStatus: domain.PaymentStatusUnpaid,
			OrderDetails: []domain.OrderDetail{
				{ProductID: "p-1", ProductName: "Jute Bag", ProductUnitPrice: 2000, Quantity: 2, SubTotal: 4000, Status: domain.OrderDetailStatusPending, DeliveryDate: &delivery},
				{ProductID: "p-2", ProductName: "Nakshi Kantha", ProductUnitPrice: 9000, Quantity: 1, SubTotal: 9000, Status: domain.OrderDetailStatusPending},
			},
		}
		if err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert %s: %v", order.ID, err)
		}
	}

	err = repo.Insert(ctx, domain.Order{ID: "ord_0", CustomerID: "cust-1", OrderDate: base})
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	got, err := repo.FindByID(ctx, "ord_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.OrderDetails) != 2 || got.OrderDetails[0].ProductID != "p-1" {
		t.Fatalf("unexpected details %#v", got.OrderDetails)
	}
	if got.OrderDetails[0].DeliveryDate == nil || !got.OrderDetails[0].DeliveryDate.Equal(delivery) {
		t.Fatalf("expected delivery date, got %v", got.OrderDetails[0].DeliveryDate)
	}

	first, err := repo.ListByCustomer(ctx, "cust-1", domain.Pagination{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != "ord_2" || first.NextPageToken == "" {
		t.Fatalf("unexpected first page %#v", first)
	}
	second, err := repo.ListByCustomer(ctx, "cust-1", domain.Pagination{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != "ord_0" || second.NextPageToken != "" {
		t.Fatalf("unexpected second page %#v", second)
	}

	if _, err := repo.FindByID(ctx, "ord_missing"); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := repo.Insert(cancelled, domain.Order{ID: "ord_9", CustomerID: "cust-1", OrderDate: base}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
