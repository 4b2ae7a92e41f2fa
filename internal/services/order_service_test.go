package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

type orderRepositoryStub struct {
	orders    map[string]domain.Order
	err       error
	lastPager domain.Pagination
}

func (s *orderRepositoryStub) Insert(context.Context, domain.Order) error { return nil }

func (s *orderRepositoryStub) FindByID(_ context.Context, id string) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, repositories.NotFound("orders.find", "order %q", id)
	}
	return order, nil
}

func (s *orderRepositoryStub) ListByCustomer(_ context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	s.lastPager = pager
	if s.err != nil {
		return domain.CursorPage[domain.Order]{}, s.err
	}
	var items []domain.Order
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			items = append(items, order)
		}
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func TestOrderServiceGetOrder(t *testing.T) {
	repo := &orderRepositoryStub{orders: map[string]domain.Order{
		"ord_1": {ID: "ord_1", CustomerID: "cust-1"},
		"ord_2": {ID: "ord_2", CustomerID: "cust-2"},
	}}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	ctx := context.Background()

	order, err := svc.GetOrder(ctx, Customer{ID: "cust-1"}, "ord_1")
	if err != nil || order.ID != "ord_1" {
		t.Fatalf("expected own order, got %#v %v", order, err)
	}
	if _, err := svc.GetOrder(ctx, Customer{ID: "cust-1"}, "ord_2"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected foreign order hidden, got %v", err)
	}
	if _, err := svc.GetOrder(ctx, Customer{ID: "cust-1"}, "ord_9"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetOrder(ctx, Customer{ID: "cust-1"}, " "); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	repo.err = repositories.NewStoreError("orders.find", repositories.ErrorKindUnavailable, errors.New("down"))
	if _, err := svc.GetOrder(ctx, Customer{ID: "cust-1"}, "ord_1"); !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestOrderServiceListOrdersClampsPageSize(t *testing.T) {
	repo := &orderRepositoryStub{orders: map[string]domain.Order{
		"ord_1": {ID: "ord_1", CustomerID: "cust-1"},
	}}
	svc, err := NewOrderService(OrderServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	page, err := svc.ListOrders(context.Background(), Customer{ID: "cust-1"}, Pagination{PageSize: 500, PageToken: " tok "})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one order, got %d", len(page.Items))
	}
	if repo.lastPager.PageSize != maxOrderPageSize || repo.lastPager.PageToken != "tok" {
		t.Fatalf("unexpected pager %#v", repo.lastPager)
	}

	if _, err := svc.ListOrders(context.Background(), Customer{ID: "cust-1"}, Pagination{}); err != nil {
		t.Fatalf("list default: %v", err)
	}
	if repo.lastPager.PageSize != defaultOrderPageSize {
		t.Fatalf("expected default page size, got %d", repo.lastPager.PageSize)
	}
	if _, err := svc.ListOrders(context.Background(), Customer{}, Pagination{}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCollectionPointServiceList(t *testing.T) {
	points := &checkoutPointsStub{points: []domain.CollectionPoint{
		{ID: "a", District: "Dhaka"},
		{ID: "b", District: "Khulna"},
	}}
	svc, err := NewCollectionPointService(CollectionPointServiceDeps{Points: points})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	all, err := svc.List(context.Background(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected all points, got %v %v", all, err)
	}
	khulna, err := svc.List(context.Background(), " Khulna ")
	if err != nil || len(khulna) != 1 || khulna[0].ID != "b" {
		t.Fatalf("expected khulna point, got %v %v", khulna, err)
	}
	none, err := svc.List(context.Background(), "Rajshahi")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v %v", none, err)
	}
}
