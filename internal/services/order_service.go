package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderServiceDeps bundles collaborators for the order read service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs the read side of placed orders.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{orders: deps.Orders, logger: logger}, nil
}

// GetOrder returns the order when it belongs to customer. Orders of other customers are
// reported as not found.
func (s *orderService) GetOrder(ctx context.Context, customer Customer, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	customerID := strings.TrimSpace(customer.ID)
	if orderID == "" || customerID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(ctx, err)
	}
	if order.CustomerID != customerID {
		s.logger(ctx, "order_access_denied", map[string]any{
			"orderId":    orderID,
			"customerId": customerID,
		})
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders pages through the customer's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, customer Customer, pager Pagination) (domain.CursorPage[Order], error) {
	customerID := strings.TrimSpace(customer.ID)
	if customerID == "" {
		return domain.CursorPage[Order]{}, ErrOrderInvalidInput
	}
	if pager.PageSize < 0 {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: page size must be positive", ErrOrderInvalidInput)
	}
	switch {
	case pager.PageSize == 0:
		pager.PageSize = defaultOrderPageSize
	case pager.PageSize > maxOrderPageSize:
		pager.PageSize = maxOrderPageSize
	}
	pager.PageToken = strings.TrimSpace(pager.PageToken)

	page, err := s.orders.ListByCustomer(ctx, customerID, pager)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translate(ctx, err)
	}
	return page, nil
}

func (s *orderService) translate(ctx context.Context, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
	}
	s.logger(ctx, "order_repository_error", map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}

// CollectionPointServiceDeps bundles collaborators for the collection point directory.
type CollectionPointServiceDeps struct {
	Points repositories.CollectionPointRepository
}

type collectionPointService struct {
	points repositories.CollectionPointRepository
}

// NewCollectionPointService exposes the pickup directory.
func NewCollectionPointService(deps CollectionPointServiceDeps) (CollectionPointService, error) {
	if deps.Points == nil {
		return nil, errors.New("collection point service: repository is required")
	}
	return &collectionPointService{points: deps.Points}, nil
}

// List returns every point, or only those in district when it is set. The order matches
// the index ChooseCollectionPoint expects for the same district.
func (s *collectionPointService) List(ctx context.Context, district string) ([]CollectionPoint, error) {
	var (
		points []CollectionPoint
		err    error
	)
	if district = strings.TrimSpace(district); district != "" {
		points, err = s.points.ListByDistrict(ctx, district)
	} else {
		points, err = s.points.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: collection points: %v", ErrCheckoutUnavailable, err)
	}
	if points == nil {
		points = []CollectionPoint{}
	}
	return points, nil
}
