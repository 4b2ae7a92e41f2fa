package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/platform/pagination"
	"github.com/biccshop/checkout/internal/repositories"
)

// OrderRepository stores placed orders in memory.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository returns an empty order store.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]domain.Order)}
}

func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return repositories.NewStoreError("orders.insert", repositories.ErrorKindConflict, errors.New("order id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[id]; exists {
		return repositories.NewStoreError("orders.insert", repositories.ErrorKindConflict, errors.New("order already exists"))
	}
	order.OrderDetails = append([]domain.OrderDetail(nil), order.OrderDetails...)
	r.orders[id] = order
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, repositories.NotFound("orders.find", "order %q", orderID)
	}
	order.OrderDetails = append([]domain.OrderDetail(nil), order.OrderDetails...)
	return order, nil
}

// ListByCustomer pages newest first using the same token format as the Firestore store.
func (r *OrderRepository) ListByCustomer(_ context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	key, hasKey, err := pagination.DecodeTimeKey(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewStoreError("orders.list", repositories.ErrorKindConflict, err)
	}
	limit := pager.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	r.mu.RLock()
	matches := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.CustomerID != customerID {
			continue
		}
		if hasKey && !key.Before(order.OrderDate, order.ID) {
			continue
		}
		order.OrderDetails = nil
		matches = append(matches, order)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].OrderDate.Equal(matches[j].OrderDate) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].OrderDate.After(matches[j].OrderDate)
	})

	page := domain.CursorPage[domain.Order]{Items: matches}
	if len(matches) > limit {
		page.Items = matches[:limit]
		last := page.Items[limit-1]
		token, err := pagination.EncodeTimeKey(pagination.TimeKey{At: last.OrderDate, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
