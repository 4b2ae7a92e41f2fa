package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/biccshop/checkout/internal/platform/httpx"
	"github.com/biccshop/checkout/internal/platform/pagination"
	"github.com/biccshop/checkout/internal/services"
)

// OrderHandlers serves the order history and invoice views of the signed-in customer.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers. Authentication is applied by the router.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	customer, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{MaxPageSize: 50})
	if err != nil {
		message := "pageToken is invalid"
		if errors.Is(err, pagination.ErrInvalidPageSize) {
			message = "pageSize must be a positive integer"
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, customer, services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := orderListResponse{
		Items:         make([]orderPayload, 0, len(page.Items)),
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
	for _, order := range page.Items {
		resp.Items = append(resp.Items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	customer, ok := customerFromRequest(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, customer, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
