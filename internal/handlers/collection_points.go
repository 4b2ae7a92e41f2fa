package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/biccshop/checkout/internal/platform/httpx"
	"github.com/biccshop/checkout/internal/services"
)

// CollectionPointHandlers lists the pickup directory. Listed with district set to the draft's
// city, an item's index is the value the checkout collection point endpoint expects.
type CollectionPointHandlers struct {
	points services.CollectionPointService
}

// NewCollectionPointHandlers constructs the directory handlers.
func NewCollectionPointHandlers(points services.CollectionPointService) *CollectionPointHandlers {
	return &CollectionPointHandlers{points: points}
}

// Routes registers GET /collection-points.
func (h *CollectionPointHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
}

type collectionPointPayload struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	District string `json:"district"`
	PostCode string `json:"postCode"`
	State    string `json:"state"`
}

func (h *CollectionPointHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.points == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "collection point directory unavailable", http.StatusServiceUnavailable))
		return
	}
	points, err := h.points.List(ctx, strings.TrimSpace(r.URL.Query().Get("district")))
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	items := make([]collectionPointPayload, 0, len(points))
	for i, p := range points {
		items = append(items, collectionPointPayload{
			Index:    i,
			ID:       p.ID,
			Name:     p.Name,
			Address:  p.Address,
			District: p.District,
			PostCode: p.PostCode,
			State:    p.State,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}
