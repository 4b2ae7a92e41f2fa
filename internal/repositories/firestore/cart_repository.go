package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/biccshop/checkout/internal/domain"
	pfirestore "github.com/biccshop/checkout/internal/platform/firestore"
	"github.com/biccshop/checkout/internal/repositories"
)

const (
	cartCollection      = "carts"
	cartItemsCollection = "items"
)

// CartRepository reads the cart documents written by the cart service. Items live in
// carts/{customerId}/items; the header keeps an item count.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

// Items returns the cart lines ordered by the time they were added. A missing cart is empty.
func (r *CartRepository) Items(ctx context.Context, customerID string) ([]domain.CartLine, error) {
	items, err := r.itemsRef(ctx, customerID)
	if err != nil {
		return nil, err
	}

	iter := items.OrderBy("addedAt", firestore.Asc).Documents(ctx)
	snaps, err := iter.GetAll()
	if err != nil {
		return nil, pfirestore.WrapError("carts.items", err)
	}

	lines := make([]domain.CartLine, 0, len(snaps))
	for _, snap := range snaps {
		var doc cartItemDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("carts.items.decode", err)
		}
		lines = append(lines, domain.CartLine{
			ProductID:           firstNonEmpty(doc.ProductID, snap.Ref.ID),
			SellerID:            strings.TrimSpace(doc.SellerID),
			StoreName:           strings.TrimSpace(doc.StoreName),
			ProductName:         strings.TrimSpace(doc.ProductName),
			ProductThumbnailURL: strings.TrimSpace(doc.ThumbnailURL),
			UnitPrice:           doc.UnitPrice,
			Quantity:            doc.Quantity,
		})
	}
	return lines, nil
}

// Clear deletes every item and resets the header in one transaction.
func (r *CartRepository) Clear(ctx context.Context, customerID string) error {
	items, err := r.itemsRef(ctx, customerID)
	if err != nil {
		return err
	}
	header := items.Parent

	return r.provider.RunTransaction(ctx, "carts.clear", func(ctx context.Context, tx *firestore.Transaction) error {
		refs, err := tx.DocumentRefs(items).GetAll()
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return tx.Set(header, map[string]any{
			"itemsCount": 0,
			"updatedAt":  time.Now().UTC(),
		}, firestore.MergeAll)
	})
}

func (r *CartRepository) itemsRef(ctx context.Context, customerID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(customerID)
	if uid == "" {
		return nil, errors.New("cart repository: customer id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(cartCollection).Doc(uid).Collection(cartItemsCollection), nil
}

type cartItemDocument struct {
	ProductID    string    `firestore:"productId"`
	SellerID     string    `firestore:"sellerId"`
	StoreName    string    `firestore:"storeName"`
	ProductName  string    `firestore:"productName"`
	ThumbnailURL string    `firestore:"thumbnailUrl,omitempty"`
	UnitPrice    int64     `firestore:"unitPrice"`
	Quantity     int       `firestore:"quantity"`
	AddedAt      time.Time `firestore:"addedAt"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ repositories.CartRepository = (*CartRepository)(nil)
