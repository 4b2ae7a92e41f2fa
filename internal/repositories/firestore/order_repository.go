package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/biccshop/checkout/internal/domain"
	pfirestore "github.com/biccshop/checkout/internal/platform/firestore"
	"github.com/biccshop/checkout/internal/platform/pagination"
	"github.com/biccshop/checkout/internal/repositories"
)

const (
	orderCollection        = "orders"
	orderDetailsCollection = "details"
)

// OrderRepository stores orders in orders/{orderId} with one document per line in the
// details subcollection.
type OrderRepository struct {
	orders   *pfirestore.Collection[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		orders:   pfirestore.NewCollection[orderDocument](provider, orderCollection),
		provider: provider,
	}, nil
}

// Insert creates the order and its details atomically. An existing id is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	orderRef, err := r.orders.Ref(ctx, orderID)
	if err != nil {
		return err
	}

	doc := encodeOrder(order)
	return r.provider.RunTransaction(ctx, "orders.insert", func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		for i, detail := range order.OrderDetails {
			ref := orderRef.Collection(orderDetailsCollection).Doc(detailDocID(i))
			if err := tx.Create(ref, encodeOrderDetail(i, detail)); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID loads the order with its details.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := decodeOrder(doc.ID, doc.Data)

	orderRef, err := r.orders.Ref(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	snaps, err := orderRef.Collection(orderDetailsCollection).OrderBy("line", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.details", err)
	}
	order.OrderDetails = make([]domain.OrderDetail, 0, len(snaps))
	for _, snap := range snaps {
		var detail orderDetailDocument
		if err := snap.DataTo(&detail); err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.details.decode", err)
		}
		order.OrderDetails = append(order.OrderDetails, decodeOrderDetail(detail))
	}
	return order, nil
}

// ListByCustomer pages through order headers newest first. Details are not loaded.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	key, hasKey, err := pagination.DecodeTimeKey(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewStoreError("orders.list", repositories.ErrorKindConflict, err)
	}
	limit := pager.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("customerId", "==", strings.TrimSpace(customerID)).
			OrderBy("orderDate", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if hasKey {
			q = q.StartAfter(key.At, key.ID)
		}
		return q.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, min(len(docs), limit))}
	for i, doc := range docs {
		if i == limit {
			last := page.Items[len(page.Items)-1]
			token, err := pagination.EncodeTimeKey(pagination.TimeKey{At: last.OrderDate, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	return page, nil
}

func detailDocID(index int) string {
	return fmt.Sprintf("%03d", index+1)
}

type orderDocument struct {
	OrderDate        time.Time `firestore:"orderDate"`
	CustomerID       string    `firestore:"customerId"`
	CustomerName     string    `firestore:"customerName,omitempty"`
	CustomerEmail    string    `firestore:"customerEmail,omitempty"`
	SubTotal         int64     `firestore:"subTotal"`
	Discount         int64     `firestore:"discount"`
	DiscountReason   string    `firestore:"discountReason,omitempty"`
	CouponCode       string    `firestore:"couponCode,omitempty"`
	ShippingCharge   int64     `firestore:"shippingCharge"`
	Tax              int64     `firestore:"tax"`
	GatewayFee       int64     `firestore:"gatewayFee"`
	OrderTotal       int64     `firestore:"orderTotal"`
	ShippingMode     string    `firestore:"shippingMode"`
	ShippingStreet   string    `firestore:"shippingStreet"`
	ShippingCity     string    `firestore:"shippingCity"`
	ShippingPostCode string    `firestore:"shippingPostCode"`
	ShippingState    string    `firestore:"shippingState"`
	ShippingCountry  string    `firestore:"shippingCountry"`
	Status           string    `firestore:"status"`
	PaymentMethod    string    `firestore:"paymentMethod"`
	PaymentStatus    string    `firestore:"paymentStatus"`
	CardHolderName   string    `firestore:"cardHolderName,omitempty"`
	CardNumber       string    `firestore:"cardNumber,omitempty"`
	CardExpiryDate   string    `firestore:"cardExpiryDate,omitempty"`
	LineCount        int       `firestore:"lineCount"`
}

type orderDetailDocument struct {
	Line                int        `firestore:"line"`
	ProductID           string     `firestore:"productId"`
	SellerID            string     `firestore:"sellerId"`
	StoreName           string     `firestore:"storeName"`
	ProductName         string     `firestore:"productName"`
	ProductUnitPrice    int64      `firestore:"productUnitPrice"`
	ProductThumbnailURL string     `firestore:"productThumbnailUrl,omitempty"`
	Quantity            int        `firestore:"quantity"`
	SubTotal            int64      `firestore:"subTotal"`
	Status              string     `firestore:"status"`
	DeliveryDate        *time.Time `firestore:"deliveryDate,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	return orderDocument{
		OrderDate:        order.OrderDate.UTC(),
		CustomerID:       order.CustomerID,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		SubTotal:         order.SubTotal,
		Discount:         order.Discount,
		DiscountReason:   order.DiscountReason,
		CouponCode:       order.CouponCode,
		ShippingCharge:   order.ShippingCharge,
		Tax:              order.Tax,
		GatewayFee:       order.GatewayFee,
		OrderTotal:       order.OrderTotal,
		ShippingMode:     string(order.ShippingMode),
		ShippingStreet:   order.ShippingStreet,
		ShippingCity:     order.ShippingCity,
		ShippingPostCode: order.ShippingPostCode,
		ShippingState:    order.ShippingState,
		ShippingCountry:  order.ShippingCountry,
		Status:           order.Status,
		PaymentMethod:    string(order.PaymentMethod),
		PaymentStatus:    string(order.PaymentStatus),
		CardHolderName:   order.CardHolderName,
		CardNumber:       order.CardNumber,
		CardExpiryDate:   order.CardExpiryDate,
		LineCount:        len(order.OrderDetails),
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:               id,
		OrderDate:        doc.OrderDate.UTC(),
		CustomerID:       doc.CustomerID,
		CustomerName:     doc.CustomerName,
		CustomerEmail:    doc.CustomerEmail,
		SubTotal:         doc.SubTotal,
		Discount:         doc.Discount,
		DiscountReason:   doc.DiscountReason,
		CouponCode:       doc.CouponCode,
		ShippingCharge:   doc.ShippingCharge,
		Tax:              doc.Tax,
		GatewayFee:       doc.GatewayFee,
		OrderTotal:       doc.OrderTotal,
		ShippingMode:     domain.ShippingMode(doc.ShippingMode),
		ShippingStreet:   doc.ShippingStreet,
		ShippingCity:     doc.ShippingCity,
		ShippingPostCode: doc.ShippingPostCode,
		ShippingState:    doc.ShippingState,
		ShippingCountry:  doc.ShippingCountry,
		Status:           doc.Status,
		PaymentMethod:    domain.PaymentMethod(doc.PaymentMethod),
		PaymentStatus:    domain.PaymentStatus(doc.PaymentStatus),
		CardHolderName:   doc.CardHolderName,
		CardNumber:       doc.CardNumber,
		CardExpiryDate:   doc.CardExpiryDate,
	}
}

func encodeOrderDetail(index int, detail domain.OrderDetail) orderDetailDocument {
	doc := orderDetailDocument{
		Line:                index + 1,
		ProductID:           detail.ProductID,
		SellerID:            detail.SellerID,
		StoreName:           detail.StoreName,
		ProductName:         detail.ProductName,
		ProductUnitPrice:    detail.ProductUnitPrice,
		ProductThumbnailURL: detail.ProductThumbnailURL,
		Quantity:            detail.Quantity,
		SubTotal:            detail.SubTotal,
		Status:              detail.Status,
	}
	if detail.DeliveryDate != nil {
		t := detail.DeliveryDate.UTC()
		doc.DeliveryDate = &t
	}
	return doc
}

func decodeOrderDetail(doc orderDetailDocument) domain.OrderDetail {
	detail := domain.OrderDetail{
		ProductID:           doc.ProductID,
		SellerID:            doc.SellerID,
		StoreName:           doc.StoreName,
		ProductName:         doc.ProductName,
		ProductUnitPrice:    doc.ProductUnitPrice,
		ProductThumbnailURL: doc.ProductThumbnailURL,
		Quantity:            doc.Quantity,
		SubTotal:            doc.SubTotal,
		Status:              doc.Status,
	}
	if doc.DeliveryDate != nil {
		t := doc.DeliveryDate.UTC()
		detail.DeliveryDate = &t
	}
	return detail
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
