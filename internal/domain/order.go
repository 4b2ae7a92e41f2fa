package domain

import "time"

const (
	// OrderStatusProcessing is the status every placed order starts with.
	OrderStatusProcessing = "processing"
	// OrderDetailStatusPending is the initial per-line status.
	OrderDetailStatusPending = "pending"
)

// Order is the immutable snapshot persisted at successful submission.
type Order struct {
	ID               string
	OrderDate        time.Time
	CustomerID       string
	CustomerName     string
	CustomerEmail    string
	SubTotal         int64
	Discount         int64
	DiscountReason   string
	CouponCode       string
	ShippingCharge   int64
	Tax              int64
	GatewayFee       int64
	OrderTotal       int64
	ShippingMode     ShippingMode
	ShippingStreet   string
	ShippingCity     string
	ShippingPostCode string
	ShippingState    string
	ShippingCountry  string
	Status           string
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	CardHolderName   string
	CardNumber       string
	CardExpiryDate   string
	OrderDetails     []OrderDetail
}

// OrderDetail is one persisted line item derived from a cart line.
type OrderDetail struct {
	ProductID           string
	SellerID            string
	StoreName           string
	ProductName         string
	ProductUnitPrice    int64
	ProductThumbnailURL string
	Quantity            int
	SubTotal            int64
	Status              string
	DeliveryDate        *time.Time
}
