package domain

import (
	"errors"
	"time"
)

// ErrInvalidCartLine is returned when a cart line carries a non-positive price or quantity.
var ErrInvalidCartLine = errors.New("domain: invalid cart line")

// CartLine is one product entry with its price frozen at add-to-cart time.
type CartLine struct {
	ProductID           string
	SellerID            string
	StoreName           string
	ProductName         string
	ProductThumbnailURL string
	UnitPrice           int64
	Quantity            int
	LineSubtotal        int64
}

// CartSnapshot is the read-only view of the customer's cart handed to checkout.
type CartSnapshot struct {
	Lines    []CartLine
	Subtotal int64
}

// NewCartSnapshot validates the lines, derives each line subtotal and sums the cart.
func NewCartSnapshot(lines []CartLine) (CartSnapshot, error) {
	out := make([]CartLine, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		if line.UnitPrice <= 0 || line.Quantity < 1 {
			return CartSnapshot{}, ErrInvalidCartLine
		}
		line.LineSubtotal = line.UnitPrice * int64(line.Quantity)
		subtotal += line.LineSubtotal
		out = append(out, line)
	}
	return CartSnapshot{Lines: out, Subtotal: subtotal}, nil
}

// Empty reports whether the snapshot has no lines.
func (c CartSnapshot) Empty() bool {
	return len(c.Lines) == 0
}

// CouponKind enumerates supported discount strategies.
type CouponKind string

const (
	// CouponKindFlat subtracts a fixed amount in minor units.
	CouponKindFlat CouponKind = "flat"
	// CouponKindPercent subtracts whole percentage points of the subtotal.
	CouponKindPercent CouponKind = "percent"
)

// Coupon is a discount rule returned by the coupon registry.
type Coupon struct {
	Code      string
	Kind      CouponKind
	Value     int64
	Active    bool
	ExpiresAt *time.Time
}

// ShippingMode selects between home delivery and pickup.
type ShippingMode string

const (
	ShippingModeHome            ShippingMode = "home"
	ShippingModeCollectionPoint ShippingMode = "collection_point"
)

// ShippingSelection holds the chosen mode, its charge and the destination address.
type ShippingSelection struct {
	Mode              ShippingMode
	Charge            int64
	CollectionPointID string
	Street            string
	City              string
	PostCode          string
	State             string
	Country           string
}

// PaymentMethod is the customer's chosen way to pay.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// PaymentStatus records whether the order is paid at placement.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// CardDetails is the in-progress card entry shown only for card payments.
type CardDetails struct {
	HolderName string
	Number     string
	CVV        string
	Expiry     string
}

// PaymentSelection captures the chosen method and its derived fee.
type PaymentSelection struct {
	Method          PaymentMethod
	GatewayFee      int64
	Status          PaymentStatus
	Reason          string
	CardFormVisible bool
	Card            CardDetails
}

// CheckoutDraft is the mutable pricing state of one checkout session.
type CheckoutDraft struct {
	Cart           CartSnapshot
	Coupon         *Coupon
	Discount       int64
	DiscountReason string
	Shipping       ShippingSelection
	Payment        PaymentSelection
	Tax            int64
	OrderTotal     int64
	DeliveryDate   *time.Time
}

// CheckoutState enumerates the checkout session lifecycle.
type CheckoutState string

const (
	CheckoutStateInitializing CheckoutState = "initializing"
	CheckoutStateEditing      CheckoutState = "editing"
	CheckoutStateValidating   CheckoutState = "validating"
	CheckoutStateSubmitting   CheckoutState = "submitting"
	CheckoutStatePlaced       CheckoutState = "placed"
	CheckoutStateFailed       CheckoutState = "failed"
	CheckoutStateAbandoned    CheckoutState = "abandoned"
)

// Terminal reports whether no further transitions are allowed.
func (s CheckoutState) Terminal() bool {
	return s == CheckoutStatePlaced || s == CheckoutStateAbandoned
}

// FieldViolation names a draft field that blocks submission.
type FieldViolation struct {
	Field   string
	Message string
}

// CheckoutSession is the persisted state of one customer's checkout.
type CheckoutSession struct {
	ID         string
	CustomerID string
	State      CheckoutState
	Draft      CheckoutDraft
	Violations []FieldViolation
	LastError  string
	OrderID    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}
