package redis

import (
	"strings"
	"time"

	domain "github.com/biccshop/checkout/internal/domain"
)

type sessionRecord struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customerId"`
	State      string            `json:"state"`
	Draft      draftRecord       `json:"draft"`
	Violations []violationRecord `json:"violations,omitempty"`
	LastError  string            `json:"lastError,omitempty"`
	OrderID    string            `json:"orderId,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

type draftRecord struct {
	Lines          []lineRecord   `json:"lines"`
	Subtotal       int64          `json:"subtotal"`
	Coupon         *couponRecord  `json:"coupon,omitempty"`
	Discount       int64          `json:"discount"`
	DiscountReason string         `json:"discountReason,omitempty"`
	Shipping       shippingRecord `json:"shipping"`
	Payment        paymentRecord  `json:"payment"`
	Tax            int64          `json:"tax"`
	OrderTotal     int64          `json:"orderTotal"`
	DeliveryDate   *time.Time     `json:"deliveryDate,omitempty"`
}

type lineRecord struct {
	ProductID    string `json:"productId"`
	SellerID     string `json:"sellerId"`
	StoreName    string `json:"storeName"`
	ProductName  string `json:"productName"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	UnitPrice    int64  `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
	LineSubtotal int64  `json:"lineSubtotal"`
}

type couponRecord struct {
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	Value     int64      `json:"value"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type shippingRecord struct {
	Mode              string `json:"mode"`
	Charge            int64  `json:"charge"`
	CollectionPointID string `json:"collectionPointId,omitempty"`
	Street            string `json:"street,omitempty"`
	City              string `json:"city,omitempty"`
	PostCode          string `json:"postCode,omitempty"`
	State             string `json:"state,omitempty"`
	Country           string `json:"country,omitempty"`
}

// redactedCVV stands in for a CVV that was entered but is never written to Redis.
const redactedCVV = "***"

// The card number is stored masked to its last four digits and the CVV only as a flag. Orders
// keep nothing more than the masked number either.
type paymentRecord struct {
	Method          string `json:"method"`
	GatewayFee      int64  `json:"gatewayFee"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	CardFormVisible bool   `json:"cardFormVisible"`
	CardHolder      string `json:"cardHolder,omitempty"`
	CardNumber      string `json:"cardNumberMasked,omitempty"`
	CardCVVEntered  bool   `json:"cardCvvEntered,omitempty"`
	CardExpiry      string `json:"cardExpiry,omitempty"`
}

type violationRecord struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newSessionRecord(s domain.CheckoutSession) sessionRecord {
	d := s.Draft
	lines := make([]lineRecord, 0, len(d.Cart.Lines))
	for _, l := range d.Cart.Lines {
		lines = append(lines, lineRecord{
			ProductID:    l.ProductID,
			SellerID:     l.SellerID,
			StoreName:    l.StoreName,
			ProductName:  l.ProductName,
			ThumbnailURL: l.ProductThumbnailURL,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineSubtotal: l.LineSubtotal,
		})
	}
	var coupon *couponRecord
	if d.Coupon != nil {
		coupon = &couponRecord{
			Code:      d.Coupon.Code,
			Kind:      string(d.Coupon.Kind),
			Value:     d.Coupon.Value,
			Active:    d.Coupon.Active,
			ExpiresAt: d.Coupon.ExpiresAt,
		}
	}
	violations := make([]violationRecord, 0, len(s.Violations))
	for _, v := range s.Violations {
		violations = append(violations, violationRecord{Field: v.Field, Message: v.Message})
	}
	return sessionRecord{
		ID:         s.ID,
		CustomerID: s.CustomerID,
		State:      string(s.State),
		Draft: draftRecord{
			Lines:          lines,
			Subtotal:       d.Cart.Subtotal,
			Coupon:         coupon,
			Discount:       d.Discount,
			DiscountReason: d.DiscountReason,
			Shipping: shippingRecord{
				Mode:              string(d.Shipping.Mode),
				Charge:            d.Shipping.Charge,
				CollectionPointID: d.Shipping.CollectionPointID,
				Street:            d.Shipping.Street,
				City:              d.Shipping.City,
				PostCode:          d.Shipping.PostCode,
				State:             d.Shipping.State,
				Country:           d.Shipping.Country,
			},
			Payment: paymentRecord{
				Method:          string(d.Payment.Method),
				GatewayFee:      d.Payment.GatewayFee,
				Status:          string(d.Payment.Status),
				Reason:          d.Payment.Reason,
				CardFormVisible: d.Payment.CardFormVisible,
				CardHolder:      d.Payment.Card.HolderName,
				CardNumber:      maskCardNumber(d.Payment.Card.Number),
				CardCVVEntered:  d.Payment.Card.CVV != "",
				CardExpiry:      d.Payment.Card.Expiry,
			},
			Tax:          d.Tax,
			OrderTotal:   d.OrderTotal,
			DeliveryDate: d.DeliveryDate,
		},
		Violations: violations,
		LastError:  s.LastError,
		OrderID:    s.OrderID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

func (r sessionRecord) toDomain() domain.CheckoutSession {
	lines := make([]domain.CartLine, 0, len(r.Draft.Lines))
	for _, l := range r.Draft.Lines {
		lines = append(lines, domain.CartLine{
			ProductID:           l.ProductID,
			SellerID:            l.SellerID,
			StoreName:           l.StoreName,
			ProductName:         l.ProductName,
			ProductThumbnailURL: l.ThumbnailURL,
			UnitPrice:           l.UnitPrice,
			Quantity:            l.Quantity,
			LineSubtotal:        l.LineSubtotal,
		})
	}
	var coupon *domain.Coupon
	if c := r.Draft.Coupon; c != nil {
		coupon = &domain.Coupon{
			Code:      c.Code,
			Kind:      domain.CouponKind(c.Kind),
			Value:     c.Value,
			Active:    c.Active,
			ExpiresAt: c.ExpiresAt,
		}
	}
	var violations []domain.FieldViolation
	for _, v := range r.Violations {
		violations = append(violations, domain.FieldViolation{Field: v.Field, Message: v.Message})
	}
	sh, p := r.Draft.Shipping, r.Draft.Payment
	return domain.CheckoutSession{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		State:      domain.CheckoutState(r.State),
		Draft: domain.CheckoutDraft{
			Cart:           domain.CartSnapshot{Lines: lines, Subtotal: r.Draft.Subtotal},
			Coupon:         coupon,
			Discount:       r.Draft.Discount,
			DiscountReason: r.Draft.DiscountReason,
			Shipping: domain.ShippingSelection{
				Mode:              domain.ShippingMode(sh.Mode),
				Charge:            sh.Charge,
				CollectionPointID: sh.CollectionPointID,
				Street:            sh.Street,
				City:              sh.City,
				PostCode:          sh.PostCode,
				State:             sh.State,
				Country:           sh.Country,
			},
			Payment: domain.PaymentSelection{
				Method:          domain.PaymentMethod(p.Method),
				GatewayFee:      p.GatewayFee,
				Status:          domain.PaymentStatus(p.Status),
				Reason:          p.Reason,
				CardFormVisible: p.CardFormVisible,
				Card: domain.CardDetails{
					HolderName: p.CardHolder,
					Number:     p.CardNumber,
					CVV:        redactedCVVIf(p.CardCVVEntered),
					Expiry:     p.CardExpiry,
				},
			},
			Tax:          r.Draft.Tax,
			OrderTotal:   r.Draft.OrderTotal,
			DeliveryDate: r.Draft.DeliveryDate,
		},
		Violations: violations,
		LastError:  r.LastError,
		OrderID:    r.OrderID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func maskCardNumber(number string) string {
	if strings.Contains(number, "*") {
		return number
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func redactedCVVIf(entered bool) string {
	if entered {
		return redactedCVV
	}
	return ""
}
