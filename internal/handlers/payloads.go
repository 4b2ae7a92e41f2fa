package handlers

import (
	"strings"

	domain "github.com/biccshop/checkout/internal/domain"
)

type violationPayload struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type cartLinePayload struct {
	ProductID    string `json:"productId"`
	SellerID     string `json:"sellerId"`
	StoreName    string `json:"storeName"`
	ProductName  string `json:"productName"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	UnitPrice    int64  `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
	LineSubtotal int64  `json:"lineSubtotal"`
}

type couponPayload struct {
	Code  string `json:"code"`
	Kind  string `json:"kind"`
	Value int64  `json:"value"`
}

type shippingPayload struct {
	Mode              string `json:"mode"`
	Charge            int64  `json:"charge"`
	CollectionPointID string `json:"collectionPointId,omitempty"`
	Street            string `json:"street"`
	City              string `json:"city"`
	PostCode          string `json:"postCode"`
	State             string `json:"state"`
	Country           string `json:"country"`
}

type paymentPayload struct {
	Method          string `json:"method"`
	GatewayFee      int64  `json:"gatewayFee"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	CardFormVisible bool   `json:"cardFormVisible"`
	CardHolderName  string `json:"cardHolderName,omitempty"`
	CardLast4       string `json:"cardLast4,omitempty"`
	CardExpiry      string `json:"cardExpiry,omitempty"`
}

type checkoutSessionPayload struct {
	ID             string             `json:"id"`
	State          string             `json:"state"`
	Lines          []cartLinePayload  `json:"lines"`
	Subtotal       int64              `json:"subtotal"`
	Coupon         *couponPayload     `json:"coupon,omitempty"`
	Discount       int64              `json:"discount"`
	DiscountReason string             `json:"discountReason,omitempty"`
	Shipping       shippingPayload    `json:"shipping"`
	Payment        paymentPayload     `json:"payment"`
	Tax            int64              `json:"tax"`
	OrderTotal     int64              `json:"orderTotal"`
	DeliveryDate   string             `json:"deliveryDate,omitempty"`
	Violations     []violationPayload `json:"violations,omitempty"`
	LastError      string             `json:"lastError,omitempty"`
	OrderID        string             `json:"orderId,omitempty"`
	CreatedAt      string             `json:"createdAt"`
	UpdatedAt      string             `json:"updatedAt"`
	ExpiresAt      string             `json:"expiresAt"`
}

// buildCheckoutSessionPayload never echoes the CVV and only the last four card digits.
func buildCheckoutSessionPayload(session domain.CheckoutSession) checkoutSessionPayload {
	draft := session.Draft
	payload := checkoutSessionPayload{
		ID:             session.ID,
		State:          string(session.State),
		Lines:          make([]cartLinePayload, 0, len(draft.Cart.Lines)),
		Subtotal:       draft.Cart.Subtotal,
		Discount:       draft.Discount,
		DiscountReason: draft.DiscountReason,
		Shipping: shippingPayload{
			Mode:              string(draft.Shipping.Mode),
			Charge:            draft.Shipping.Charge,
			CollectionPointID: draft.Shipping.CollectionPointID,
			Street:            draft.Shipping.Street,
			City:              draft.Shipping.City,
			PostCode:          draft.Shipping.PostCode,
			State:             draft.Shipping.State,
			Country:           draft.Shipping.Country,
		},
		Payment: paymentPayload{
			Method:          string(draft.Payment.Method),
			GatewayFee:      draft.Payment.GatewayFee,
			Status:          string(draft.Payment.Status),
			Reason:          draft.Payment.Reason,
			CardFormVisible: draft.Payment.CardFormVisible,
			CardHolderName:  draft.Payment.Card.HolderName,
			CardLast4:       lastFour(draft.Payment.Card.Number),
			CardExpiry:      draft.Payment.Card.Expiry,
		},
		Tax:          draft.Tax,
		OrderTotal:   draft.OrderTotal,
		DeliveryDate: formatTimePtr(draft.DeliveryDate),
		Violations:   buildViolationPayloads(session.Violations),
		LastError:    session.LastError,
		OrderID:      session.OrderID,
		CreatedAt:    formatTime(session.CreatedAt),
		UpdatedAt:    formatTime(session.UpdatedAt),
		ExpiresAt:    formatTime(session.ExpiresAt),
	}
	for _, line := range draft.Cart.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{
			ProductID:    line.ProductID,
			SellerID:     line.SellerID,
			StoreName:    line.StoreName,
			ProductName:  line.ProductName,
			ThumbnailURL: line.ProductThumbnailURL,
			UnitPrice:    line.UnitPrice,
			Quantity:     line.Quantity,
			LineSubtotal: line.LineSubtotal,
		})
	}
	if c := draft.Coupon; c != nil {
		payload.Coupon = &couponPayload{Code: c.Code, Kind: string(c.Kind), Value: c.Value}
	}
	return payload
}

func buildViolationPayloads(violations []domain.FieldViolation) []violationPayload {
	out := make([]violationPayload, 0, len(violations))
	for _, v := range violations {
		out = append(out, violationPayload{Field: v.Field, Message: v.Message})
	}
	return out
}

type orderDetailPayload struct {
	ProductID           string `json:"productId"`
	SellerID            string `json:"sellerId"`
	StoreName           string `json:"storeName"`
	ProductName         string `json:"productName"`
	ProductUnitPrice    int64  `json:"productUnitPrice"`
	ProductThumbnailURL string `json:"productThumbnailUrl,omitempty"`
	Quantity            int    `json:"quantity"`
	SubTotal            int64  `json:"subTotal"`
	Status              string `json:"status"`
	DeliveryDate        string `json:"deliveryDate,omitempty"`
}

type orderAddressPayload struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	PostCode string `json:"postCode"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

type orderPayload struct {
	ID             string               `json:"id"`
	OrderDate      string               `json:"orderDate"`
	Status         string               `json:"status"`
	SubTotal       int64                `json:"subTotal"`
	Discount       int64                `json:"discount"`
	DiscountReason string               `json:"discountReason,omitempty"`
	CouponCode     string               `json:"couponCode,omitempty"`
	ShippingCharge int64                `json:"shippingCharge"`
	Tax            int64                `json:"tax"`
	GatewayFee     int64                `json:"gatewayFee"`
	OrderTotal     int64                `json:"orderTotal"`
	ShippingMode   string               `json:"shippingMode"`
	ShippingTo     orderAddressPayload  `json:"shippingAddress"`
	PaymentMethod  string               `json:"paymentMethod"`
	PaymentStatus  string               `json:"paymentStatus"`
	CardLast4      string               `json:"cardLast4,omitempty"`
	Details        []orderDetailPayload `json:"details,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:             order.ID,
		OrderDate:      formatTime(order.OrderDate),
		Status:         order.Status,
		SubTotal:       order.SubTotal,
		Discount:       order.Discount,
		DiscountReason: order.DiscountReason,
		CouponCode:     order.CouponCode,
		ShippingCharge: order.ShippingCharge,
		Tax:            order.Tax,
		GatewayFee:     order.GatewayFee,
		OrderTotal:     order.OrderTotal,
		ShippingMode:   string(order.ShippingMode),
		ShippingTo: orderAddressPayload{
			Street:   order.ShippingStreet,
			City:     order.ShippingCity,
			PostCode: order.ShippingPostCode,
			State:    order.ShippingState,
			Country:  order.ShippingCountry,
		},
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		CardLast4:     lastFour(order.CardNumber),
	}
	for _, detail := range order.OrderDetails {
		payload.Details = append(payload.Details, orderDetailPayload{
			ProductID:           detail.ProductID,
			SellerID:            detail.SellerID,
			StoreName:           detail.StoreName,
			ProductName:         detail.ProductName,
			ProductUnitPrice:    detail.ProductUnitPrice,
			ProductThumbnailURL: detail.ProductThumbnailURL,
			Quantity:            detail.Quantity,
			SubTotal:            detail.SubTotal,
			Status:              detail.Status,
			DeliveryDate:        formatTimePtr(detail.DeliveryDate),
		})
	}
	return payload
}

func lastFour(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}
