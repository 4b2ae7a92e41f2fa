package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultConfirmationCurrency = "BDT"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<div>
<p>{{.Greeting}}</p>
<p>Your order <strong>{{.OrderID}}</strong> has been placed on {{.PlacedAt}}.</p>
<table>
<thead><tr><th>Product</th><th>Store</th><th>Qty</th><th>Unit price</th><th>Subtotal</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.Product}}</td><td>{{.Store}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Subtotal}}</td></tr>
{{end}}</tbody>
</table>
<table>
<tr><td>Subtotal</td><td>{{.Subtotal}}</td></tr>
{{if .Discount}}<tr><td>Discount {{.DiscountReason}}</td><td>-{{.Discount}}</td></tr>
{{end}}<tr><td>Shipping</td><td>{{.Shipping}}</td></tr>
<tr><td>Tax</td><td>{{.Tax}}</td></tr>
{{if .GatewayFee}}<tr><td>Payment fee</td><td>{{.GatewayFee}}</td></tr>
{{end}}<tr><td><strong>Total</strong></td><td><strong>{{.Total}}</strong></td></tr>
</table>
<p>Ship to: {{.Address}}</p>
</div>`))

// OrderConfirmationDeps bundles collaborators for the confirmation sender.
type OrderConfirmationDeps struct {
	Publisher ConfirmationPublisher
	Currency  string
	Logger    func(context.Context, string, map[string]any)
}

type orderConfirmationSender struct {
	publisher ConfirmationPublisher
	currency  string
	logger    func(context.Context, string, map[string]any)
	strict    *bluemonday.Policy
	body      *bluemonday.Policy
}

var _ ConfirmationSender = (*orderConfirmationSender)(nil)

var errConfirmationNoRecipient = errors.New("confirmation: customer has no email")

// NewOrderConfirmationSender renders confirmation emails and publishes them for delivery.
func NewOrderConfirmationSender(deps OrderConfirmationDeps) (ConfirmationSender, error) {
	if deps.Publisher == nil {
		return nil, errors.New("order confirmation: publisher is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultConfirmationCurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderConfirmationSender{
		publisher: deps.Publisher,
		currency:  currency,
		logger:    logger,
		strict:    bluemonday.StrictPolicy(),
		body:      bluemonday.UGCPolicy(),
	}, nil
}

type confirmationLine struct {
	Product   string
	Store     string
	Quantity  int
	UnitPrice string
	Subtotal  string
}

type confirmationView struct {
	Greeting       string
	OrderID        string
	PlacedAt       string
	Lines          []confirmationLine
	Subtotal       string
	Discount       string
	DiscountReason string
	Shipping       string
	Tax            string
	GatewayFee     string
	Total          string
	Address        string
}

func (s *orderConfirmationSender) Send(ctx context.Context, customer Customer, order Order) error {
	to := strings.TrimSpace(customer.Email)
	if to == "" {
		to = strings.TrimSpace(order.CustomerEmail)
	}
	if to == "" {
		return errConfirmationNoRecipient
	}

	locale := confirmationLocale(customer.Locale)
	html, err := s.render(locale, customer, order)
	if err != nil {
		return fmt.Errorf("confirmation: render: %w", err)
	}

	msg := OrderConfirmationMessage{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		To:             to,
		Subject:        fmt.Sprintf("Order confirmation %s", order.ID),
		HTMLBody:       html,
		Locale:         locale.String(),
		PlacedAt:       order.OrderDate,
		IdempotencyKey: "confirmation:" + order.ID,
	}
	id, err := s.publisher.PublishConfirmation(ctx, msg)
	if err != nil {
		return fmt.Errorf("confirmation: publish: %w", err)
	}
	s.logger(ctx, "checkout_confirmation_published", map[string]any{
		"orderId":   order.ID,
		"messageId": id,
	})
	return nil
}

func (s *orderConfirmationSender) render(locale language.Tag, customer Customer, order Order) (string, error) {
	printer := message.NewPrinter(locale)
	money := func(amount int64) string {
		return printer.Sprintf("%s %.2f", s.currency, float64(amount)/100)
	}
	text := func(value string) string {
		return strings.TrimSpace(s.strict.Sanitize(value))
	}

	name := text(customer.Name)
	if name == "" {
		name = text(order.CustomerName)
	}
	greeting := "Thank you for your order."
	if name != "" {
		greeting = fmt.Sprintf("Hello %s, thank you for your order.", name)
	}

	view := confirmationView{
		Greeting: greeting,
		OrderID:  order.ID,
		PlacedAt: order.OrderDate.UTC().Format("2006-01-02 15:04 MST"),
		Subtotal: money(order.SubTotal),
		Shipping: money(order.ShippingCharge),
		Tax:      money(order.Tax),
		Total:    money(order.OrderTotal),
		Address:  text(joinNonEmpty(", ", order.ShippingStreet, order.ShippingCity, order.ShippingPostCode, order.ShippingState, order.ShippingCountry)),
		Lines:    make([]confirmationLine, 0, len(order.OrderDetails)),
	}
	if order.Discount > 0 {
		view.Discount = money(order.Discount)
		view.DiscountReason = text(order.DiscountReason)
	}
	if order.GatewayFee > 0 {
		view.GatewayFee = money(order.GatewayFee)
	}
	for _, detail := range order.OrderDetails {
		view.Lines = append(view.Lines, confirmationLine{
			Product:   text(detail.ProductName),
			Store:     text(detail.StoreName),
			Quantity:  detail.Quantity,
			UnitPrice: money(detail.ProductUnitPrice),
			Subtotal:  money(detail.SubTotal),
		})
	}

	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return s.body.Sanitize(buf.String()), nil
}

func confirmationLocale(raw string) language.Tag {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	if raw == "" {
		return language.English
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.English
	}
	return tag
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, sep)
}
