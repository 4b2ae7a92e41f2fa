package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/biccshop/checkout/internal/platform/resilience"
	"github.com/biccshop/checkout/internal/services"
)

const (
	eventTypeCartChanged       = "cart.changed"
	eventTypeOrderConfirmation = "order.confirmation"
)

// PubSubPublisherDeps configures the checkout event publisher. A nil topic disables that
// event stream: publishing to it is a no-op.
type PubSubPublisherDeps struct {
	CartEvents    *pubsub.Topic
	Confirmations *pubsub.Topic
	Breaker       *resilience.Breaker
}

// PubSubPublisher publishes cart-changed events and order confirmation messages.
type PubSubPublisher struct {
	cartEvents    *pubsub.Topic
	confirmations *pubsub.Topic
	breaker       *resilience.Breaker
	marshal       func(any) ([]byte, error)
}

var (
	_ services.CartEvents            = (*PubSubPublisher)(nil)
	_ services.ConfirmationPublisher = (*PubSubPublisher)(nil)
)

// NewPubSubPublisher constructs a Pub/Sub backed publisher. At least one topic is required.
func NewPubSubPublisher(deps PubSubPublisherDeps) (*PubSubPublisher, error) {
	if deps.CartEvents == nil && deps.Confirmations == nil {
		return nil, errors.New("pubsub publisher: at least one topic is required")
	}
	return &PubSubPublisher{
		cartEvents:    deps.CartEvents,
		confirmations: deps.Confirmations,
		breaker:       deps.Breaker,
		marshal:       json.Marshal,
	}, nil
}

// CartChanged tells the cart service that checkout cleared a customer's cart.
func (p *PubSubPublisher) CartChanged(ctx context.Context, event services.CartChangedEvent) error {
	if p == nil || p.cartEvents == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}

	attrs := map[string]string{"eventType": eventTypeCartChanged}
	setAttr(attrs, "customerId", event.CustomerID)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "reason", event.Reason)

	if _, err := p.publish(ctx, p.cartEvents, data, attrs); err != nil {
		return fmt.Errorf("publish cart event: %w", err)
	}
	return nil
}

// PublishConfirmation enqueues a rendered confirmation for the mail worker.
func (p *PubSubPublisher) PublishConfirmation(ctx context.Context, message services.OrderConfirmationMessage) (string, error) {
	if p == nil || p.confirmations == nil {
		return "", nil
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal confirmation: %w", err)
	}

	attrs := map[string]string{"eventType": eventTypeOrderConfirmation}
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "customerId", message.CustomerID)
	setAttr(attrs, "locale", message.Locale)
	if key := strings.TrimSpace(message.IdempotencyKey); key != "" {
		attrs["idempotencyKey"] = key
	}

	id, err := p.publish(ctx, p.confirmations, data, attrs)
	if err != nil {
		return "", fmt.Errorf("publish confirmation: %w", err)
	}
	return id, nil
}

func (p *PubSubPublisher) publish(ctx context.Context, topic *pubsub.Topic, data []byte, attrs map[string]string) (string, error) {
	return resilience.Do(ctx, p.breaker, func(ctx context.Context) (string, error) {
		result := topic.Publish(ctx, &pubsub.Message{
			Data:       data,
			Attributes: attrs,
		})
		return result.Get(ctx)
	})
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
