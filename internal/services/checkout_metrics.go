package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const checkoutMetricNamespace = "github.com/biccshop/checkout/internal/services"

// CheckoutMetrics records checkout outcomes. A nil value records nothing.
type CheckoutMetrics struct {
	ordersPlaced      metric.Int64Counter
	submissionsFailed metric.Int64Counter
	couponsRejected   metric.Int64Counter
	orderTotal        metric.Int64Histogram
}

// NewCheckoutMetrics registers instruments on meter, or the global provider when meter is nil.
// Instruments that fail to register are skipped.
func NewCheckoutMetrics(meter metric.Meter) *CheckoutMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(checkoutMetricNamespace)
	}
	m := &CheckoutMetrics{}
	m.ordersPlaced, _ = meter.Int64Counter(
		"checkout.orders.placed",
		metric.WithDescription("Orders placed successfully"),
	)
	m.submissionsFailed, _ = meter.Int64Counter(
		"checkout.submissions.failed",
		metric.WithDescription("Order submissions that failed after validation"),
	)
	m.couponsRejected, _ = meter.Int64Counter(
		"checkout.coupons.rejected",
		metric.WithDescription("Coupon codes rejected as unknown, inactive or expired"),
	)
	m.orderTotal, _ = meter.Int64Histogram(
		"checkout.order.total",
		metric.WithUnit("{minor_unit}"),
		metric.WithDescription("Order total of placed orders"),
	)
	return m
}

func (m *CheckoutMetrics) orderPlaced(ctx context.Context, method string, total int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("payment_method", method))
	if m.ordersPlaced != nil {
		m.ordersPlaced.Add(ctx, 1, attrs)
	}
	if m.orderTotal != nil {
		m.orderTotal.Record(ctx, total, attrs)
	}
}

func (m *CheckoutMetrics) submissionFailed(ctx context.Context) {
	if m == nil || m.submissionsFailed == nil {
		return
	}
	m.submissionsFailed.Add(ctx, 1)
}

func (m *CheckoutMetrics) couponRejected(ctx context.Context, reason string) {
	if m == nil || m.couponsRejected == nil {
		return
	}
	m.couponsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
