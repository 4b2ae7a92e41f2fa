package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerDefaultsToNoop(t *testing.T) {
	if Logger(context.Background()) != NoopLogger() {
		t.Fatalf("expected noop logger outside a request")
	}
	if Logger(WithLogger(context.Background(), nil)) != NoopLogger() {
		t.Fatalf("expected nil logger to store the noop logger")
	}
}

func TestWithCheckoutSessionTagsLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = WithCheckoutSession(ctx, " sess-1 ")

	if got := CheckoutSession(ctx); got != "sess-1" {
		t.Fatalf("expected sess-1, got %q", got)
	}
	Logger(ctx).Info("coupon applied")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["checkout_session_id"]; got != "sess-1" {
		t.Fatalf("expected checkout_session_id field, got %v", got)
	}
}

func TestWithCheckoutSessionIgnoresBlankID(t *testing.T) {
	ctx := context.Background()
	if WithCheckoutSession(ctx, "  ") != ctx {
		t.Fatalf("expected blank id to leave the context unchanged")
	}
	if CheckoutSession(ctx) != "" {
		t.Fatalf("expected no session id")
	}
}

func TestTraceID(t *testing.T) {
	if TraceID(context.Background()) != "" {
		t.Fatalf("expected empty trace id")
	}
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc", ProjectID: "biccshop"})
	if TraceID(ctx) != "abc" {
		t.Fatalf("expected trace id abc")
	}
}
