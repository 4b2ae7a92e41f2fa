package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

func setupSessionRepository(t *testing.T) (*miniredis.Miniredis, *SessionRepository) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := NewSessionRepository(client, Options{KeyPrefix: "test"})
	require.NoError(t, err)
	return mr, repo
}

func sampleSession(id string, expiresAt time.Time) domain.CheckoutSession {
	delivery := expiresAt.Add(48 * time.Hour)
	return domain.CheckoutSession{
		ID:         id,
		CustomerID: "cust-1",
		State:      domain.CheckoutStateEditing,
		Draft: domain.CheckoutDraft{
			Cart: domain.CartSnapshot{
				Lines: []domain.CartLine{
					{ProductID: "p-1", ProductName: "Jute Bag", UnitPrice: 2000, Quantity: 2, LineSubtotal: 4000},
				},
				Subtotal: 4000,
			},
			Coupon:   &domain.Coupon{Code: "SAVE500", Kind: domain.CouponKindFlat, Value: 500, Active: true},
			Discount: 500,
			Shipping: domain.ShippingSelection{Mode: domain.ShippingModeHome, Charge: 800, Street: "12 Lake Rd", City: "Dhaka", Country: "Bangladesh"},
			Payment: domain.PaymentSelection{
				Method:          domain.PaymentMethodCard,
				GatewayFee:      200,
				Status:          domain.PaymentStatusPaid,
				CardFormVisible: true,
				Card:            domain.CardDetails{HolderName: "R. Ahmed", Number: "4111111111111111", CVV: "123", Expiry: "12/27"},
			},
			Tax:          400,
			OrderTotal:   4900,
			DeliveryDate: &delivery,
		},
		Violations: []domain.FieldViolation{{Field: "shipping.postCode", Message: "required"}},
		CreatedAt:  expiresAt.Add(-2 * time.Hour),
		UpdatedAt:  expiresAt.Add(-time.Hour),
		ExpiresAt:  expiresAt,
	}
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	_, repo := setupSessionRepository(t)
	ctx := context.Background()
	expires := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)

	session := sampleSession("sess-1", expires)
	require.NoError(t, repo.Save(ctx, session))

	got, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.Draft.OrderTotal, got.Draft.OrderTotal)
	assert.Equal(t, domain.CardDetails{HolderName: "R. Ahmed", Number: "************1111", CVV: "***", Expiry: "12/27"}, got.Draft.Payment.Card)
	require.NotNil(t, got.Draft.Coupon)
	assert.Equal(t, "SAVE500", got.Draft.Coupon.Code)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.Len(t, got.Violations, 1)
	require.NotNil(t, got.Draft.DeliveryDate)

	active, err := repo.ActiveForCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", active)
}

func TestSessionRepositoryKeepsCardSecretsOut(t *testing.T) {
	mr, repo := setupSessionRepository(t)
	ctx := context.Background()
	session := sampleSession("sess-card", time.Now().Add(time.Hour).UTC())
	require.NoError(t, repo.Save(ctx, session))

	raw, err := mr.Get("test:session:sess-card")
	require.NoError(t, err)
	assert.NotContains(t, raw, "4111111111111111")
	assert.NotContains(t, raw, `"123"`)
	assert.Contains(t, raw, "************1111")

	reloaded, err := repo.Get(ctx, "sess-card")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, reloaded))
	again, err := repo.Get(ctx, "sess-card")
	require.NoError(t, err)
	assert.Equal(t, "************1111", again.Draft.Payment.Card.Number)
	assert.Equal(t, "***", again.Draft.Payment.Card.CVV)

	session.Draft.Payment.Card = domain.CardDetails{}
	require.NoError(t, repo.Save(ctx, session))
	got, err := repo.Get(ctx, "sess-card")
	require.NoError(t, err)
	assert.Empty(t, got.Draft.Payment.Card.CVV)
	assert.Empty(t, got.Draft.Payment.Card.Number)
}

func TestSessionRepositoryNotFound(t *testing.T) {
	_, repo := setupSessionRepository(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())

	_, err = repo.ActiveForCustomer(ctx, "nobody")
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())

	assert.NoError(t, repo.Delete(ctx, "missing"))
}

func TestSessionRepositoryTerminalStateDropsActiveIndex(t *testing.T) {
	_, repo := setupSessionRepository(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	first := sampleSession("sess-1", expires)
	require.NoError(t, repo.Save(ctx, first))
	second := sampleSession("sess-2", expires)
	require.NoError(t, repo.Save(ctx, second))

	// Abandoning the replaced session must not clear the newer index entry.
	first.State = domain.CheckoutStateAbandoned
	require.NoError(t, repo.Save(ctx, first))
	active, err := repo.ActiveForCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", active)

	second.State = domain.CheckoutStatePlaced
	require.NoError(t, repo.Save(ctx, second))
	_, err = repo.ActiveForCustomer(ctx, "cust-1")
	assert.Error(t, err)
}

func TestSessionRepositorySubmissionGuard(t *testing.T) {
	mr, repo := setupSessionRepository(t)
	ctx := context.Background()

	ok, err := repo.AcquireSubmission(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireSubmission(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must be rejected")

	require.NoError(t, repo.ReleaseSubmission(ctx, "sess-1"))
	ok, err = repo.AcquireSubmission(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = repo.AcquireSubmission(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "guard should lapse after its ttl")
}

func TestSessionRepositoryPurgeExpired(t *testing.T) {
	mr, repo := setupSessionRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, sampleSession("old", now.Add(-time.Minute))))
	guarded := sampleSession("guarded", now.Add(-time.Minute))
	guarded.CustomerID = "cust-2"
	require.NoError(t, repo.Save(ctx, guarded))
	fresh := sampleSession("fresh", now.Add(time.Hour))
	fresh.CustomerID = "cust-3"
	require.NoError(t, repo.Save(ctx, fresh))

	ok, err := repo.AcquireSubmission(ctx, "guarded", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	purged, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = repo.Get(ctx, "old")
	assert.Error(t, err)
	_, err = repo.Get(ctx, "guarded")
	assert.NoError(t, err)
	_, err = repo.Get(ctx, "fresh")
	assert.NoError(t, err)
	assert.False(t, mr.Exists("test:customer:cust-1:active"))
}

func TestSessionRepositoryUnavailable(t *testing.T) {
	mr, repo := setupSessionRepository(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "sess-1")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsUnavailable())
}
