package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/biccshop/checkout/internal/platform/config"
	"github.com/biccshop/checkout/internal/platform/observability"
	"github.com/biccshop/checkout/internal/platform/resilience"
	"github.com/biccshop/checkout/internal/repositories"
	"github.com/biccshop/checkout/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Checkout         services.CheckoutService
	Orders           services.OrderService
	CollectionPoints services.CollectionPointService
	System           services.SystemService
}

// Infrastructure carries collaborators that live outside the repository registry. Nil
// publishers disable the matching event stream.
type Infrastructure struct {
	CartEvents    services.CartEvents
	Confirmations services.ConfirmationPublisher
	Meter         metric.Meter
	Logger        *zap.Logger
	Clock         func() time.Time
	Build         services.BuildInfo
	NewSessionID  func() string
	NewOrderID    func() string
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply a memory registry.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if infra.Logger == nil {
		infra.Logger = zap.NewNop()
	}
	if infra.Clock == nil {
		infra.Clock = time.Now
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	couponBreaker := resilience.NewBreaker("coupon-registry", resilience.Config{
		ConsecutiveFailures: uint32(max(cfg.Breaker.ConsecutiveFailures, 0)),
		OpenTimeout:         cfg.Breaker.OpenTimeout,
		IsSuccessful:        isNotFound,
		OnStateChange:       breakerLogger(infra.Logger),
	})
	coupons, err := services.NewCouponResolver(services.CouponResolverDeps{
		Coupons: reg.Coupons(),
		Breaker: couponBreaker,
		Clock:   infra.Clock,
		Logger:  observability.EventLogger(infra.Logger.Named("coupons")),
	})
	if err != nil {
		return svc, fmt.Errorf("init coupon resolver: %w", err)
	}

	shipping := services.NewShippingSelector(services.ShippingSelectorConfig{
		FlatCharge: cfg.Checkout.FlatShipping,
		Country:    cfg.Checkout.Country,
	})

	rates, err := services.NewPricingRates(cfg.Checkout.TaxPercent, cfg.Checkout.CardFeePercent)
	if err != nil {
		return svc, fmt.Errorf("init pricing rates: %w", err)
	}

	var confirmations services.ConfirmationSender
	if cfg.Checkout.Confirmations && infra.Confirmations != nil {
		confirmations, err = services.NewOrderConfirmationSender(services.OrderConfirmationDeps{
			Publisher: infra.Confirmations,
			Currency:  cfg.Checkout.Currency,
			Logger:    observability.EventLogger(infra.Logger.Named("confirmations")),
		})
		if err != nil {
			return svc, fmt.Errorf("init order confirmations: %w", err)
		}
	}

	svc.Checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
		Sessions:         reg.CheckoutSessions(),
		Carts:            reg.Carts(),
		CollectionPoints: reg.CollectionPoints(),
		Orders:           reg.Orders(),
		Coupons:          coupons,
		Shipping:         shipping,
		Validator: services.NewOrderValidator(services.OrderValidatorConfig{
			CityPlaceholders:   cfg.Checkout.CityPlaceholders,
			RegionPlaceholders: cfg.Checkout.RegionPlaceholders,
		}),
		Builder:        services.NewOrderBuilder(shipping.Country()).WithRates(rates),
		Rates:          rates,
		CartEvents:     infra.CartEvents,
		Confirmations:  confirmations,
		Metrics:        services.NewCheckoutMetrics(infra.Meter),
		SessionTTL:     cfg.Checkout.SessionTTL,
		SubmitGuardTTL: cfg.Checkout.SubmitGuardTTL,
		NewSessionID:   infra.NewSessionID,
		NewOrderID:     infra.NewOrderID,
		Clock:          infra.Clock,
		Logger:         observability.EventLogger(infra.Logger.Named("checkout")),
	})
	if err != nil {
		return svc, fmt.Errorf("init checkout service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders: reg.Orders(),
		Logger: observability.EventLogger(infra.Logger.Named("orders")),
	})
	if err != nil {
		return svc, fmt.Errorf("init order service: %w", err)
	}

	svc.CollectionPoints, err = services.NewCollectionPointService(services.CollectionPointServiceDeps{
		Points: reg.CollectionPoints(),
	})
	if err != nil {
		return svc, fmt.Errorf("init collection point service: %w", err)
	}

	svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            infra.Clock,
		Build:            infra.Build,
	})
	if err != nil {
		return svc, fmt.Errorf("init system service: %w", err)
	}

	return svc, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func breakerLogger(logger *zap.Logger) func(name, from, to string) {
	return func(name, from, to string) {
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from),
			zap.String("to", to),
		)
	}
}
