package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/biccshop/checkout/internal/di"
	"github.com/biccshop/checkout/internal/handlers"
	"github.com/biccshop/checkout/internal/platform/auth"
	"github.com/biccshop/checkout/internal/platform/config"
	"github.com/biccshop/checkout/internal/platform/idempotency"
	"github.com/biccshop/checkout/internal/platform/jobs"
	"github.com/biccshop/checkout/internal/platform/observability"
	"github.com/biccshop/checkout/internal/platform/requestctx"
	"github.com/biccshop/checkout/internal/platform/resilience"
	"github.com/biccshop/checkout/internal/platform/secrets"
	"github.com/biccshop/checkout/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["CHECKOUT_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("checkout-api")
	ctx = requestctx.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	stores, err := openBackends(ctx, logger.Named("backends"), cfg, fetcher)
	if err != nil {
		logger.Fatal("failed to open backends", zap.Error(err))
	}
	logger.Info("backends ready",
		zap.String("catalog", cfg.Backends.Catalog),
		zap.String("orders", cfg.Backends.Orders),
		zap.String("sessions", cfg.Backends.Sessions),
	)

	publisher, closePublisher, err := newEventPublisher(ctx, logger.Named("pubsub"), cfg)
	if err != nil {
		logger.Fatal("failed to initialise pubsub publisher", zap.Error(err))
	}
	defer closePublisher()

	infra := di.Infrastructure{
		Logger:       logger,
		Clock:        time.Now,
		Build:        buildInfo,
		NewSessionID: uuid.NewString,
		NewOrderID:   func() string { return "ord_" + ulid.Make().String() },
	}
	if publisher != nil {
		infra.CartEvents = publisher
		infra.Confirmations = publisher
	}
	container, err := di.NewContainer(ctx, cfg, stores.registry, infra)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("backend close error", zap.Error(err))
		}
	}()

	idempotencyStore, err := stores.idempotencyStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(idempotencyStore, idempotency.Config{
		Header: cfg.Idempotency.Header,
		TTL:    cfg.Idempotency.TTL,
		Logger: logger.Named("idempotency"),
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)
	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)

	svc := container.Services
	checkoutHandlers := handlers.NewCheckoutHandlers(svc.Checkout,
		handlers.WithSubmitMiddleware(idempotencyMiddleware),
	)
	orderHandlers := handlers.NewOrderHandlers(svc.Orders)
	collectionPointHandlers := handlers.NewCollectionPointHandlers(svc.CollectionPoints)
	maintenanceHandlers := handlers.NewMaintenanceHandlers(svc.Checkout, idempotencyStore, time.Now)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCustomerMiddlewares(authenticator.RequireFirebaseAuth(), observability.RecordCustomer),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCollectionPointRoutes(collectionPointHandlers.Routes),
		handlers.WithInternalRoutes(maintenanceHandlers.Routes),
	}
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("checkout api listening", zap.String("version", buildInfo.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newEventPublisher opens the Pub/Sub topics for cart events and confirmations. It returns a
// nil publisher when no topic is configured.
func newEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (*jobs.PubSubPublisher, func(), error) {
	noop := func() {}
	cartTopic := strings.TrimSpace(cfg.PubSub.CartEventsTopic)
	confirmationTopic := strings.TrimSpace(cfg.PubSub.ConfirmationTopic)
	if !cfg.Checkout.Confirmations {
		confirmationTopic = ""
	}
	if cartTopic == "" && confirmationTopic == "" {
		logger.Info("pubsub publishing disabled")
		return nil, noop, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, noop, err
	}
	deps := jobs.PubSubPublisherDeps{
		Breaker: resilience.NewBreaker("pubsub", resilience.Config{
			ConsecutiveFailures: uint32(max(cfg.Breaker.ConsecutiveFailures, 0)),
			OpenTimeout:         cfg.Breaker.OpenTimeout,
			OnStateChange: func(name, from, to string) {
				logger.Warn("circuit breaker state changed", zap.String("breaker", name), zap.String("from", from), zap.String("to", to))
			},
		}),
	}
	var topics []*pubsub.Topic
	if cartTopic != "" {
		deps.CartEvents = client.Topic(cartTopic)
		topics = append(topics, deps.CartEvents)
	}
	if confirmationTopic != "" {
		deps.Confirmations = client.Topic(confirmationTopic)
		topics = append(topics, deps.Confirmations)
	}
	closeFn := func() {
		for _, topic := range topics {
			topic.Stop()
		}
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}

	publisher, err := jobs.NewPubSubPublisher(deps)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	logger.Info("pubsub publishing enabled",
		zap.String("cartEventsTopic", cartTopic),
		zap.String("confirmationTopic", confirmationTopic),
	)
	return publisher, closeFn, nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["CHECKOUT_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["CHECKOUT_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(logger))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("CHECKOUT_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("CHECKOUT_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("CHECKOUT_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("CHECKOUT_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
		secrets.WithMeter(otel.GetMeterProvider().Meter("github.com/biccshop/checkout/internal/platform/secrets")),
	}
	if projects := parseKeyValueList(lookup("CHECKOUT_SECRET_PROJECT_IDS")); len(projects) > 0 {
		normalised := make(map[string]string, len(projects))
		for label, project := range projects {
			normalised[strings.ToLower(label)] = project
		}
		opts = append(opts, secrets.WithProjectMap(normalised))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if pins := secretVersionPins(lookup("CHECKOUT_SECRET_VERSION_PINS")); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if credentialsFile := lookup("CHECKOUT_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secret-backed fields the configured backends cannot run without.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	uses := func(backend string) bool {
		for _, key := range []string{"CHECKOUT_CATALOG_BACKEND", "CHECKOUT_ORDERS_BACKEND"} {
			if strings.EqualFold(strings.TrimSpace(env[key]), backend) {
				return true
			}
		}
		return false
	}
	if uses(config.BackendPostgres) {
		required = append(required, "Postgres.DSN")
	}
	if strings.HasPrefix(strings.TrimSpace(env["CHECKOUT_REDIS_PASSWORD"]), "secret://") {
		required = append(required, "Redis.Password")
	}
	return uniqueStrings(required)
}

// secretVersionPins parses "name=version" pairs into the fetcher's secret:// keyed map. A
// leading "env:" label scopes the pin to one environment.
func secretVersionPins(raw string) map[string]string {
	pins := make(map[string]string)
	for ref, version := range parseKeyValueList(raw) {
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		switch {
		case strings.HasPrefix(ref, "sm://"):
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		case !strings.HasPrefix(ref, "secret://"):
			ref = "secret://" + ref
		}
		pins[prefix+ref] = version
	}
	return pins
}

func parseKeyValueList(raw string) map[string]string {
	result := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
