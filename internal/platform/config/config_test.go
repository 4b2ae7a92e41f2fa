package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "biccshop-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "biccshop-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Backends.Catalog != BackendFirestore || cfg.Backends.Orders != BackendFirestore {
		t.Errorf("expected firestore catalog and orders, got %+v", cfg.Backends)
	}
	if cfg.Backends.Sessions != BackendRedis {
		t.Errorf("expected redis sessions, got %s", cfg.Backends.Sessions)
	}
	if cfg.Checkout.FlatShipping != 800 {
		t.Errorf("unexpected flat shipping %d", cfg.Checkout.FlatShipping)
	}
	if cfg.Checkout.TaxPercent != 10 || cfg.Checkout.CardFeePercent != 5 {
		t.Errorf("unexpected rates %d %d", cfg.Checkout.TaxPercent, cfg.Checkout.CardFeePercent)
	}
	if cfg.Checkout.Currency != "BDT" || cfg.Checkout.Country != "Bangladesh" {
		t.Errorf("unexpected locale defaults %s %s", cfg.Checkout.Currency, cfg.Checkout.Country)
	}
	if cfg.Checkout.SessionTTL != 2*time.Hour || cfg.Checkout.SubmitGuardTTL != 2*time.Minute {
		t.Errorf("unexpected session ttls %s %s", cfg.Checkout.SessionTTL, cfg.Checkout.SubmitGuardTTL)
	}
	if !cfg.Checkout.Confirmations {
		t.Error("expected confirmations enabled by default")
	}
	if len(cfg.Checkout.CityPlaceholders) != 0 {
		t.Errorf("expected no placeholder overrides, got %v", cfg.Checkout.CityPlaceholders)
	}
	if cfg.Breaker.ConsecutiveFailures != defaultBreakerFailures {
		t.Errorf("unexpected breaker threshold %d", cfg.Breaker.ConsecutiveFailures)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL {
		t.Errorf("expected default jwks url %s, got %s", defaultOIDCJWKSURL, cfg.Security.OIDC.JWKSURL)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatchSize {
		t.Errorf("unexpected default cleanup batch size: %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_SERVER_PORT":               "9090",
		"CHECKOUT_SERVER_READ_TIMEOUT":       "20s",
		"CHECKOUT_FIREBASE_PROJECT_ID":       "biccshop-prod",
		"CHECKOUT_FIRESTORE_PROJECT_ID":      "biccshop-fire",
		"CHECKOUT_CATALOG_BACKEND":           "Firestore",
		"CHECKOUT_ORDERS_BACKEND":            "postgres",
		"CHECKOUT_SESSION_BACKEND":           "redis",
		"CHECKOUT_REDIS_ADDR":                "redis:6379",
		"CHECKOUT_REDIS_PASSWORD":            "secret://redis/password",
		"CHECKOUT_REDIS_DB":                  "2",
		"CHECKOUT_POSTGRES_DSN":              "secret://postgres/dsn",
		"CHECKOUT_POSTGRES_MAX_CONNS":        "25",
		"CHECKOUT_POSTGRES_AUTO_MIGRATE":     "yes",
		"CHECKOUT_PUBSUB_PROJECT_ID":         "biccshop-events",
		"CHECKOUT_PUBSUB_CART_EVENTS_TOPIC":  "carts",
		"CHECKOUT_CURRENCY":                  "usd",
		"CHECKOUT_FLAT_SHIPPING":             "1200",
		"CHECKOUT_CITY_PLACEHOLDERS":         "Choose city, --",
		"CHECKOUT_SESSION_TTL":               "30m",
		"CHECKOUT_CONFIRMATIONS_ENABLED":     "false",
		"CHECKOUT_BREAKER_FAILURES":          "3",
		"CHECKOUT_SECURITY_ENVIRONMENT":      "prod",
		"CHECKOUT_SECURITY_OIDC_AUDIENCES":   "prod=https://checkout.example.com,stg=https://stg.example.com",
		"CHECKOUT_IDEMPOTENCY_HEADER":        "X-Idem-Key",
		"CHECKOUT_IDEMPOTENCY_CLEANUP_BATCH": "500",
	}

	secrets := map[string]string{
		"secret://redis/password": "redis-pass",
		"secret://postgres/dsn":   "postgres://checkout@db/checkout",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "biccshop-fire" || cfg.PubSub.ProjectID != "biccshop-events" {
		t.Errorf("unexpected projects %s %s", cfg.Firestore.ProjectID, cfg.PubSub.ProjectID)
	}
	if cfg.Backends.Catalog != BackendFirestore || cfg.Backends.Orders != BackendPostgres {
		t.Errorf("unexpected backends %+v", cfg.Backends)
	}
	if cfg.Redis.Password != "redis-pass" || cfg.Redis.DB != 2 || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Postgres.DSN != "postgres://checkout@db/checkout" || cfg.Postgres.MaxConns != 25 || !cfg.Postgres.AutoMigrate {
		t.Errorf("unexpected postgres config %+v", cfg.Postgres)
	}
	if cfg.PubSub.CartEventsTopic != "carts" || cfg.PubSub.ConfirmationTopic != defaultConfirmationTopic {
		t.Errorf("unexpected topics %+v", cfg.PubSub)
	}
	if cfg.Checkout.Currency != "USD" || cfg.Checkout.FlatShipping != 1200 {
		t.Errorf("unexpected checkout pricing %+v", cfg.Checkout)
	}
	if len(cfg.Checkout.CityPlaceholders) != 2 || cfg.Checkout.CityPlaceholders[0] != "Choose city" {
		t.Errorf("unexpected placeholders %v", cfg.Checkout.CityPlaceholders)
	}
	if cfg.Checkout.SessionTTL != 30*time.Minute || cfg.Checkout.Confirmations {
		t.Errorf("unexpected session policy %+v", cfg.Checkout)
	}
	if cfg.Breaker.ConsecutiveFailures != 3 {
		t.Errorf("unexpected breaker threshold %d", cfg.Breaker.ConsecutiveFailures)
	}
	if cfg.Security.OIDC.Audience != "https://checkout.example.com" {
		t.Errorf("expected audience selected by environment, got %s", cfg.Security.OIDC.Audience)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.CleanupBatchSize != 500 {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nCHECKOUT_SERVER_PORT=7070\nexport CHECKOUT_FIREBASE_PROJECT_ID=\"biccshop-dot\"\nCHECKOUT_CATALOG_BACKEND=memory\nCHECKOUT_SESSION_BACKEND=memory\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "biccshop-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Backends.Orders != BackendMemory {
		t.Errorf("expected orders to follow the catalog backend, got %s", cfg.Backends.Orders)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadPricingRates(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
		"CHECKOUT_TAX_PERCENT":         "15",
		"CHECKOUT_CARD_FEE_PERCENT":    "0",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Checkout.TaxPercent != 15 || cfg.Checkout.CardFeePercent != 0 {
		t.Fatalf("unexpected rates %d %d", cfg.Checkout.TaxPercent, cfg.Checkout.CardFeePercent)
	}

	env["CHECKOUT_TAX_PERCENT"] = "120"
	env["CHECKOUT_CARD_FEE_PERCENT"] = "-1"
	_, err = Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := strings.Join(validation.Fields(), ",")
	if !strings.Contains(fields, "Checkout.TaxPercent") || !strings.Contains(fields, "Checkout.CardFeePercent") {
		t.Fatalf("expected rate fields in %v", validation.Fields())
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
		"CHECKOUT_CATALOG_BACKEND":     "mongo",
		"CHECKOUT_ORDERS_BACKEND":      "postgres",
		"CHECKOUT_SESSION_BACKEND":     "firestore",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"Backends.Catalog": false, "Backends.Sessions": false, "Postgres.DSN": false}
	for _, field := range validation.Fields() {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in %v", field, validation.Fields())
		}
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
		"CHECKOUT_REDIS_PASSWORD":      "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "CHECKOUT_FIREBASE_PROJECT_ID=dot-project\nCHECKOUT_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("CHECKOUT_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("CHECKOUT_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "override-project",
		"CHECKOUT_SECRET_VERSION_PINS": "secret://postgres/dsn=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["CHECKOUT_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["CHECKOUT_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["CHECKOUT_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["CHECKOUT_SECRET_VERSION_PINS"]; got != "secret://postgres/dsn=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Redis.Password")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Postgres.DSN" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Postgres.DSN"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"CHECKOUT_FIREBASE_PROJECT_ID": "biccshop-dev",
		"CHECKOUT_REDIS_PASSWORD":      "sm://redis/password",
	}

	secrets := map[string]string{
		"secret://redis/password": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Redis.Password != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Redis.Password)
	}
}
