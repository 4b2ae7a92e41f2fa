package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultCatalogBackend       = BackendFirestore
	defaultSessionBackend       = BackendRedis
	defaultRedisAddr            = "localhost:6379"
	defaultRedisKeyPrefix       = "checkout"
	defaultPostgresMaxConns     = 10
	defaultCartEventsTopic      = "cart-events"
	defaultConfirmationTopic    = "order-confirmations"
	defaultCurrency             = "BDT"
	defaultCountry              = "Bangladesh"
	defaultFlatShipping         = 800
	defaultTaxPercent           = 10
	defaultCardFeePercent       = 5
	defaultSessionTTL           = 2 * time.Hour
	defaultSubmitGuardTTL       = 2 * time.Minute
	defaultBreakerFailures      = 5
	defaultBreakerOpenTimeout   = 30 * time.Second
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultSecurityIAPIssuer    = "https://cloud.google.com/iap"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Backend names accepted by CHECKOUT_CATALOG_BACKEND, CHECKOUT_ORDERS_BACKEND and
// CHECKOUT_SESSION_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendRedis     = "redis"
	BackendMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Backends    BackendConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	PubSub      PubSubConfig
	Checkout    CheckoutConfig
	Breaker     BreakerConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	LogLevel     string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// BackendConfig picks the store behind each repository group. Catalog covers carts, coupons
// and collection points.
type BackendConfig struct {
	Catalog  string
	Orders   string
	Sessions string
	SeedFile string
}

// RedisConfig configures the checkout session store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// PostgresConfig configures the SQL order store.
type PostgresConfig struct {
	DSN         string
	MaxConns    int
	AutoMigrate bool
}

// PubSubConfig names the topics checkout publishes to. Empty topics disable publishing.
type PubSubConfig struct {
	ProjectID         string
	CartEventsTopic   string
	ConfirmationTopic string
}

// CheckoutConfig holds pricing and session policy.
type CheckoutConfig struct {
	Currency           string
	Country            string
	FlatShipping       int64
	TaxPercent         int64
	CardFeePercent     int64
	CityPlaceholders   []string
	RegionPlaceholders []string
	SessionTTL         time.Duration
	SubmitGuardTTL     time.Duration
	Confirmations      bool
}

// BreakerConfig tunes the circuit breakers around the coupon registry and publishers.
type BreakerConfig struct {
	ConsecutiveFailures int
	OpenTimeout         time.Duration
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	names := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		names = append(names, secret.redacted)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(names, ", "))
}

// RedactedNames returns a copy of the redacted secret identifiers.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// Snapshot captures the resolved environment values used during loading so callers can construct
// dependent components (e.g., secret fetcher) with the same inputs.
type Snapshot struct {
	EnvFile         string
	Values          map[string]string
	ResolvedSecrets map[string]string
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers can use the result to initialise
// dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		if source == nil {
			return
		}
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		system := make(map[string]string)
		for _, entry := range os.Environ() {
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			system[key] = parts[1]
		}
		merge(system)
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers should match the config field names recorded by the loader
// (e.g. "Postgres.DSN" or "Redis.Password").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "CHECKOUT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "CHECKOUT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "CHECKOUT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "CHECKOUT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			LogLevel:     stringWithDefault(lookup, "CHECKOUT_LOG_LEVEL", "info"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "CHECKOUT_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "CHECKOUT_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "CHECKOUT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "CHECKOUT_FIRESTORE_EMULATOR_HOST", ""),
		},
		Backends: BackendConfig{
			Catalog:  strings.ToLower(stringWithDefault(lookup, "CHECKOUT_CATALOG_BACKEND", defaultCatalogBackend)),
			Orders:   strings.ToLower(stringWithDefault(lookup, "CHECKOUT_ORDERS_BACKEND", "")),
			Sessions: strings.ToLower(stringWithDefault(lookup, "CHECKOUT_SESSION_BACKEND", defaultSessionBackend)),
			SeedFile: stringWithDefault(lookup, "CHECKOUT_SEED_FILE", ""),
		},
		Redis: RedisConfig{
			Addr:      stringWithDefault(lookup, "CHECKOUT_REDIS_ADDR", defaultRedisAddr),
			Password:  stringWithDefault(lookup, "CHECKOUT_REDIS_PASSWORD", ""),
			DB:        intWithDefault(lookup, "CHECKOUT_REDIS_DB", 0),
			KeyPrefix: stringWithDefault(lookup, "CHECKOUT_REDIS_KEY_PREFIX", defaultRedisKeyPrefix),
		},
		Postgres: PostgresConfig{
			DSN:         stringWithDefault(lookup, "CHECKOUT_POSTGRES_DSN", ""),
			MaxConns:    intWithDefault(lookup, "CHECKOUT_POSTGRES_MAX_CONNS", defaultPostgresMaxConns),
			AutoMigrate: boolWithDefault(lookup, "CHECKOUT_POSTGRES_AUTO_MIGRATE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:         stringWithDefault(lookup, "CHECKOUT_PUBSUB_PROJECT_ID", ""),
			CartEventsTopic:   stringWithDefault(lookup, "CHECKOUT_PUBSUB_CART_EVENTS_TOPIC", defaultCartEventsTopic),
			ConfirmationTopic: stringWithDefault(lookup, "CHECKOUT_PUBSUB_CONFIRMATION_TOPIC", defaultConfirmationTopic),
		},
		Checkout: CheckoutConfig{
			Currency:           strings.ToUpper(stringWithDefault(lookup, "CHECKOUT_CURRENCY", defaultCurrency)),
			Country:            stringWithDefault(lookup, "CHECKOUT_COUNTRY", defaultCountry),
			FlatShipping:       int64(intWithDefault(lookup, "CHECKOUT_FLAT_SHIPPING", defaultFlatShipping)),
			TaxPercent:         int64(intWithDefault(lookup, "CHECKOUT_TAX_PERCENT", defaultTaxPercent)),
			CardFeePercent:     int64(intWithDefault(lookup, "CHECKOUT_CARD_FEE_PERCENT", defaultCardFeePercent)),
			CityPlaceholders:   csvWithDefault(lookup, "CHECKOUT_CITY_PLACEHOLDERS"),
			RegionPlaceholders: csvWithDefault(lookup, "CHECKOUT_REGION_PLACEHOLDERS"),
			SessionTTL:         durationWithDefault(lookup, "CHECKOUT_SESSION_TTL", defaultSessionTTL),
			SubmitGuardTTL:     durationWithDefault(lookup, "CHECKOUT_SUBMIT_GUARD_TTL", defaultSubmitGuardTTL),
			Confirmations:      boolWithDefault(lookup, "CHECKOUT_CONFIRMATIONS_ENABLED", true),
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: intWithDefault(lookup, "CHECKOUT_BREAKER_FAILURES", defaultBreakerFailures),
			OpenTimeout:         durationWithDefault(lookup, "CHECKOUT_BREAKER_OPEN_TIMEOUT", defaultBreakerOpenTimeout),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "CHECKOUT_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:   stringWithDefault(lookup, "CHECKOUT_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  stringWithDefault(lookup, "CHECKOUT_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: mapWithDefault(lookup, "CHECKOUT_SECURITY_OIDC_AUDIENCES"),
				Issuers:   csvWithDefault(lookup, "CHECKOUT_SECURITY_OIDC_ISSUERS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	resolvedSecrets := make(map[string]string)
	recordSecret := func(name, value string) {
		resolvedSecrets[name] = strings.TrimSpace(value)
	}
	resolveField := func(name string, field *string) error {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return err
		}
		*field = resolved
		recordSecret(name, resolved)
		return nil
	}

	// Firestore and Pub/Sub projects default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	// Orders follow the catalog store unless configured separately.
	if cfg.Backends.Orders == "" {
		cfg.Backends.Orders = cfg.Backends.Catalog
	}

	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}

	envKey := strings.ToLower(cfg.Security.Environment)
	if cfg.Security.OIDC.Audience == "" && cfg.Security.OIDC.Audiences != nil {
		if audience, ok := cfg.Security.OIDC.Audiences[envKey]; ok {
			cfg.Security.OIDC.Audience = audience
		}
	}

	// Resolve secrets when values reference Secret Manager.
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Redis.Password", &cfg.Redis.Password},
		{"Postgres.DSN", &cfg.Postgres.DSN},
	}
	for _, target := range secretFields {
		if err := resolveField(target.name, target.field); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" {
		return value, nil
	}
	if !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		normalized := normalizeSecretReference(value)
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	normalized := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}

	usesFirestore := cfg.Backends.Catalog == BackendFirestore || cfg.Backends.Orders == BackendFirestore
	switch cfg.Backends.Catalog {
	case BackendFirestore, BackendPostgres, BackendMemory:
	default:
		missing = append(missing, "Backends.Catalog")
	}
	switch cfg.Backends.Orders {
	case BackendFirestore, BackendPostgres, BackendMemory:
	default:
		missing = append(missing, "Backends.Orders")
	}
	switch cfg.Backends.Sessions {
	case BackendRedis, BackendMemory:
	default:
		missing = append(missing, "Backends.Sessions")
	}
	if usesFirestore && cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if (cfg.Backends.Catalog == BackendPostgres || cfg.Backends.Orders == BackendPostgres) && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		missing = append(missing, "Postgres.DSN")
	}
	if cfg.Backends.Sessions == BackendRedis && strings.TrimSpace(cfg.Redis.Addr) == "" {
		missing = append(missing, "Redis.Addr")
	}
	if cfg.Checkout.FlatShipping <= 0 {
		missing = append(missing, "Checkout.FlatShipping")
	}
	if cfg.Checkout.TaxPercent < 0 || cfg.Checkout.TaxPercent > 100 {
		missing = append(missing, "Checkout.TaxPercent")
	}
	if cfg.Checkout.CardFeePercent < 0 || cfg.Checkout.CardFeePercent > 100 {
		missing = append(missing, "Checkout.CardFeePercent")
	}
	if len(cfg.Checkout.Currency) != 3 {
		missing = append(missing, "Checkout.Currency")
	}
	if cfg.Checkout.SessionTTL <= 0 {
		missing = append(missing, "Checkout.SessionTTL")
	}
	if cfg.Checkout.SubmitGuardTTL <= 0 {
		missing = append(missing, "Checkout.SubmitGuardTTL")
	}
	if cfg.Breaker.ConsecutiveFailures <= 0 {
		missing = append(missing, "Breaker.ConsecutiveFailures")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if _, err := os.Stat(absPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	values, err := godotenv.Read(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		secret := strings.TrimSpace(parts[1])
		if name == "" || secret == "" {
			continue
		}
		values[name] = secret
	}
	return values
}
