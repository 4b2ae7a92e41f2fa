package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/biccshop/checkout/internal/platform/config"
	pfirestore "github.com/biccshop/checkout/internal/platform/firestore"
	"github.com/biccshop/checkout/internal/platform/idempotency"
	"github.com/biccshop/checkout/internal/platform/secrets"
	"github.com/biccshop/checkout/internal/repositories"
	firestoreRepo "github.com/biccshop/checkout/internal/repositories/firestore"
	"github.com/biccshop/checkout/internal/repositories/memory"
	"github.com/biccshop/checkout/internal/repositories/postgres"
	redisRepo "github.com/biccshop/checkout/internal/repositories/redis"
)

// backends holds the clients opened for the configured stores. Unused clients stay nil.
type backends struct {
	registry  repositories.Registry
	firestore *pfirestore.Provider
	redis     goredis.UniversalClient
	postgres  *pgxpool.Pool
}

func openBackends(ctx context.Context, logger *zap.Logger, cfg config.Config, fetcher *secrets.Fetcher) (*backends, error) {
	b := &backends{}
	var parts repositories.RegistryParts
	var checks []repositories.DependencyCheck
	fail := func(err error) (*backends, error) {
		for i := len(parts.Closers) - 1; i >= 0; i-- {
			_ = parts.Closers[i](context.Background())
		}
		return nil, err
	}

	catalog, orders, sessions := cfg.Backends.Catalog, cfg.Backends.Orders, cfg.Backends.Sessions
	// The SQL schema has no cart table; carts stay with the cart service in Firestore.
	needsFirestore := catalog == config.BackendFirestore || catalog == config.BackendPostgres || orders == config.BackendFirestore
	needsPostgres := catalog == config.BackendPostgres || orders == config.BackendPostgres
	needsMemory := catalog == config.BackendMemory || orders == config.BackendMemory || sessions == config.BackendMemory

	if needsFirestore {
		b.firestore = pfirestore.NewProvider(cfg.Firestore)
		parts.Closers = append(parts.Closers, b.firestore.Close)
		if _, err := b.firestore.Client(ctx); err != nil {
			return fail(fmt.Errorf("firestore client: %w", err))
		}
		checks = append(checks, b.firestore.HealthCheck())
	}

	if needsPostgres {
		pool, err := postgres.Open(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: int32(cfg.Postgres.MaxConns),
		})
		if err != nil {
			return fail(err)
		}
		b.postgres = pool
		parts.Closers = append(parts.Closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				return fail(err)
			}
			logger.Info("postgres schema applied")
		}
		checks = append(checks, repositories.DependencyCheck{
			Name:     "postgres",
			Timeout:  time.Second,
			Critical: true,
			Check:    pool.Ping,
		})
	}

	if sessions == config.BackendRedis {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.redis = client
		parts.Closers = append(parts.Closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("redis ping: %w", err))
		}
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Timeout:  500 * time.Millisecond,
			Critical: true,
			Check:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}

	var stores memory.Stores
	if needsMemory {
		seed, err := loadSeed(cfg.Backends.SeedFile)
		if err != nil {
			return fail(err)
		}
		stores = memory.NewStores(seed)
		logger.Info("memory stores seeded",
			zap.String("seedFile", cfg.Backends.SeedFile),
			zap.Int("coupons", len(seed.Coupons)),
			zap.Int("collectionPoints", len(seed.CollectionPoints)),
			zap.Int("carts", len(seed.Carts)),
		)
	}

	var err error
	switch catalog {
	case config.BackendFirestore:
		if parts.Coupons, err = firestoreRepo.NewCouponRepository(b.firestore); err != nil {
			return fail(err)
		}
		if parts.CollectionPoints, err = firestoreRepo.NewCollectionPointRepository(b.firestore); err != nil {
			return fail(err)
		}
	case config.BackendPostgres:
		if parts.Coupons, err = postgres.NewCouponRepository(b.postgres); err != nil {
			return fail(err)
		}
		if parts.CollectionPoints, err = postgres.NewCollectionPointRepository(b.postgres); err != nil {
			return fail(err)
		}
	default:
		parts.Coupons = stores.Coupons
		parts.CollectionPoints = stores.CollectionPoints
	}
	if b.firestore != nil && catalog != config.BackendMemory {
		if parts.Carts, err = firestoreRepo.NewCartRepository(b.firestore); err != nil {
			return fail(err)
		}
	} else {
		parts.Carts = stores.Carts
	}

	switch orders {
	case config.BackendFirestore:
		if parts.Orders, err = firestoreRepo.NewOrderRepository(b.firestore); err != nil {
			return fail(err)
		}
	case config.BackendPostgres:
		if parts.Orders, err = postgres.NewOrderRepository(b.postgres); err != nil {
			return fail(err)
		}
	default:
		parts.Orders = stores.Orders
	}

	if b.redis != nil {
		repo, err := redisRepo.NewSessionRepository(b.redis, redisRepo.Options{KeyPrefix: cfg.Redis.KeyPrefix})
		if err != nil {
			return fail(err)
		}
		parts.CheckoutSessions = repo
	} else {
		parts.CheckoutSessions = stores.Sessions
	}

	if fetcher != nil {
		checks = append(checks, secretManagerCheck(fetcher))
	}
	if len(checks) == 0 {
		checks = append(checks, repositories.DependencyCheck{
			Name:  "memory",
			Check: func(context.Context) error { return nil },
		})
	}
	if parts.Health, err = repositories.NewDependencyHealthRepository(checks); err != nil {
		return fail(err)
	}

	if b.registry, err = repositories.NewRegistry(parts); err != nil {
		return fail(err)
	}
	return b, nil
}

// idempotencyStore keeps submit replays next to the session store so both share a lifetime.
func (b *backends) idempotencyStore(cfg config.Config) (idempotency.Store, error) {
	switch {
	case b.redis != nil:
		return idempotency.NewRedisStore(b.redis, strings.TrimSuffix(cfg.Redis.KeyPrefix, ":")+":idempotency"), nil
	case b.firestore != nil:
		store, err := idempotency.NewFirestoreStore(b.firestore, "")
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func loadSeed(path string) (memory.Seed, error) {
	if strings.TrimSpace(path) == "" {
		return memory.Seed{}, nil
	}
	return memory.LoadSeedFile(path)
}

func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const secretHealthReference = "secret://system/healthz?version=latest"
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, secretHealthReference)
			if err == nil {
				return nil
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}
