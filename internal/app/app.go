// Package app wires the commerce resolution engine from configuration. It
// is the single construction point embedders and the repo's commands use.
package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/karolberezicki/Foundation/internal/commerce"
	"github.com/karolberezicki/Foundation/internal/domain/pricing"
	"github.com/karolberezicki/Foundation/internal/storage/postgres"
	"github.com/karolberezicki/Foundation/internal/storage/redis"
	"github.com/karolberezicki/Foundation/pkg/health"
)

// App bundles the engine with the connections it owns.
type App struct {
	Engine *commerce.Engine
	Health *health.Health

	pool *pgxpool.Pool
	rdb  *goredis.Client
}

// New builds the engine and its storage collaborators from configuration.
// Telemetry may be nil, in which case the global tracer provider is used.
func New(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) (*App, error) {
	lg.Info("Initializing",
		zap.String("redis", cfg.Redis.Addr),
		zap.String("current_market", cfg.CurrentMarket),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connect redis")
	}

	content := postgres.NewContentRepository(pool)
	store := redis.New(rdb)

	deps := commerce.Dependencies{
		Loader:    content,
		Refs:      content,
		Relations: content,
		Prices:    postgres.NewPriceRepository(pool),
		Markets:   postgres.NewMarketRepository(pool, pricing.MarketID(cfg.CurrentMarket)),
		Inventory: postgres.NewInventoryRepository(pool),
		Store:     store,
		Logger:    lg,
	}
	if m != nil {
		deps.TracerProvider = m.TracerProvider()
	}

	h := health.New()
	h.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	h.AddReadinessCheck("postgres", 2*time.Second, pool.Ping)
	h.AddReadinessCheck("redis", 2*time.Second, store.Ping)
	h.Start(ctx, 15*time.Second)
	h.SetReady(true)

	return &App{
		Engine: commerce.New(deps),
		Health: h,
		pool:   pool,
		rdb:    rdb,
	}, nil
}

// Close releases the connections the App owns.
func (a *App) Close() error {
	a.Health.SetReady(false)
	a.Health.Stop()
	a.pool.Close()
	return a.rdb.Close()
}
