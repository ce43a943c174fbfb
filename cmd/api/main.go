package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/commerce"
	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	} else {
		logg.Warn(ctx, "redis not configured; using in-process caches and skipping idempotency")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gateway, err := commerce.NewClient(commerce.ClientParams{
		Config:  cfg.Commerce,
		Logger:  logg,
		Metrics: metrics.NewGatewayMetrics(reg),
	})
	if err != nil {
		return err
	}

	ids, err := identity.NewCookieStore(identity.CookieParams{
		Name:   cfg.Cart.CookieName,
		Secure: cfg.App.IsProd(),
		Secret: cfg.Cart.IdentitySecret,
		Logger: logg,
	})
	if err != nil {
		return err
	}

	var (
		snapshots cart.Cache          = cart.NewMemoryCache(cfg.Cart.SnapshotCacheTTL)
		drafts    checkout.DraftStore = checkout.NewMemoryDraftStore()
	)
	if redisClient != nil {
		if snapshots, err = cart.NewRedisCache(redisClient, cfg.Cart.SnapshotCacheTTL); err != nil {
			return err
		}
		if drafts, err = checkout.NewRedisDraftStore(redisClient, cfg.Checkout.DraftTTL); err != nil {
			return err
		}
	}

	engine, err := cart.NewEngine(cart.EngineParams{
		Gateway:         gateway,
		Identity:        ids,
		Cache:           snapshots,
		Logger:          logg,
		Metrics:         metrics.NewCartMetrics(reg),
		IdentityTTLDays: cfg.Cart.IdentityTTLDays,
		StaleTime:       cfg.Cart.StaleTime,
		RefetchInterval: cfg.Cart.RefetchInterval,
		SessionIdleTTL:  cfg.Cart.SessionIdleTTL,
	})
	if err != nil {
		return err
	}

	receiptsRepo, err := orders.NewRepository(dbClient)
	if err != nil {
		return err
	}
	receipts, err := orders.NewService(receiptsRepo, logg)
	if err != nil {
		return err
	}

	orchestrator, err := checkout.NewOrchestrator(checkout.Params{
		Engine:           engine,
		Gateway:          gateway,
		Drafts:           drafts,
		Receipts:         receipts,
		Logger:           logg,
		CurrencyID:       gateway.CurrencyID(),
		ConfirmationPath: cfg.Checkout.ConfirmationPath,
	})
	if err != nil {
		return err
	}

	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Identity: ids,
		Engine:   engine,
		Commerce: gateway,
		Checkout: orchestrator,
		Orders:   receipts,
		Gatherer: reg,
		Ready:    map[string]controllers.Pinger{"db": dbClient},
	}
	// left nil without redis so the middleware sees a nil interface
	if redisClient != nil {
		deps.Idempotency = redisClient
		deps.RateLimiter = redisClient
		deps.Ready["redis"] = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := engine.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
