package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hackgods/booking-engine/internal/api"
	"github.com/hackgods/booking-engine/internal/appointment"
	"github.com/hackgods/booking-engine/internal/availability"
	"github.com/hackgods/booking-engine/internal/catalog"
	"github.com/hackgods/booking-engine/internal/clock"
	"github.com/hackgods/booking-engine/internal/config"
	"github.com/hackgods/booking-engine/internal/db"
	"github.com/hackgods/booking-engine/internal/logging"
	"github.com/hackgods/booking-engine/internal/metrics"
	redisclient "github.com/hackgods/booking-engine/internal/redis"
	"github.com/hackgods/booking-engine/internal/reputation"
)

var version = "dev"

type stores struct {
	appointments appointment.Repository
	availability availability.Repository
	reputation   reputation.Repository
	catalog      catalog.Catalog
	pinger       api.Pinger
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("lock_driver", cfg.LockDriver),
		zap.String("timezone", cfg.Timezone))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewRealClock()
	tokens := api.NewTokenService(cfg.JWTSecret)

	st, err := openStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("store init error", zap.Error(err))
	}
	defer st.close()

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.LockDriver == config.LockDriverRedis {
		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err = redisclient.Connect(redisCtx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		cancelRedis()
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = redisclient.NewLocalLocker(cfg.LockWait)
	}

	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	engine := reputation.NewEngine(st.reputation, clk, logger.Named("reputation"), m)
	availSvc := availability.NewService(st.availability, locker, clk, cfg.Location, logger.Named("availability"))
	apptSvc := appointment.NewService(st.appointments, st.catalog, availSvc, engine, locker, clk,
		logger.Named("appointment"), m, appointment.Options{
			EnforceAvailability: cfg.EnforceAvailability,
			BlockSuspended:      cfg.BlockSuspended,
			Location:            cfg.Location,
		})

	if mem, ok := st.catalog.(*catalog.MemoryCatalog); ok {
		seedDemoCatalog(mem, tokens, cfg.Env, logger)
	}

	handler := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Availability: availSvc,
		Reputation:   engine,
		Tokens:       tokens,
		PgPool:       st.pinger,
		Redis:        rdb,
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       logger.Named("http"),
		Env:          cfg.Env,
		Version:      version,
		CORSOrigins:  cfg.CORSOrigins,
		BookingRate:  rate.Limit(cfg.RateLimitRPS),
		BookingBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return &stores{
			appointments: appointment.NewMemoryRepository(),
			availability: availability.NewMemoryRepository(),
			reputation:   reputation.NewMemoryRepository(),
			catalog:      catalog.NewMemoryCatalog(),
			close:        func() {},
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return nil, err
	}
	logger.Info("connected to Postgres")

	txm := db.NewTxManager(pool, logger.Named("tx"))
	return &stores{
		appointments: appointment.NewPgRepository(pool, txm),
		availability: availability.NewPgRepository(pool, txm),
		reputation:   reputation.NewPgRepository(pool, txm),
		catalog:      catalog.NewPgCatalog(pool),
		pinger:       pool,
		close:        pool.Close,
	}, nil
}
