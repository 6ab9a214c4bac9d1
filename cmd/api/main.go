package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/renewcycle/materials-exchange-backend/internal/api/rest"
	ws "github.com/renewcycle/materials-exchange-backend/internal/api/websocket"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/cache"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/config"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/locks"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/notification"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/repository"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/scheduler"
	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/telemetry"
	"github.com/renewcycle/materials-exchange-backend/internal/metrics"
	"github.com/renewcycle/materials-exchange-backend/internal/service/bidding"
	"github.com/renewcycle/materials-exchange-backend/internal/service/engine"
	"github.com/renewcycle/materials-exchange-backend/internal/service/lifecycle"
	"github.com/renewcycle/materials-exchange-backend/internal/service/moderation"
	"github.com/renewcycle/materials-exchange-backend/internal/service/settlement"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracing, err := telemetry.InitTracing(ctx, "materials-exchange", cfg.Version, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// Storage: Postgres when a URL is configured, in-memory otherwise.
	var (
		auctionRepo interface {
			bidding.AuctionRepository
			engine.AuctionRepository
			lifecycle.AuctionRepository
		}
		bidRepo    bidding.BidRepository
		windowRepo settlement.WindowRepository
		catalog    engine.ListingCatalog
	)
	if cfg.Database.URL != "" {
		db, err := repository.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		auctionRepo = repository.NewAuctionRepository(db)
		bidRepo = repository.NewBidRepository(db)
		windowRepo = repository.NewTokenWindowRepository(db)
		catalog = repository.NewListingCatalog(db)
		logger.Info("using postgres storage")
	} else {
		store := repository.NewMemoryStore()
		auctionRepo = store.Auctions()
		bidRepo = store.Bids()
		windowRepo = store.Windows()
		catalog = repository.NewMemoryCatalog()
		logger.Warn("no database configured, using in-memory storage")
	}

	var snapshotCache engine.SnapshotCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		snapshotCache = cache.New(client, cfg.Redis.TTL, logger)
		logger.Info("snapshot cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	collector := metrics.NewCollector()
	dispatcher := notification.NewAsyncDispatcher(
		notification.NewLogSink(logger), logger, cfg.Bidding.NotificationQueueSize)
	defer dispatcher.Close()

	auctionLocks := locks.NewKeyedMutex()
	clock := clockwork.NewRealClock()
	hub := ws.NewHub(logger)

	ledger := bidding.NewLedger(auctionRepo, bidRepo, auctionLocks, dispatcher, collector, hub, clock, logger, bidding.Config{
		MinIncrementBps: cfg.Bidding.MinIncrementBps,
		BidRateLimit:    rate.Limit(cfg.Bidding.BidRatePerSecond),
		BidRateBurst:    cfg.Bidding.BidRateBurst,
	})
	enforcer := settlement.NewEnforcer(auctionRepo, windowRepo, auctionLocks, dispatcher, collector, clock, logger, settlement.Config{
		GracePeriod:  cfg.Bidding.TokenGracePeriod,
		ReminderLead: cfg.Bidding.TokenReminderLead,
	})
	lc := lifecycle.NewService(auctionRepo, auctionLocks, dispatcher, collector, enforcer, clock, logger)
	gate := moderation.NewGate(auctionRepo, auctionLocks, dispatcher, clock, logger, cfg.Bidding.DefaultDuration)

	eng := engine.New(auctionRepo, bidRepo, catalog, snapshotCache, ledger, lc, gate, enforcer, clock, logger)

	sweeper := scheduler.NewSweeper(clock, logger, cfg.Bidding.SweepInterval, func(ctx context.Context) {
		start := clock.Now()
		eng.SweepDueAuctions(ctx)
		collector.RecordSweepDuration(clock.Now().Sub(start))
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	mux := http.NewServeMux()
	rest.NewHandler(eng, logger).Routes(mux)
	mux.Handle("GET /ws/auctions", hub)
	mux.Handle("GET /metrics", collector.Handler())

	server := rest.NewServer(cfg.Server, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
