package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	"sto-gateway/internal/escrow"
	"sto-gateway/internal/platform/config"
	"sto-gateway/internal/platform/httpserver"
	"sto-gateway/internal/platform/logger"
	"sto-gateway/internal/platform/postgres"
	redisplatform "sto-gateway/internal/platform/redis"
	"sto-gateway/internal/registry"
	registryhandler "sto-gateway/internal/registry/handler"
	registrymetrics "sto-gateway/internal/registry/metrics"
	"sto-gateway/internal/token"
	tokenhandler "sto-gateway/internal/token/handler"
	tokenmetrics "sto-gateway/internal/token/metrics"
	httptransport "sto-gateway/internal/transport/http"
	"sto-gateway/pkg/clock"
	"sto-gateway/pkg/platform/middleware/auth"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("sto-gateway exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	tokenID := uuid.New()
	if cfg.TokenID != "" {
		parsed, err := uuid.Parse(cfg.TokenID)
		if err != nil {
			return fmt.Errorf("parse token id: %w", err)
		}
		tokenID = parsed
	}

	health := make(map[string]httptransport.HealthChecker)

	// Stores default to in-memory; DATABASE_URL switches to PostgreSQL.
	var (
		investors  token.InvestorStore = token.NewInMemoryInvestorStore()
		periods    token.PeriodStore   = token.NewInMemoryPeriodStore()
		state      token.StateStore    = token.NewInMemoryStateStore()
		auditStore audit.Store         = audit.NewInMemoryStore()
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		investors = token.NewPostgresInvestorStore(db)
		periods = token.NewPostgresPeriodStore(db)
		state = token.NewPostgresStateStore(db, tokenID)
		auditStore = audit.NewPostgresStore(db)
		health["postgres"] = dbHealth{db}
		log.Info("postgres persistence enabled")
	}

	identity := registry.NewInMemoryIdentityRegistry()
	identity.Register(domain.Address(cfg.OwnerAddress), domain.EIN(cfg.OwnerEIN))

	buyerSource := registry.NewInMemoryBuyerRegistry()
	var buyers registry.BuyerRegistry = buyerSource

	var revocation auth.TokenRevocationChecker
	rdb, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		buyers = registry.NewCachedBuyerRegistry(buyerSource, rdb.Client, config.BuyerCacheTTL, log, registrymetrics.New())
		revocation = redisplatform.NewRevocationChecker(rdb)
		health["redis"] = rdb
		log.Info("redis cache and revocation checks enabled")
	}

	// Kafka delivery runs on a background worker so broker hiccups never
	// stall token operations; the store write in Emit stays synchronous.
	var (
		auditOpts   []audit.Option
		auditWorker *audit.Worker
	)
	if len(cfg.AuditBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.AuditBrokers, cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("create audit sink: %w", err)
		}
		defer sink.Close()
		queue := make(chan audit.Event, 256)
		auditOpts = append(auditOpts, audit.WithQueue(queue))
		auditWorker = audit.NewWorker(sink, queue, log)
		log.Info("kafka audit delivery enabled", "topic", cfg.AuditTopic)
	}
	auditor := audit.NewPublisher(auditStore, log, auditOpts...)

	svc, err := token.New(token.Config{
		Token: domain.Token{
			ID:       tokenID,
			Symbol:   cfg.TokenSymbol,
			Name:     cfg.TokenName,
			Decimals: 18,
			OwnerEIN: domain.EIN(cfg.OwnerEIN),
		},
		EscrowAddress: domain.Address(cfg.EscrowAddress),
		Investors:     investors,
		Periods:       periods,
		State:         state,
		Identity:      identity,
		Buyers:        buyers,
		Payment:       escrow.NewInMemoryLedger(),
		Auditor:       auditor,
		Metrics:       tokenmetrics.New(),
		Logger:        log,
		Clock:         clock.System{},
	})
	if err != nil {
		return fmt.Errorf("build token service: %w", err)
	}
	if err := svc.Restore(ctx); err != nil {
		return fmt.Errorf("restore token state: %w", err)
	}

	services := registry.NewInMemoryServiceRegistry()
	compliance, err := registry.NewCompliance(buyerSource, services, identity, log)
	if err != nil {
		return fmt.Errorf("build compliance service: %w", err)
	}
	var cacheInvalidator registryhandler.CacheInvalidator
	if cached, ok := buyers.(*registry.CachedBuyerRegistry); ok {
		cacheInvalidator = cached
	}
	registryHandler, err := registryhandler.New(registryhandler.Config{
		TokenID:    tokenID,
		OwnerEIN:   domain.EIN(cfg.OwnerEIN),
		Identity:   identity,
		Buyers:     buyerSource,
		Providers:  services,
		Compliance: compliance,
		Cache:      cacheInvalidator,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("build registry handler: %w", err)
	}

	validator, err := auth.NewValidator([]byte(cfg.JWTSigningKey), cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("build token validator: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Token:      tokenhandler.New(svc, log),
		Registry:   registryHandler,
		Validator:  validator,
		Revocation: revocation,
		Logger:     log,
		Health:     health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	if auditWorker != nil {
		g.Go(func() error {
			return auditWorker.Run(ctx)
		})
	}
	g.Go(func() error {
		log.Info("starting sto-gateway", "addr", cfg.Addr, "token_id", tokenID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("sto-gateway stopped")
	return nil
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
