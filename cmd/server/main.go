package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	httpapi "offsetledger/internal/http"
	"offsetledger/internal/idempotency"
	jwttoken "offsetledger/internal/jwt_token"
	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/handler"
	ledgermetrics "offsetledger/internal/ledger/metrics"
	"offsetledger/internal/ledger/service"
	"offsetledger/internal/ledger/store"
	"offsetledger/internal/ledger/store/memory"
	pgstore "offsetledger/internal/ledger/store/postgres"
	"offsetledger/internal/outbox"
	"offsetledger/internal/platform/config"
	"offsetledger/internal/platform/httpserver"
	"offsetledger/internal/platform/kafka/producer"
	"offsetledger/internal/platform/logger"
	"offsetledger/internal/platform/metrics"
	"offsetledger/internal/platform/postgres"
	"offsetledger/internal/platform/redis"
	"offsetledger/internal/ratelimit"
	id "offsetledger/pkg/domain"
	"offsetledger/pkg/platform/circuit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "offsetledger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httpapi.HealthCheck{}

	ledger, source, closeLedger, err := openLedger(ctx, cfg.Database, log, health)
	if err != nil {
		return err
	}
	defer closeLedger()

	authority, err := credential.Bootstrap(id.PrincipalID(cfg.Auth.MintHolder), []byte(cfg.Auth.MintCredentialHash))
	if err != nil {
		return fmt.Errorf("mint credential: %w", err)
	}
	if cfg.Auth.MintCredentialHash == "" {
		log.Warn("MINT_CREDENTIAL_HASH not set, remote minting and funding are disabled")
	}

	svc := service.New(ledger, authority,
		service.WithLogger(log),
		service.WithMetrics(ledgermetrics.New(prometheus.DefaultRegisterer)),
	)
	if _, err := svc.ActiveListings(ctx); err != nil {
		return fmt.Errorf("load active listings: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = redisClient.Health
	}
	writeGuards := writeMiddleware(cfg, redisClient, log)

	publisher, err := openPublisher(ctx, cfg.Kafka, log, health)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("close publisher", "error", err)
		}
	}()

	relay := outbox.NewRelay(source, publisher, log,
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
	)
	purger, err := outbox.NewPurgeScheduler(relay, cfg.Outbox.PurgeSchedule, cfg.Outbox.Retention, log)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	ledgerHandler := handler.New(svc, authority, jwttoken.NewJWTServiceAdapter(jwtService), log,
		handler.WithWriteMiddleware(writeGuards...),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Server:          cfg.Server,
		Logger:          log,
		Metrics:         metrics.New(prometheus.DefaultRegisterer),
		Gatherer:        prometheus.DefaultGatherer,
		AdminToken:      cfg.Auth.AdminToken,
		Outbox:          relay,
		OutboxRetention: cfg.Outbox.Retention,
		Health:          health,
		APIs:            []httpapi.Registrar{ledgerHandler},
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting offsetledger", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return purger.Run(gctx) })

	err = g.Wait()
	log.Info("offsetledger stopped")
	return err
}

func openLedger(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger, health map[string]httpapi.HealthCheck) (store.Ledger, outbox.Source, func(), error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, ledger state is kept in memory")
		l := memory.New(memory.WithTxTimeout(cfg.TxTimeout))
		return l, l, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	l := pgstore.New(db, pgstore.WithTxTimeout(cfg.TxTimeout))
	if cfg.AutoMigrate {
		if err := l.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	health["database"] = db.PingContext
	return l, pgstore.NewOutboxSource(db), func() { _ = db.Close() }, nil
}

// writeMiddleware builds the guards in front of every ledger write: the rate
// limiter, then idempotent replay. With Redis configured both share state
// across instances and fall back to process memory while Redis is failing.
func writeMiddleware(cfg config.Config, client *redis.Client, log *slog.Logger) []func(http.Handler) http.Handler {
	var guards []func(http.Handler) http.Handler

	localIdem := idempotency.NewMemoryStore(cfg.Idempotency.MaxItems, cfg.Idempotency.TTL)
	var idemStore idempotency.Store = localIdem
	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	var limiterOpts []ratelimit.Option
	if client != nil {
		idemStore = idempotency.NewFallbackStore(
			idempotency.NewRedisStore(client, cfg.Idempotency.TTL),
			localIdem,
			circuit.New("idempotency-redis"),
			log,
		)
		limiterOpts = append(limiterOpts, ratelimit.WithFallback(limiterStore, circuit.New("ratelimit-redis")))
		limiterStore = ratelimit.NewRedisStore(client)
	}

	if cfg.RateLimit.WriteRequests > 0 {
		limit := ratelimit.Limit{Requests: cfg.RateLimit.WriteRequests, Window: cfg.RateLimit.Window}
		guards = append(guards, ratelimit.New(limiterStore, limit, log, limiterOpts...).Handler)
	}
	return append(guards, idempotency.New(idemStore, log).Handler)
}

func openPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, health map[string]httpapi.HealthCheck) (outbox.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, ledger events are written to the log")
		return outbox.NewLogPublisher(log), nil
	}
	p, err := producer.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := p.EnsureTopic(ctx, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		_ = p.Close()
		return nil, err
	}
	health["kafka"] = p.Ping
	return p, nil
}
