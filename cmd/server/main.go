package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"obligo/internal/alert"
	alerthandler "obligo/internal/alert/handler"
	"obligo/internal/audit"
	audithandler "obligo/internal/audit/handler"
	"obligo/internal/audit/publisher"
	defhandler "obligo/internal/definition/handler"
	defservice "obligo/internal/definition/service"
	defstore "obligo/internal/definition/store"
	jwttoken "obligo/internal/jwt_token"
	occhandler "obligo/internal/occurrence/handler"
	occservice "obligo/internal/occurrence/service"
	occstore "obligo/internal/occurrence/store"
	"obligo/internal/platform/config"
	"obligo/internal/platform/httpserver"
	"obligo/internal/platform/logger"
	"obligo/internal/platform/metrics"
	"obligo/internal/platform/postgres"
	redisplatform "obligo/internal/platform/redis"
	"obligo/internal/server"
)

// main wires the engine together: Postgres-backed stores, the optional Redis
// alert suppression store, the audit outbox worker, and the HTTP surface.
// Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.ApplySchema(ctx, pool); err != nil {
		return err
	}
	db, err := postgres.NewSQL(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	auditMetrics := audit.NewMetrics()

	trail := audit.NewService(audit.NewPostgresStore(db), log, audit.WithMetrics(auditMetrics))
	definitions := defservice.NewService(defstore.NewPostgresStore(pool), trail)
	occStore := occstore.NewPostgresStore(pool)
	occurrences := occservice.NewService(occStore, definitions, trail, m)

	healthChecks := map[string]server.HealthCheck{
		"postgres": pool.Ping,
	}

	var alertStore alert.Store = alert.NewInMemoryStore()
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		alertStore = alert.NewRedisStore(redisClient.Client)
		healthChecks["redis"] = redisClient.Health
		log.Info("alert suppression store using redis")
	} else {
		log.Warn("redis not configured, alert suppression state is in-memory only")
	}
	alerts := alert.NewService(occStore, alertStore, trail, log, m)

	validator := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, "obligo-identity", "obligo")

	router := server.NewRouter(server.RouterConfig{
		Logger:         log,
		Metrics:        m,
		Validator:      validator,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   healthChecks,
		Handlers: []server.Registrar{
			defhandler.New(definitions, log),
			occhandler.New(occurrences, log),
			alerthandler.New(alerts, log),
			audithandler.New(trail, log),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		if err := publisher.EnsureTopic(ctx, kafkaClient, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions); err != nil {
			return err
		}
		worker := publisher.NewWorker(db, kafkaClient, cfg.Kafka.AuditTopic, log,
			publisher.WithMetrics(auditMetrics))
		group.Go(func() error {
			log.Info("starting audit outbox worker", "topic", cfg.Kafka.AuditTopic)
			return worker.Run(ctx)
		})
	} else {
		log.Warn("kafka not configured, audit events stay in postgres only")
	}

	group.Go(func() error {
		log.Info("starting obligo server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
