// Command server runs the flaZK verification gateway. main wires the
// dependency graph from environment configuration and keeps the server
// lifecycle small; business logic lives in the internal service packages.
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

	"github.com/bamarler/flaZK/internal/audit"
	"github.com/bamarler/flaZK/internal/client"
	"github.com/bamarler/flaZK/internal/device"
	"github.com/bamarler/flaZK/internal/documents"
	documentshandler "github.com/bamarler/flaZK/internal/documents/handler"
	"github.com/bamarler/flaZK/internal/identity"
	identityhandler "github.com/bamarler/flaZK/internal/identity/handler"
	"github.com/bamarler/flaZK/internal/platform/config"
	"github.com/bamarler/flaZK/internal/platform/database"
	"github.com/bamarler/flaZK/internal/platform/health"
	"github.com/bamarler/flaZK/internal/platform/kafka/producer"
	"github.com/bamarler/flaZK/internal/platform/logger"
	platformredis "github.com/bamarler/flaZK/internal/platform/redis"
	"github.com/bamarler/flaZK/internal/platform/tracer"
	"github.com/bamarler/flaZK/internal/proof"
	proofhandler "github.com/bamarler/flaZK/internal/proof/handler"
	"github.com/bamarler/flaZK/internal/token"
	httptransport "github.com/bamarler/flaZK/internal/transport/http"
	verificationhandler "github.com/bamarler/flaZK/internal/verification/handler"
	"github.com/bamarler/flaZK/internal/verification/metrics"
	verificationservice "github.com/bamarler/flaZK/internal/verification/service"
	verificationstore "github.com/bamarler/flaZK/internal/verification/store"
	"github.com/bamarler/flaZK/internal/verification/workers/cleanup"
	id "github.com/bamarler/flaZK/pkg/domain"
)

const auditTopic = "flazk.audit"

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing flazk gateway",
		"addr", cfg.Addr,
		"widget_url", cfg.WidgetBaseURL,
		"collaborators", string(cfg.Collaborators),
	)

	healthHandler := health.New(envOr("FLAZK_ENV", "development"))

	sessionStore, closeStore, err := buildSessionStore(cfg, healthHandler)
	if err != nil {
		log.Error("session store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	auditor, closeAudit, err := buildAuditor(cfg, log)
	if err != nil {
		log.Error("audit init failed", "error", err)
		os.Exit(1)
	}
	defer closeAudit()

	clients := client.NewInMemoryStore()
	if cfg.SeedAPIKey != "" {
		err := client.Seed(context.Background(), clients,
			id.ClientID(cfg.SeedClientID), cfg.SeedClientName, cfg.SeedAPIKey)
		if err != nil {
			log.Error("client seed failed", "error", err)
			os.Exit(1)
		}
		log.Info("seeded development client", "client_id", cfg.SeedClientID)
	}

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)
	verificationMetrics := metrics.New()
	trc := tracer.NewOTel()

	verificationSvc := verificationservice.NewService(
		sessionStore, auditor, log, cfg.WidgetBaseURL,
		verificationservice.WithMetrics(verificationMetrics),
		verificationservice.WithTracer(trc),
		verificationservice.WithDevice(device.NewService(true)),
		verificationservice.WithSessionTTL(cfg.SessionTTL),
	)

	codeStore := identity.NewInMemoryCodeStore()
	identitySvc := identity.NewService(
		codeStore,
		identity.NewInMemoryUserStore(),
		identity.NewLogSender(log),
		tokens, log,
		identity.WithAuditor(auditor),
	)

	if cfg.Collaborators == config.ModeReal {
		// TODO(collab): wire the OCR pipeline and proof backend once they ship
		log.Warn("real collaborators not available yet, using mock implementations")
	}
	docStore := documents.NewInMemoryStore()
	scanner := documents.NewMockScanner(docStore)
	generator := proof.NewMockGenerator()

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Verification: verificationhandler.New(verificationSvc, log),
		Documents:    documentshandler.New(scanner, docStore, log),
		Identity:     identityhandler.New(identitySvc, log),
		Proof: proofhandler.New(generator, log,
			proofhandler.WithMetrics(verificationMetrics),
			proofhandler.WithTracer(trc),
		),
		Health:         healthHandler,
		ClientResolver: client.NewResolver(clients, 5*time.Minute),
		TokenValidator: tokens,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor, err := cleanup.New(verificationSvc,
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithLogger(log),
		cleanup.WithCodeStore(codeStore),
	)
	if err != nil {
		log.Error("cleanup worker init failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := janitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("cleanup worker stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// buildSessionStore picks the session backend from configuration. Redis wins
// over Postgres when both are configured since it carries native TTL expiry.
func buildSessionStore(cfg config.Server, h *health.Handler) (verificationservice.Store, func(), error) {
	if cfg.RedisURL != "" {
		rc, err := platformredis.New(config.RedisFromEnv())
		if err != nil {
			return nil, nil, err
		}
		h.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rc.Health(ctx)
		})
		return verificationstore.NewRedis(rc.Client), func() { _ = rc.Close() }, nil
	}

	if cfg.PostgresURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.PostgresURL
		pool, err := database.New(dbCfg)
		if err != nil {
			return nil, nil, err
		}
		h.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
		return verificationstore.NewPostgres(pool.DB()), func() { _ = pool.Close() }, nil
	}

	return verificationstore.NewInMemory(), func() {}, nil
}

// buildAuditor publishes audit events to Kafka when brokers are configured,
// otherwise to an in-process store so the trail still exists in development.
func buildAuditor(cfg config.Server, log *slog.Logger) (*audit.Publisher, func(), error) {
	if cfg.KafkaBrokers == "" {
		publisher := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithPublisherLogger(log))
		return publisher, func() { publisher.Close() }, nil
	}

	kafkaProducer, err := producer.New(producer.Config{
		Brokers:         cfg.KafkaBrokers,
		Acks:            "all",
		Retries:         5,
		DeliveryTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	publisher := audit.NewPublisher(
		audit.NewKafkaStore(kafkaProducer, auditTopic),
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	return publisher, func() {
		publisher.Close()
		kafkaProducer.Close()
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
