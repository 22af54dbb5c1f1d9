// Package main is the entry point for the loan assistant API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/loan-assistant/internal/config"
	"github.com/capitalize-ai/loan-assistant/internal/handler"
	"github.com/capitalize-ai/loan-assistant/internal/kafka"
	"github.com/capitalize-ai/loan-assistant/internal/kyc"
	"github.com/capitalize-ai/loan-assistant/internal/llm"
	"github.com/capitalize-ai/loan-assistant/internal/middleware"
	natsclient "github.com/capitalize-ai/loan-assistant/internal/nats"
	"github.com/capitalize-ai/loan-assistant/internal/policy"
	"github.com/capitalize-ai/loan-assistant/internal/service"
	"github.com/capitalize-ai/loan-assistant/internal/underwriting"
	"github.com/capitalize-ai/loan-assistant/pkg/logger"
	"github.com/capitalize-ai/loan-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewForEnv(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server", zap.String("env", cfg.Env), zap.String("event_bus", cfg.EventBus))

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, tracing.Config{
			ServiceName: "loan-assistant",
			Environment: cfg.Env,
			Endpoint:    cfg.TracingEndpoint,
			Insecure:    cfg.TracingInsecure,
		})
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	// Collaborators
	registry, err := kyc.LoadRegistry(cfg.KYCDataFile)
	if err != nil {
		return fmt.Errorf("load kyc registry: %w", err)
	}
	bureau, err := underwriting.LoadStaticBureau(cfg.CreditScoresFile, cfg.OffersFile, cfg.DefaultCreditScore, cfg.DefaultLimit)
	if err != nil {
		return fmt.Errorf("load bureau data: %w", err)
	}
	engine := underwriting.NewEngine(bureau, underwriting.Terms{
		AnnualRatePercent:  cfg.InterestRate,
		TenureMonths:       cfg.TenureMonths,
		MinCreditScore:     cfg.MinCreditScore,
		MaxEMIRatio:        cfg.MaxEMIRatio,
		DefaultCreditScore: cfg.DefaultCreditScore,
		DefaultLimit:       cfg.DefaultLimit,
	})
	log.Info("collaborator data loaded", zap.Int("kyc_records", registry.Len()))

	interpreter := llm.NewInterpreter(newLLMClient(cfg, log), cfg.OutboundTimeout, log)
	log.Info("interpreter selected", zap.String("mode", interpreter.Mode()))

	// Event bus
	var (
		publisher service.EventPublisher = service.NopPublisher{}
		snapshots service.Snapshotter
		busStatus handler.BusStatus
		natsConn  *natsclient.Client
		streams   *natsclient.StreamManager
	)
	switch cfg.EventBus {
	case config.EventBusNATS:
		natsConn, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer natsConn.Close()

		streams = natsclient.NewStreamManager(natsConn)
		if err := streams.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		store, err := natsclient.NewSnapshotStore(ctx, natsConn, cfg.SnapshotTTL)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		publisher = natsclient.NewPublisher(natsConn)
		snapshots = store
		busStatus = natsConn
	case config.EventBusKafka:
		kp := kafka.NewPublisher(kafka.Config{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		defer func() { _ = kp.Close() }()
		publisher = kp
	case config.EventBusNone:
	default:
		return fmt.Errorf("unknown event bus %q", cfg.EventBus)
	}

	controller := service.NewController(service.Options{
		Store:       service.NewStore(snapshots, log),
		Interpreter: interpreter,
		Policy: policy.Policy{
			MinAge:    cfg.MinAge,
			MaxAge:    cfg.MaxAge,
			MinAmount: cfg.MinLoanAmount,
			MaxAmount: cfg.MaxLoanAmount,
		},
		Verifier:    registry,
		Underwriter: engine,
		Publisher:   publisher,
		Timeout:     cfg.OutboundTimeout,
		Logger:      log,
	})

	if natsConn != nil {
		consumer := natsclient.NewDocumentConsumer(natsConn, controller, log)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start document consumer: %w", err)
		}
		defer consumer.Stop()
		go recordStreamStats(ctx, streams, log)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(cfg, log, controller, busStatus, publisher.Name()),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func newRouter(cfg *config.Config, log *logger.Logger, controller *service.Controller, bus handler.BusStatus, busName string) http.Handler {
	healthHandler := handler.NewHealthHandler(bus, busName, controller.InterpreterMode())
	chatHandler := handler.NewChatHandler(controller, log)
	conversationHandler := handler.NewConversationHandler(controller, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/chat", chatHandler.Chat)
		r.Get("/stats", conversationHandler.Stats)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Get("/messages", conversationHandler.Messages)
				r.Post("/documents", conversationHandler.Documents)
				r.With(sanctionGuard(cfg.AuthEnabled)).Post("/sanction", conversationHandler.Sanction)
			})
		})
	})

	return r
}

// sanctionGuard requires the sanction scope when tokens are being checked.
func sanctionGuard(authEnabled bool) func(http.Handler) http.Handler {
	if !authEnabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireScope(middleware.ScopeSanction)
}

// newLLMClient returns nil when no key is configured, which selects the
// rule interpreter.
func newLLMClient(cfg *config.Config, log *logger.Logger) llm.Client {
	key := cfg.LLMAPIKey()
	if key == "" {
		return nil
	}
	client, err := llm.NewClient(llm.Provider(cfg.DefaultLLM), key, cfg.LLMModel)
	if err != nil {
		log.Warn("failed to create LLM client, using rules", zap.String("provider", cfg.DefaultLLM), zap.Error(err))
		return nil
	}
	return client
}

func recordStreamStats(ctx context.Context, streams *natsclient.StreamManager, log *logger.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := streams.RecordStats(ctx); err != nil {
				log.Debug("failed to record stream stats", zap.Error(err))
			}
		}
	}
}
