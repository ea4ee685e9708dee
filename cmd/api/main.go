package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tiendatec/chat-platform/internal/agents"
	"github.com/tiendatec/chat-platform/internal/api/router"
	"github.com/tiendatec/chat-platform/internal/autoresponse"
	appconfig "github.com/tiendatec/chat-platform/internal/config"
	"github.com/tiendatec/chat-platform/internal/conversation"
	"github.com/tiendatec/chat-platform/internal/customers"
	"github.com/tiendatec/chat-platform/internal/flow"
	"github.com/tiendatec/chat-platform/internal/intent"
	"github.com/tiendatec/chat-platform/internal/messaging"
	"github.com/tiendatec/chat-platform/internal/notify"
	"github.com/tiendatec/chat-platform/internal/observability/metrics"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chat-platform API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	registry := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(registry)

	// Domain services.
	flowRegistry := flow.NewRegistry(
		flow.NewQuotationFlow(cfg.QuotationFlowTimeout),
		flow.NewInfoMenuFlow(cfg.InfoMenuFlowTimeout),
	)
	engine := flow.NewEngine(flowRegistry, logger)
	classifier := intent.NewClassifier(logger)
	matcher := autoresponse.NewMatcher(autoresponse.NewStore(sqlDB), cfg.AutoResponseCacheTTL, logger)

	customerRepo := customers.NewRepository(pool)
	convStore := conversation.NewStore(pool)
	messageStore := conversation.NewMessageStore(pool)
	transcriptStore := conversation.NewTranscriptStore(redisClient)
	agentRepo := agents.NewRepository(pool)

	var gateway messaging.Gateway
	if cfg.GatewayBaseURL != "" {
		gateway = messaging.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayToken, logger)
	} else {
		logger.Warn("no gateway configured, outbound messages go to memory")
		gateway = messaging.NewMemoryGateway()
	}

	hub := notify.NewHub(logger)
	defer hub.Close()
	notifier := notify.NewService(hub, buildEmailSender(cfg, logger), agentRepo, logger)

	botService := conversation.NewBotService(conversation.BotServiceDeps{
		Directory:  customerRepo,
		Store:      convStore,
		Messages:   messageStore,
		Transcript: transcriptStore,
		Engine:     engine,
		Classifier: classifier,
		Responder:  matcher,
		Gateway:    gateway,
		Notifier:   notifier,
		Metrics:    chatMetrics,
		Logger:     logger,
	})

	dispatcher, err := buildDispatcher(ctx, cfg, botService, logger)
	if err != nil {
		logger.Error("failed to build conversation dispatcher", "error", err)
		os.Exit(1)
	}

	agentService := agents.NewService(agents.ServiceDeps{
		Store:      agentRepo,
		Convs:      convStore,
		Customers:  customerRepo,
		Messages:   messageStore,
		Transcript: transcriptStore,
		Gateway:    gateway,
		Notifier:   notifier,
		Metrics:    chatMetrics,
		Logger:     logger,
	})

	webhook := messaging.NewWebhookHandler(cfg.WebhookSecret, func(ctx context.Context, in messaging.Inbound) error {
		_, err := dispatcher.HandleInbound(ctx, in)
		return err
	}, logger)

	r := router.New(router.Deps{
		Logger:        logger,
		Registry:      registry,
		Webhook:       webhook,
		AgentsHandler: agents.NewHandler(agentService, logger),
		Hub:           hub,
		AgentLookup:   agentRepo,
		JWTSecret:     cfg.AgentJWTSecret,
		AllowedOrigin: cfg.PublicBaseURL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func buildDispatcher(ctx context.Context, cfg *appconfig.Config, bot *conversation.BotService, logger *logging.Logger) (*conversation.Dispatcher, error) {
	workers := conversation.WithWorkerCount(cfg.WorkerCount)

	if cfg.UseMemoryQueue || cfg.ConversationQueueURL == "" {
		logger.Info("using in-memory conversation queue")
		return conversation.NewDispatcher(bot, conversation.NewMemoryQueue(256), logger, workers), nil
	}

	awsCfg, err := appconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	queue := conversation.NewSQSQueue(awssqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
	return conversation.NewDispatcher(bot, queue, logger, workers), nil
}

func buildEmailSender(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
	case "ses":
		awsCfg, err := appconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config for SES", "error", err)
			break
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.SESFromEmail, cfg.SendGridFromName, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}
