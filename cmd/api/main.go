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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wisrod/chat-platform/internal/accounts"
	"github.com/wisrod/chat-platform/internal/agents"
	"github.com/wisrod/chat-platform/internal/api/router"
	"github.com/wisrod/chat-platform/internal/bot"
	"github.com/wisrod/chat-platform/internal/chat"
	appconfig "github.com/wisrod/chat-platform/internal/config"
	"github.com/wisrod/chat-platform/internal/faq"
	"github.com/wisrod/chat-platform/internal/http/handlers"
	"github.com/wisrod/chat-platform/internal/loans"
	"github.com/wisrod/chat-platform/internal/messaging"
	"github.com/wisrod/chat-platform/internal/monitoring"
	"github.com/wisrod/chat-platform/internal/observability/metrics"
	"github.com/wisrod/chat-platform/internal/users"
	"github.com/wisrod/chat-platform/internal/webchat"
	"github.com/wisrod/chat-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting wisrod chat platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// database/sql handle for the monitoring service.
	monitorDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open monitoring db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = monitorDB.Close() }()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	chatMetrics := metrics.NewChatMetrics(prometheus.DefaultRegisterer)

	// Stores
	userStore := users.NewStore(pool)
	chatStore := chat.NewStore(pool)
	faqStore := faq.NewStore(pool)
	agentStore := agents.NewStore(pool)
	loanStore := loans.NewStore(pool)
	integrationStore := messaging.NewStore(pool)
	monitorService := monitoring.NewService(monitorDB, logger)

	// Conversational routing
	accountClient := accounts.NewClient(cfg.InstafinBaseURL, cfg.InstafinAPIUsername, cfg.InstafinAPIPassword, logger)
	matcher := faq.NewMatcher(faqStore, cfg.FAQMatchThreshold, logger)
	assigner := agents.NewAssigner(agentStore, logger)
	stateStore := bot.NewStateStore(redisClient, cfg.MenuStateTTL)
	engine := bot.NewEngine(bot.EngineDeps{
		Sessions:      chatStore,
		Accounts:      accountClient,
		FAQs:          matcher,
		Agents:        assigner,
		Notifications: userStore,
		Linker:        userStore,
		State:         stateStore,
		Metrics:       chatMetrics,
		Logger:        logger,
		MaxTurns:      cfg.MaxTurnsBeforeAgent,
	})

	// Transport handlers
	messagingHandler := messaging.NewHandler(messaging.HandlerDeps{
		AuthToken:     cfg.TwilioAuthToken,
		PublicBaseURL: cfg.PublicBaseURL,
		Users:         userStore,
		Sessions:      chatStore,
		Engine:        engine,
		Metrics:       chatMetrics,
		Logger:        logger,
	})
	webchatHandler := webchat.NewHandler(userStore, chatStore, engine, logger)
	verifier := messaging.NewCredentialVerifier("")
	sender := messaging.NewTwilioSender(messaging.TwilioSenderConfig{
		AccountSID:          cfg.TwilioAccountSID,
		AuthToken:           cfg.TwilioAuthToken,
		WhatsAppFrom:        cfg.TwilioWhatsAppFrom,
		FacebookPageID:      cfg.FacebookPageID,
		MessagingServiceSID: cfg.TwilioMessagingSID,
	}, integrationStore, chatMetrics, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		Health:             handlers.NewHealthHandler(pool, redisPinger{redisClient}),
		Messaging:          messagingHandler,
		Webchat:            webchatHandler,
		AdminAgents:        handlers.NewAdminAgentsHandler(agentStore, monitorService, logger),
		AdminSessions:      handlers.NewAdminSessionsHandler(chatStore, agentStore, sender, webchatHandler, monitorService, logger),
		AdminFAQs:          handlers.NewAdminFAQsHandler(faqStore, monitorService, logger),
		AdminIntegrations:  handlers.NewAdminIntegrationsHandler(integrationStore, verifier, monitorService, logger),
		AdminLoans:         handlers.NewAdminLoansHandler(loanStore, monitorService, logger),
		AdminMonitoring:    handlers.NewAdminMonitoringHandler(monitorService, logger),
		AdminNotifications: handlers.NewAdminNotificationsHandler(userStore, monitorService, logger),
		MetricsHandler:     promhttp.Handler(),

		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,

		WebhookRatePerSecond: cfg.WebhookRatePerSecond,
		WebhookRateBurst:     cfg.WebhookRateBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	collectorCtx, stopCollector := context.WithCancel(ctx)
	defer stopCollector()
	collector := monitoring.NewCollector(monitorService, time.Hour, logger)
	go collector.Run(collectorCtx)
	rollup := agents.NewPerformanceRollup(agentStore, chatStore, time.Hour, logger)
	go rollup.Run(collectorCtx)

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
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// redisPinger adapts the redis client to the health handler's pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
