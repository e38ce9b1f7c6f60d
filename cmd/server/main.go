package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"estatechain/server/config"
	"estatechain/server/internal/api"
	"estatechain/server/internal/chain"
	"estatechain/server/internal/database"
	"estatechain/server/internal/metrics"
	"estatechain/server/internal/models"
	"estatechain/server/internal/pinning"
	"estatechain/server/internal/processor"
	"estatechain/server/internal/queue"
	"estatechain/server/internal/scheduler"
	"estatechain/server/internal/telegram"
	"estatechain/server/internal/workflow"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.Server.LogLevel).Warn("Unknown log level, using info")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	logger.Infof("Using database at: %s", cfg.Server.DatabasePath)
	db, err := database.NewDatabase(cfg.Server.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Contract gateway
	abis, err := config.LoadContractABIs(cfg.Chain.ABIDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load contract ABIs")
	}
	contracts, err := chain.ParseContracts(abis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse contract ABIs")
	}
	addresses, err := chain.ParseAddresses(cfg.Chain.VerificationAddress, cfg.Chain.TokenAddress, cfg.Chain.MarketplaceAddress)
	if err != nil {
		logger.WithError(err).Fatal("Invalid contract addresses")
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 30*time.Second)
	gateway, err := chain.Dial(dialCtx, cfg.Chain.ProviderURI, contracts, addresses, cfg.Chain.ReceiptPollInterval, logger)
	cancelDial()
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to blockchain node")
	}
	defer gateway.Close()

	pinner := pinning.NewClient(cfg.Pinning.APIURL, pinning.Credentials{
		APIKey:    cfg.Pinning.APIKey,
		SecretKey: cfg.Pinning.SecretKey,
		JWT:       cfg.Pinning.JWT,
	}, cfg.Pinning.Timeout, logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	// Event fan-out: journal first, then notifications
	events := queue.NewEventQueue(cfg.Journal.QueueSize, logger)
	recorder := processor.NewJournalRecorder(db.Gorm(), events, cfg, m, logger)
	recorder.Start()

	telegramService := telegram.NewService(logger, cfg.Pinning.GatewayHost)
	telegramService.UpdateConfig(&models.TelegramConfig{
		IsEnabled: cfg.Telegram.Enabled,
		BotToken:  cfg.Telegram.BotToken,
		ChatID:    cfg.Telegram.ChatID,
	})
	// Settings saved through the API take precedence over the environment
	if saved, err := db.GetTelegramConfig(); err != nil {
		logger.WithError(err).Warn("Failed to load saved Telegram config, using environment")
	} else if saved != nil {
		telegramService.UpdateConfig(saved)
	}
	filters, err := cfg.NotificationFilters()
	if err != nil {
		logger.WithError(err).Fatal("Invalid notification filters")
	}
	telegramService.SetFilters(filters)
	telegramService.SetHistory(db)
	events.Subscribe(telegramService.NotifyEvent)
	events.Start()

	orchestrator := workflow.New(gateway, pinner, workflow.Options{
		VerifyGasLimit: cfg.Chain.VerifyGasLimit,
		MintGasLimit:   cfg.Chain.MintGasLimit,
		ReceiptTimeout: cfg.Chain.ReceiptTimeout,
		Events:         events,
		Metrics:        m,
		Logger:         logger,
	})

	var syncScheduler *scheduler.Scheduler
	var syncer api.Syncer
	if cfg.Sync.Enabled {
		syncScheduler = scheduler.NewScheduler(orchestrator, db, cfg.Sync.Interval, m, logger)
		syncScheduler.Start()
		syncer = syncScheduler
	}

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg.Server.AllowedOrigins, prometheus.DefaultGatherer)
	handler := api.NewHandler(orchestrator, gateway, db, db, syncer, telegramService, cfg.Pinning.GatewayHost, logger)
	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if syncScheduler != nil {
		syncScheduler.Stop()
	}
	events.Close()
	recorder.Stop()
}
