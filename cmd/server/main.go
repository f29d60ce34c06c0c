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
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/config"
	"github.com/PabloReca/busca-pisos/internal/api"
	"github.com/PabloReca/busca-pisos/internal/classifier"
	"github.com/PabloReca/busca-pisos/internal/database"
	"github.com/PabloReca/busca-pisos/internal/processor"
	"github.com/PabloReca/busca-pisos/internal/queue"
	"github.com/PabloReca/busca-pisos/internal/refresh"
	"github.com/PabloReca/busca-pisos/internal/scheduler"
	"github.com/PabloReca/busca-pisos/internal/telegram"
	"github.com/PabloReca/busca-pisos/internal/wallapop"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	lat, lon := cfg.BaseLocation.Latitude, cfg.BaseLocation.Longitude
	profile, err := config.LoadSearchProfile(cfg.Refresh.SearchProfilePath, lat, lon)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load search profile")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.URL, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Notifications go through the queue so a slow bot never holds a refresh
	telegramService := telegram.NewService(cfg.TelegramConfig(), logger)
	if !cfg.TelegramConfig().IsEnabled {
		logger.Warn("Telegram is not configured, notifications are disabled")
	}
	notificationQueue := queue.NewNotificationQueue(cfg.Notifications.QueueSize, logger)
	notifier := processor.NewNotificationProcessor(
		telegramService,
		notificationQueue,
		cfg.Notifications.MaxRetries,
		cfg.NotifyRetryDelay(),
		logger,
	)
	notifier.Start()

	source := wallapop.NewClient(wallapop.ClientOptions{
		BaseURL: cfg.Source.URL,
		Headers: profile.Headers,
		Timeout: cfg.SourceTimeout(),
	}, logger)

	refresher := refresh.NewService(
		source,
		db,
		notifier,
		classifier.New(profile.TemporaryRentalKeywords, cfg.Refresh.MinPrice),
		profile,
		refresh.Options{
			Categories:           cfg.Categories(),
			MaxPages:             cfg.Source.MaxPages,
			NotificationMaxPrice: cfg.Refresh.NotificationMaxPrice,
			Parallel:             cfg.Refresh.Parallel,
		},
		logger,
	)

	sched := scheduler.NewScheduler(
		refresher,
		time.Duration(cfg.Refresh.IntervalMinutes)*time.Minute,
		cfg.Refresh.RunOnStartup,
		logger,
	)
	sched.Start()

	handler := api.NewHandler(db, sched, telegramService, orb.Point{lon, lat}, logger)
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.NewRouter(handler, cfg.Server.StaticDir),
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.WithField("signal", sig.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}

	sched.Stop()
	notifier.Stop()
	logger.Info("Shutdown complete")
}
