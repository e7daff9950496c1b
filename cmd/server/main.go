package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/follower"
	"github.com/beaconhq/alert-pipeline/internal/identity"
	"github.com/beaconhq/alert-pipeline/internal/monitor"
	"github.com/beaconhq/alert-pipeline/internal/notify"
	"github.com/beaconhq/alert-pipeline/internal/publish"
	"github.com/beaconhq/alert-pipeline/internal/scheduler"
	"github.com/beaconhq/alert-pipeline/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Connect to NATS with retry
	opts := []nats.Option{
		nats.Name(viper.GetString("app.name")),
		nats.MaxReconnects(viper.GetInt("nats.max_reconnects")),
		nats.ReconnectWait(viper.GetDuration("nats.reconnect_wait")),
		nats.Timeout(viper.GetDuration("nats.connect_timeout")),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(viper.GetString("nats.url"), opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully", zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Service identity supplies poster context to authoring flows
	idProvider := identity.NewStatic(&identity.Identity{
		ID:          viper.GetString("identity.id"),
		Email:       viper.GetString("identity.email"),
		DisplayName: viper.GetString("identity.display_name"),
	})
	if id, err := idProvider.CurrentIdentity(context.Background()); err == nil && id != nil {
		logger.Info("Running with service identity", zap.String("identity_id", id.ID))
	}

	// Open the alert store
	store, err := storage.NewSQLite(logger, viper.GetString("store.path"))
	if err != nil {
		logger.Fatal("Failed to open alert store", zap.Error(err))
	}
	defer store.Close()

	// Delivery gateways: push first, email as fallback
	pushGateway, err := notify.NewPushGateway(js, store, logger)
	if err != nil {
		logger.Fatal("Failed to create push gateway", zap.Error(err))
	}

	emailGateway := notify.NewEmailGateway(notify.EmailConfig{
		Host:     viper.GetString("email.host"),
		Port:     viper.GetInt("email.port"),
		Username: viper.GetString("email.username"),
		Password: viper.GetString("email.password"),
		From:     viper.GetString("email.from"),
	}, store, logger)

	dispatcher := notify.NewDispatcher(
		[]notify.Gateway{pushGateway, emailGateway},
		viper.GetInt("delivery.max_in_flight"),
		logger)

	resolver := follower.NewResolver(store, store, logger)
	publisher := publish.NewPublisher(store, store, resolver, dispatcher, logger)
	alertScheduler := scheduler.New(store, publisher, logger)

	runner := scheduler.NewRunner(alertScheduler, scheduler.RunnerConfig{
		TickSchedule:  viper.GetString("scheduler.tick_schedule"),
		SweepSchedule: viper.GetString("scheduler.sweep_schedule"),
		TickTimeout:   viper.GetDuration("scheduler.tick_timeout"),
	}, logger)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Metrics stream and collector
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     "METRICS",
		Subjects: []string{"metrics.*"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	}); err != nil && err != nats.ErrStreamNameAlreadyInUse {
		logger.Fatal("Failed to create metrics stream", zap.Error(err))
	}

	metrics := monitor.NewMetricsCollector(js, alertScheduler,
		viper.GetDuration("metrics.interval"), logger)
	metrics.Start(ctx)
	defer metrics.Stop()

	if err := runner.Start(ctx); err != nil {
		logger.Fatal("Failed to start runner", zap.Error(err))
	}

	// Wait for shutdown signal
	<-ctx.Done()

	runner.Stop()
	logger.Info("Server shutting down gracefully")
}
