package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/config"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/consumer"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/realtime"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/routes"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/services"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting notification service", slog.String("app", cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		JitterFactor:   0.2,
	}
	metricsCollector := metrics.New()

	store, closeStore, err := openStore(ctx, cfg, retryCfg)
	if err != nil {
		logr.Error("failed to open notification store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	rdb := redis.NewClient(redisOptions(cfg.RedisURL))
	defer rdb.Close()

	mailer, err := newMailer(cfg)
	if err != nil {
		logr.Error("failed to configure mailer", slog.String("driver", cfg.MailDriver), slog.Any("error", err))
		os.Exit(1)
	}

	// Leaves first: cache, channels, then the orchestrator, router and manager.
	tokens := services.NewLoginTokenSource(
		cfg.DirectoryURL,
		cfg.DirectoryLoginEmail,
		cfg.DirectoryLoginPassword,
		cfg.DirectoryTokenTTL,
		cfg.DirectoryTimeout,
		retryCfg,
		logr,
	)
	directory := services.NewUserDirectory(
		repository.NewRedisDirectoryStore(rdb, cfg.DirectoryCacheTTL),
		services.NewDirectoryClient(cfg.DirectoryURL, cfg.DirectoryTimeout, tokens),
		metricsCollector,
		logr,
	)
	if cfg.DirectoryWarmOnStart {
		if _, err := directory.Warm(ctx); err != nil {
			logr.Warn("directory warm-up failed", slog.Any("error", err))
		}
	}

	bus := realtime.NewRedisBus(rdb, logr)
	defer bus.Close()
	registry := realtime.NewRegistry()

	notifications := services.NewNotificationService(
		store,
		directory,
		services.NewEmailChannel(mailer, cfg.AppBaseURL),
		services.NewRealtimeChannel(bus, registry, logr),
		metricsCollector,
		logr,
	)

	router := consumer.NewRouter(notifications, metricsCollector, logr)
	manager := consumer.NewManager(consumer.Options{
		URL: cfg.RabbitURL,
		Topology: consumer.Topology{
			Exchange:           cfg.EventsExchange,
			DeadLetterExchange: cfg.DeadLetterExchange,
			Queue:              cfg.Queue,
			DeadLetterQueue:    cfg.DeadLetterQueue,
		},
		ReconnectDelay: cfg.ReconnectDelay,
		ConsumerTag:    cfg.AppName,
	}, router.Handle, metricsCollector, logr)

	httpSrv := startHTTPServer(cfg.HTTPPort, routes.Deps{
		Metrics: metricsCollector,
		Broker:  manager,
		Clients: registry,
		Gateway: realtime.NewGateway(registry, notifications, logr),
		Stream:  realtime.NewStreamHandler(bus, logr),
		Started: time.Now(),
	}, logr)

	manager.Start(ctx)
	<-ctx.Done()

	logr.Info("shutting down")
	manager.Stop()
	_ = bus.Close()
	shutdownHTTP(httpSrv, logr)
	logr.Info("notification service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, retryCfg retry.Config) (services.NotificationStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewGormStore(db)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return store, closeFn, nil

	case config.StoreMongo:
		var client *mongo.Client
		err := retry.Do(ctx, retryCfg, func() error {
			c, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURL).SetConnectTimeout(10 * time.Second))
			if err != nil {
				return err
			}
			if err := c.Ping(ctx, nil); err != nil {
				_ = c.Disconnect(context.Background())
				return err
			}
			client = c
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		store, err := repository.NewMongoStore(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.StoreMemory:
		return repository.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func newMailer(cfg *config.Config) (services.Mailer, error) {
	switch cfg.MailDriver {
	case config.MailPostmark:
		return services.NewPostmarkMailer(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.MailFrom)
	case config.MailSMTP:
		return services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
	}
}

func redisOptions(raw string) *redis.Options {
	if opts, err := redis.ParseURL(raw); err == nil {
		return opts
	}
	return &redis.Options{Addr: raw}
}

func startHTTPServer(port string, deps routes.Deps, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "3003"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
