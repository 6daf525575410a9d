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
	"time"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/catalog"
	"github.com/fjod/marketcart/internal/checkout"
	"github.com/fjod/marketcart/internal/config"
	h "github.com/fjod/marketcart/internal/http"
	"github.com/fjod/marketcart/internal/logger"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/fjod/marketcart/internal/storage"
	"github.com/fjod/marketcart/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName    = "cart-service"
	serviceVersion = "v1.0.0"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := run(cfg, log); err != nil {
		log.Error("cart service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	products, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer products.Close()
	if err := products.RunMigrations(); err != nil {
		return err
	}
	log.Info("catalog ready", "path", cfg.CatalogPath)

	notifiers := []notify.Notifier{notify.Context, notify.NewLogNotifier(log)}
	var publisher checkout.ProofPublisher = checkout.NewLogProofPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		notifyWriter := notify.NewKafkaWriter(cfg.NotifyTopic, cfg.KafkaBrokers...)
		defer notifyWriter.Close()
		kafkaNotifier := notify.NewKafkaNotifier(notifyWriter, log)
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)

		proofWriter := checkout.NewKafkaWriter(cfg.ProofTopic, cfg.KafkaBrokers...)
		defer proofWriter.Close()
		publisher = checkout.NewKafkaProofPublisher(proofWriter)
		log.Info("kafka enabled", "brokers", cfg.KafkaBrokers, "notify_topic", cfg.NotifyTopic, "proof_topic", cfg.ProofTopic)
	}
	notifier := notify.Multi(notifiers...)

	registry := cart.NewRegistryWithCache(store,
		cart.CacheConfig{Size: cfg.SessionCacheSize, IdleTTL: cfg.SessionIdleTTL},
		cart.WithNotifier(notifier), cart.WithLogger(log))

	router := h.NewRouter(h.RouterConfig{
		Registry:           registry,
		Products:           catalog.NewGuarded(products, log),
		Checkout:           checkout.NewService(publisher, notifier, cfg.PayeeUPIID),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		ServiceName:        serviceName,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart service starting", "port", cfg.HTTPPort, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// openStore connects the backend selected by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage, state is lost on restart")
		return storage.NewMemoryStore(), func() {}, nil

	case "sqlite", "":
		store, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunMigrations(); err != nil {
			store.Close()
			return nil, nil, err
		}
		log.Info("connected to sqlite", "path", cfg.SQLitePath)
		return store, func() { store.Close() }, nil

	case "postgres":
		store, err := storage.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunMigrations(); err != nil {
			store.Close()
			return nil, nil, err
		}
		log.Info("connected to postgres")
		return store, func() { store.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		store := storage.NewRedisStore(client, cfg.RedisTTL)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", "addr", cfg.RedisAddr)
		return store, func() { client.Close() }, nil

	case "mongo":
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewMongoStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			log.Warn("failed to create mongo indexes", "error", err)
		}
		log.Info("connected to mongodb", "database", cfg.MongoDBName)
		return store, func() { db.Client().Disconnect(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}
