package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/detailing/internal/claims"
	"github.com/JonMunkholm/detailing/internal/config"
	"github.com/JonMunkholm/detailing/internal/files"
	"github.com/JonMunkholm/detailing/internal/ingest"
	"github.com/JonMunkholm/detailing/internal/jobregistry"
	"github.com/JonMunkholm/detailing/internal/logging"
	"github.com/JonMunkholm/detailing/internal/messaging"
	"github.com/JonMunkholm/detailing/internal/processing"
	"github.com/JonMunkholm/detailing/internal/storage"
	"github.com/JonMunkholm/detailing/internal/store/memory"
	"github.com/JonMunkholm/detailing/internal/store/postgres"
	"github.com/JonMunkholm/detailing/internal/tables"
	_ "github.com/JonMunkholm/detailing/internal/tables/templates" // Register export templates
	"github.com/JonMunkholm/detailing/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Database.Driver,
		"registry", cfg.Registry.Transport,
		"events", cfg.Events.Enabled,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	store, ping, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open claim store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var broker *messaging.Client
	if cfg.NeedsAMQP() {
		broker, err = messaging.Dial(cfg.Registry.AMQPURL)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer broker.Close()
		slog.Info("connected to rabbitmq")
	}

	var registry claims.JobRegistry
	switch cfg.Registry.Transport {
	case config.RegistryHTTP:
		registry = jobregistry.NewHTTPClient(cfg.Registry.HTTPURL, cfg.Registry.Timeout)
	default:
		registry = messaging.NewJobRegistry(broker, cfg.Registry.Exchange, cfg.Registry.RoutingKey, cfg.Registry.Timeout)
	}

	opts := []claims.Option{claims.WithRegistryTimeout(cfg.Registry.Timeout)}
	if cfg.Events.Enabled {
		publisher, err := messaging.NewPublisher(broker, cfg.Events.Exchange, cfg.Events.RoutingKey)
		if err != nil {
			slog.Error("failed to set up event publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, claims.WithEvents(publisher))
	}

	local, err := storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		slog.Error("failed to open archive storage", "error", err)
		os.Exit(1)
	}

	registered := tables.Default()
	slog.Info("templates registered", "count", registered.Len())

	limiter := ingest.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	claimSvc := claims.NewService(store, registry, opts...)
	fileSvc := files.NewService(
		claimSvc,
		ingest.NewIngestor(local,
			ingest.WithLimiter(limiter),
			ingest.WithMaxSize(cfg.Upload.MaxFileSize),
			ingest.WithMaxUnpackedSize(cfg.Upload.MaxUnpackedSize),
		),
		processing.NewPipeline(local, registered, cfg.Processing.Workers),
		local,
	)

	server := web.NewServer(cfg, web.Deps{
		Claims:    claimSvc,
		Files:     fileSvc,
		Templates: registered,
		Uploads:   limiter,
		Ping:      ping,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for archives being written to finish (with timeout)
		if st := limiter.Status(); st.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", st.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore returns the configured claim store, a health check for it and a
// function releasing its resources.
func openStore(ctx context.Context, cfg *config.Config) (claims.Store, func(context.Context) error, func(), error) {
	if cfg.Database.Driver == config.StoreMemory {
		slog.Warn("using in-memory claim store; claims are lost on restart")
		return memory.New(), nil, func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return postgres.New(pool), pool.Ping, pool.Close, nil
}
