package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chitter-chat/chitter-server/internal/api"
	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/config"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/httputil"
	"github.com/chitter-chat/chitter-server/internal/media"
	"github.com/chitter-chat/chitter-server/internal/memstore"
	"github.com/chitter-chat/chitter-server/internal/pgstore"
	"github.com/chitter-chat/chitter-server/internal/postgres"
	"github.com/chitter-chat/chitter-server/internal/valkey"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().Str("env", cfg.ServerEnv).Str("backend", cfg.Database).Msg("Starting Chitter Server")

	ctx := context.Background()

	files, err := media.NewLocal(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("open upload store: %w", err)
	}
	defer func() { _ = files.Close() }()

	// Credential registry: Valkey when configured, in-process otherwise. The
	// in-process registry gets an hourly sweep; Valkey expires keys itself.
	var registry credential.Registry
	var rdb *redis.Client
	var sweeper *cron.Cron
	if cfg.ValkeyURL != "" {
		rdb, err = valkey.Connect(ctx, cfg.ValkeyURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("connect valkey: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		registry = credential.NewValkey(rdb)
		log.Info().Msg("Valkey connected, credential registry is Valkey-backed")
	} else {
		mem := credential.NewMemory()
		registry = mem
		sweeper = cron.New()
		if _, err := sweeper.AddFunc("@every 1h", func() {
			if err := mem.Sweep(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Credential sweep failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule credential sweep: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	svc, err := buildService(ctx, cfg, registry, files)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Service close failed")
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "Chitter",
		BodyLimit:    cfg.BodyLimitBytes(),
		ErrorHandler: errorHandler,
	})

	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))
	app.Use(cors.New())

	handler := api.New(svc, files, cfg.MaxUploadBytes(), cfg.ShutdownToken, func() {
		log.Info().Msg("Shutdown requested via API")
		_ = app.Shutdown()
	}, log.Logger)
	handler.Register(app)

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Server listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// buildService selects the backend: DATABASE=mem gives the in-memory store
// with file snapshots, anything else connects PostgreSQL and migrates.
func buildService(ctx context.Context, cfg *config.Config, registry credential.Registry, files media.Store) (chat.Service, error) {
	if cfg.UseMemoryBackend() {
		svc, err := memstore.New(registry, files, log.Logger,
			memstore.WithSnapshotFile(cfg.SnapshotPath, cfg.SnapshotInterval))
		if err != nil {
			return nil, fmt.Errorf("open in-memory backend: %w", err)
		}
		log.Info().Str("snapshot", cfg.SnapshotPath).Msg("In-memory backend ready")
		return svc, nil
	}

	pool, err := postgres.ConnectWithRetry(ctx, cfg.DatabaseURL(), cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("PostgreSQL connected")

	if err := postgres.Migrate(cfg.DatabaseURL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", apierrors.ErrCouldNotCreateTables.Tag, err)
	}
	log.Info().Msg("Database migrations complete")

	return pgstore.New(pool, registry, files, log.Logger), nil
}

// errorHandler catches errors that escape the handlers, such as Fiber's
// built-in 404/405 and body-limit rejections, and dresses them in the
// standard envelope.
func errorHandler(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	tag := apierrors.ErrUnknownServerError.Tag
	if e, ok := errors.AsType[*fiber.Error](err); ok {
		status = e.Code
		if status >= 400 && status < 500 {
			tag = apierrors.ErrInvalidParameters.Tag
		}
	} else {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("Unhandled error")
	}
	return c.Status(status).JSON(httputil.ErrorResponse{Success: false, Error: tag})
}
