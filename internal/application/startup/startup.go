// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/container"
	"github.com/sharpline/sharpline-go/internal/infrastructure/caching/cleanup"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
	"github.com/sharpline/sharpline-go/internal/infrastructure/security"
	"github.com/sharpline/sharpline-go/internal/presentation/http/server"
	"github.com/sharpline/sharpline-go/pkg/config"
)

// Initialize runs the startup sequence and blocks until SIGINT or SIGTERM.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Channeled logger
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Starting sharpline", "ginMode", gin.Mode(), "profileCacheMode", config.ProfileCacheMode)

	// Step 2: Token secret
	jwtSecret := config.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = security.GenerateSecureKey(32)
		if err != nil {
			return fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		logger.Startup().Warn("JWT_SECRET not set; using an ephemeral secret, issued tokens will not survive a restart")
	}

	// Step 3: Database
	logger.Startup().Info("Connecting to database...")
	startDBTime := time.Now()
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	db, err := database.NewConnectionWithLogger(connectCtx, database.OptionsFromConfig(), logger)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if config.DBBootstrapSchema {
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	logger.Startup().Info("Database ready", "driver", db.Driver, "duration", time.Since(startDBTime))

	// Step 4: Dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	appContainer := container.NewContainer(ctx, container.Options{
		DB:        db,
		Logger:    logger,
		JWTSecret: jwtSecret,
	})
	logger.Startup().Info("Container initialized",
		"profileCacheMode", appContainer.ProfileService.CacheMode(),
		"redis", appContainer.RedisClient != nil)

	// Step 5: Background workers
	go appContainer.ProfileBroadcaster.Run(ctx)

	if appContainer.ExpiringCache != nil {
		cleanupWorker := cleanup.NewWorker(appContainer.ExpiringCache, cleanup.NewConfig(), logger)
		go cleanupWorker.Start(ctx)
		logger.Startup().Info("Profile cache cleanup worker started", "interval", config.CacheCleanupInterval)
	}

	// Step 6: HTTP server
	httpServer := server.New(config.Port, appContainer)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port)

	// Step 7: Wait for shutdown signal
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			runErr = err
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing container", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return runErr
}

func newLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = config.LogToFile
	cfg.OutputToConsole = config.LogToConsole
	cfg.LogDirectory = config.LogDirectory
	cfg.JSONFormat = config.LogJSON
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	return logging.NewChanneledLogger(cfg)
}

// setupLogging configures the gin mode and the standard logger used
// before the channeled logger exists.
func setupLogging() {
	if config.GinMode == gin.ReleaseMode || config.GinMode == gin.TestMode {
		gin.SetMode(config.GinMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
