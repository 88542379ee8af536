package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	authconfig "mission-control/internal/auth/config"
	"mission-control/internal/di"
	storeconfig "mission-control/internal/docstore/config"
	"mission-control/internal/shared/logger"

	"github.com/caarlos0/env/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string `env:"SERVER_HOST" envDefault:"localhost"`
	Port         string `env:"SERVER_PORT" envDefault:"3000"`
	AllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:3000"`
	// AuthDisabled serves the collection routes without tokens.
	AuthDisabled bool `env:"AUTH_DISABLED" envDefault:"false"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("could not load .env file: %v", err)
	}

	serverCfg := &ServerConfig{}
	if err := env.Parse(serverCfg); err != nil {
		logger.Errorf("failed to load server configuration: %v", err)
		os.Exit(1)
	}

	appLogger := logger.WithComponent("main")

	container := di.NewContainer(logger.NewLogger())
	defer func() {
		if err := container.Close(); err != nil {
			appLogger.Errorf("failed to close container: %v", err)
		}
	}()

	storeCfg, err := storeconfig.LoadConfig()
	if err != nil {
		appLogger.Fatalf("failed to load storage configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = container.InitializeDocstore(ctx, storeCfg)
	cancel()
	if err != nil {
		appLogger.Fatalf("failed to initialize docstore: %v", err)
	}
	appLogger.Infof("docstore ready (driver=%s, unknown collections=%s)", storeCfg.Driver, storeCfg.UnknownCollectionPolicy)

	if serverCfg.AuthDisabled {
		appLogger.Warn("AUTH_DISABLED is set, collection routes are open")
	} else {
		authCfg, err := authconfig.LoadConfig()
		if err != nil {
			appLogger.Fatalf("failed to load auth configuration: %v", err)
		}
		if err := container.InitializeAuth(authCfg); err != nil {
			appLogger.Fatalf("failed to initialize auth: %v", err)
		}
		appLogger.Info("auth module initialized")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Mission Control API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				appLogger.WithFields(map[string]interface{}{"path": c.Path(), "method": c.Method()}).Errorf("unhandled error: %v", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": errorTypeFor(code), "message": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Header: fiber.HeaderXRequestID, ContextKey: "requestid"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     serverCfg.AllowOrigins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		AllowCredentials: serverCfg.AllowOrigins != "*",
	}))
	if container.AuthModule != nil {
		app.Use(container.AuthModule.GetMiddleware().SecurityHeaders())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		healthCtx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if err := container.HealthCheck(healthCtx); err != nil {
			appLogger.Errorf("health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "UNHEALTHY",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "HEALTHY",
			"timestamp": time.Now().UTC(),
			"driver":    storeCfg.Driver,
		})
	})

	container.RegisterRoutes(app)

	serverAddr := fmt.Sprintf("%s:%s", serverCfg.Host, serverCfg.Port)
	appLogger.Infof("starting HTTP server on %s", serverAddr)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(serverAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			appLogger.Errorf("server stopped: %v", err)
		}
	case sig := <-quit:
		appLogger.Infof("received %v, shutting down", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Errorf("server forced to shutdown: %v", err)
		}
	}
	appLogger.Info("stopped")
}

func errorTypeFor(code int) string {
	switch {
	case code == fiber.StatusNotFound:
		return "NOT_FOUND_ERROR"
	case code == fiber.StatusUpgradeRequired:
		return "UPGRADE_REQUIRED"
	case code < fiber.StatusInternalServerError:
		return "REQUEST_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
