package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/flowd/cmd/flowd/container"
	"github.com/lyzr/flowd/cmd/flowd/routes"
	"github.com/lyzr/flowd/common/bootstrap"
	"github.com/lyzr/flowd/common/db"
	"github.com/lyzr/flowd/common/server"
	"github.com/lyzr/flowd/repository"
)

const version = "0.3.0"

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "flowd",
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return repository.Migrate(ctx, database)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap flowd: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize services: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components.Health)
	registerRoutes(e, serviceContainer)

	startServer(e, components)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck answers 200 unconditionally; dependency trouble is
// reported in the body, not the status code
func setupHealthCheck(e *echo.Echo, health func(context.Context) error) {
	e.GET("/health", func(ec echo.Context) error {
		if err := health(ec.Request().Context()); err != nil {
			return ec.JSON(200, map[string]string{
				"status":  "degraded",
				"service": "flowd",
				"version": version,
				"error":   err.Error(),
			})
		}
		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "flowd",
			"version": version,
		})
	})
}

func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterWebhookRoutes(e, c)
	routes.RegisterWorkflowRoutes(e, c)
	routes.RegisterExecutionRoutes(e, c)
	routes.RegisterCredentialRoutes(e, c)
}

func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("starting flowd", "port", port, "version", version)

	srv := server.New("flowd", port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
