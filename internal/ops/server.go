// Package ops exposes the operational HTTP surface: health probes and
// Prometheus metrics. The bot itself never serves user traffic over HTTP.
package ops

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewServer builds the Echo instance with all ops routes registered.
func NewServer(db *mongo.Database, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("fleetbot_ops"))

	// --- Health probes ---
	healthHandler := NewHealthHandler()
	healthDepsHandler := NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Prometheus scrape endpoint ---
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
