// Package router registers the HTTP routes of the reservation API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-capacity-reservation/internal/config"
	"github.com/iliyamo/event-capacity-reservation/internal/handler"
)

// Deps carries what the route groups need.  Redis may be nil, in which case
// rate limiting and response caching are switched off.
type Deps struct {
	DB        *sql.DB
	Guest     *handler.GuestHandler
	Host      *handler.HostHandler
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// Register wires every route group onto e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.DB)
	RegisterGuest(e, d)
	RegisterHost(e, d)
}
