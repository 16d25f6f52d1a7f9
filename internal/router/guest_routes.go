package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-capacity-reservation/internal/middleware"
)

// RegisterGuest registers the guest routes under /v1/events.  Availability
// is public and served through the short-lived Redis cache; everything else
// requires a bearer token, and request creation is rate limited per user.
func RegisterGuest(e *echo.Echo, d Deps) {
	e.GET("/v1/events/:id/availability", d.Guest.Availability, middleware.NewRedisCache(d.Cache, d.Redis))

	g := e.Group("/v1/events", middleware.JWTAuth(d.JWTSecret))
	g.POST("/:id/requests", d.Guest.CreateRequest, middleware.NewTokenBucket(d.RateLimit, d.Redis))
	g.GET("/:id/requests/:rid", d.Guest.GetRequest)
	g.DELETE("/:id/requests/:rid", d.Guest.CancelRequest)
}
