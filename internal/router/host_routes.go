package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-capacity-reservation/internal/middleware"
)

// RegisterHost registers the host routes under /v1/host/events.  All of them
// require a bearer token; the service checks that the caller hosts the event.
func RegisterHost(e *echo.Echo, d Deps) {
	g := e.Group("/v1/host/events", middleware.JWTAuth(d.JWTSecret))
	g.GET("/:id/requests", d.Host.ListRequests)
	g.POST("/:id/requests/:rid/approve", d.Host.Approve)
	g.POST("/:id/requests/:rid/decline", d.Host.Decline)
	g.POST("/:id/requests/:rid/waitlist", d.Host.Waitlist)
	g.POST("/:id/requests/:rid/extend", d.Host.ExtendHold)
	g.PUT("/:id/waitlist/:rid/position", d.Host.Reorder)
	g.POST("/:id/waitlist/promote", d.Host.Promote)
	g.DELETE("/:id/participants/:uid", d.Host.RemoveParticipant)
}
