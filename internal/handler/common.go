// Package handler adapts the request service to HTTP.  Handlers bind and
// check the transport-level input, call one service operation and map its
// errors onto status codes.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-capacity-reservation/internal/middleware"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
	"github.com/iliyamo/event-capacity-reservation/internal/service"
)

// actor builds the service actor from the authenticated user.
func actor(c echo.Context) service.Actor {
	return service.Actor{UserID: middleware.UserID(c)}
}

// writeError maps a service or repository error onto an HTTP response.
// Anything unrecognised is logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	var (
		ve *service.ValidationError
		te *repository.InvalidTransitionError
		ce *repository.CapacityExceededError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrRequestNotFound),
		errors.Is(err, repository.ErrParticipantNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.As(err, &te):
		body := echo.Map{
			"error":    "invalid_transition",
			"expected": te.Expected,
			"actual":   te.Actual,
		}
		if te.Reason != "" {
			body["reason"] = te.Reason
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "capacity_exceeded",
			"required":  ce.Required,
			"available": ce.Available,
		})
	case errors.Is(err, repository.ErrDuplicateActiveRequest):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_active_request"})
	case errors.Is(err, repository.ErrEventNotOpen):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event_not_open"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
