package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/service"
)

// HostHandler serves the host routes under /v1/host.  Whether the caller
// hosts the event is decided by the service.
type HostHandler struct {
	svc *service.RequestService
}

// NewHostHandler constructs a HostHandler.  svc must be non-nil.
func NewHostHandler(svc *service.RequestService) *HostHandler {
	if svc == nil {
		panic("nil service passed to NewHostHandler")
	}
	return &HostHandler{svc: svc}
}

// ListRequests handles GET /v1/host/events/:id/requests?status=a,b.
func (h *HostHandler) ListRequests(c echo.Context) error {
	var statuses []model.RequestStatus
	for _, s := range strings.Split(c.QueryParam("status"), ",") {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			statuses = append(statuses, model.RequestStatus(s))
		}
	}
	list, err := h.svc.ListForEvent(c.Request().Context(), actor(c), c.Param("id"), statuses...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": list})
}

// decisionBody optionally pins the status the host saw.  A mismatch yields
// 409 instead of acting on a request that changed underneath the host.
type decisionBody struct {
	ExpectedStatus model.RequestStatus `json:"expected_status"`
}

func bindDecision(c echo.Context) (decisionBody, bool) {
	var body decisionBody
	if c.Request().ContentLength == 0 {
		return body, true
	}
	if err := c.Bind(&body); err != nil {
		return body, false
	}
	return body, true
}

// Approve handles POST /v1/host/events/:id/requests/:rid/approve.
func (h *HostHandler) Approve(c echo.Context) error {
	body, ok := bindDecision(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req, err := h.svc.Approve(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"), body.ExpectedStatus)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// Decline handles POST /v1/host/events/:id/requests/:rid/decline.
func (h *HostHandler) Decline(c echo.Context) error {
	body, ok := bindDecision(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req, err := h.svc.Decline(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"), body.ExpectedStatus)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// Waitlist handles POST /v1/host/events/:id/requests/:rid/waitlist.
func (h *HostHandler) Waitlist(c echo.Context) error {
	req, err := h.svc.Waitlist(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// ExtendHold handles POST /v1/host/events/:id/requests/:rid/extend with an
// optional {"minutes": n}.
func (h *HostHandler) ExtendHold(c echo.Context) error {
	var body struct {
		Minutes int `json:"minutes"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
	}
	if body.Minutes < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "minutes must not be negative", "field": "minutes"})
	}
	if body.Minutes > int(service.MaxHoldExtension/time.Minute) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "extension longer than a day", "field": "minutes"})
	}
	by := time.Duration(body.Minutes) * time.Minute
	req, err := h.svc.ExtendHold(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"), by)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// Reorder handles PUT /v1/host/events/:id/waitlist/:rid/position with
// {"position": n}.  It returns the full waitlist in its new order.
func (h *HostHandler) Reorder(c echo.Context) error {
	var body struct {
		Position int `json:"position"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	list, err := h.svc.Reorder(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"), body.Position)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"waitlist": list})
}

// Promote handles POST /v1/host/events/:id/waitlist/promote with an optional
// {"max": n}.
func (h *HostHandler) Promote(c echo.Context) error {
	var body struct {
		Max int `json:"max"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
	}
	promoted, err := h.svc.Promote(c.Request().Context(), actor(c), c.Param("id"), body.Max)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"promoted": promoted})
}

// RemoveParticipant handles DELETE /v1/host/events/:id/participants/:uid.
// Freed seats are offered to the waitlist right away.
func (h *HostHandler) RemoveParticipant(c echo.Context) error {
	promoted, err := h.svc.RemoveParticipant(c.Request().Context(), actor(c), c.Param("id"), c.Param("uid"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"promoted": promoted})
}
