package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-capacity-reservation/internal/service"
)

// GuestHandler serves the guest-facing routes: availability, creating a
// request, reading it back and cancelling it.
type GuestHandler struct {
	svc *service.RequestService
}

// NewGuestHandler constructs a GuestHandler.  svc must be non-nil.
func NewGuestHandler(svc *service.RequestService) *GuestHandler {
	if svc == nil {
		panic("nil service passed to NewGuestHandler")
	}
	return &GuestHandler{svc: svc}
}

// Availability handles GET /v1/events/:id/availability.
func (h *GuestHandler) Availability(c echo.Context) error {
	avail, err := h.svc.Availability(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, avail)
}

type createRequestBody struct {
	PartySize int     `json:"party_size"`
	Note      *string `json:"note"`
}

// CreateRequest handles POST /v1/events/:id/requests.  The body is
// {"party_size": n, "note": "..."}; party_size defaults to 1.  It returns 201
// with the pending request and its hold expiry.
func (h *GuestHandler) CreateRequest(c echo.Context) error {
	body := createRequestBody{PartySize: 1}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req, err := h.svc.CreateRequest(c.Request().Context(), actor(c), c.Param("id"), body.PartySize, body.Note)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, req)
}

// GetRequest handles GET /v1/events/:id/requests/:rid for the request's
// owner or the event host.
func (h *GuestHandler) GetRequest(c echo.Context) error {
	req, err := h.svc.Get(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// CancelRequest handles DELETE /v1/events/:id/requests/:rid.  Only the owner
// may cancel, and only while the hold is live.
func (h *GuestHandler) CancelRequest(c echo.Context) error {
	req, err := h.svc.CancelOwn(c.Request().Context(), actor(c), c.Param("id"), c.Param("rid"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}
