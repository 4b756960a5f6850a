package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/service"
)

// WaitlistHandler exposes the waitlist lifecycle over HTTP.
type WaitlistHandler struct {
	svc *service.WaitlistService
}

func NewWaitlistHandler(svc *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{svc: svc}
}

// joinWaitlistRequest is the payload for POST /v1/waitlist.
type joinWaitlistRequest struct {
	VenueID   uint64 `json:"venue_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// JoinWaitlist handles POST /v1/waitlist.
func (h *WaitlistHandler) JoinWaitlist(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req joinWaitlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slot := model.Slot{
		VenueID:   req.VenueID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	e, err := h.svc.Join(c.Request().Context(), slot, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "joined waitlist",
		"entry":   e,
	})
}

// LeaveWaitlist handles DELETE /v1/waitlist/:id.
func (h *WaitlistHandler) LeaveWaitlist(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	if err := h.svc.Leave(c.Request().Context(), id, userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "left waitlist"})
}

// ClaimSlot handles POST /v1/waitlist/:id/claim.
func (h *WaitlistHandler) ClaimSlot(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	b, err := h.svc.Claim(c.Request().Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "slot claimed",
		"booking": b,
	})
}

// GetMyWaitlist handles GET /v1/my-waitlist.
func (h *WaitlistHandler) GetMyWaitlist(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entries, err := h.svc.GetMyEntries(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
