package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/booking"
	"github.com/Ramsey-B/clover/pkg/models"
)

const dateLayout = "2006-01-02"

// BookingHandler handles direct booking and availability API requests
type BookingHandler struct {
	service  *booking.Service
	resolver *booking.StayResolver
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service *booking.Service, resolver *booking.StayResolver) *BookingHandler {
	return &BookingHandler{
		service:  service,
		resolver: resolver,
	}
}

// CreateBookingRequest is the request body for a direct booking. Dates are
// calendar dates; end_date is the checkout date and is exclusive.
type CreateBookingRequest struct {
	PropertyID uuid.UUID `json:"property_id" validate:"required"`
	Title      string    `json:"title"`
	StartDate  string    `json:"start_date" validate:"required"`
	EndDate    string    `json:"end_date" validate:"required"`
	Status     string    `json:"status,omitempty" validate:"omitempty,oneof=confirmed blocked tentative"`
	GuestName  *string   `json:"guest_name,omitempty"`
	GuestEmail *string   `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone *string   `json:"guest_phone,omitempty"`
	GuestCount *int      `json:"guest_count,omitempty" validate:"omitempty,min=1"`
	Notes      *string   `json:"notes,omitempty"`
}

// ConflictResponse is the 409 body listing what blocks the requested dates
type ConflictResponse struct {
	Message   string                 `json:"message"`
	Conflicts []models.CalendarEvent `json:"conflicts"`
}

// RegisterRoutes registers the booking routes
func (h *BookingHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/bookings", h.Create)
	g.DELETE("/bookings/:id", h.Cancel)
	g.GET("/properties/:propertyId/availability", h.Availability)
	g.GET("/properties/:propertyId/stay", h.Stay)
}

// Create handles POST /bookings
func (h *BookingHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateBookingRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return err
	}
	end, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		return err
	}

	event := &models.CalendarEvent{
		PropertyID: req.PropertyID,
		Title:      req.Title,
		StartDate:  start,
		EndDate:    end,
		Status:     models.EventStatus(req.Status),
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
		GuestCount: req.GuestCount,
		Notes:      req.Notes,
	}

	err = h.service.CreateBooking(ctx, event)
	var conflictErr *booking.ConflictError
	if errors.As(err, &conflictErr) {
		return c.JSON(http.StatusConflict, ConflictResponse{
			Message:   "requested dates are not available",
			Conflicts: conflictErr.Conflicts,
		})
	}
	if err != nil {
		return err
	}

	return CreatedResponse(c, event)
}

// Cancel handles DELETE /bookings/:id
func (h *BookingHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.CancelBooking(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Availability handles GET /properties/:propertyId/availability?start&end
func (h *BookingHandler) Availability(c echo.Context) error {
	ctx := c.Request().Context()

	propertyID, err := ParseUUID(c, "propertyId")
	if err != nil {
		return err
	}

	start, err := parseDate(c.QueryParam("start"), "start")
	if err != nil {
		return err
	}
	end, err := parseDate(c.QueryParam("end"), "end")
	if err != nil {
		return err
	}

	available, conflicts, err := h.service.Availability(ctx, propertyID, start, end)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"available": available,
		"conflicts": conflicts,
	})
}

// Stay handles GET /properties/:propertyId/stay?phone=XXXX
func (h *BookingHandler) Stay(c echo.Context) error {
	ctx := c.Request().Context()

	propertyID, err := ParseUUID(c, "propertyId")
	if err != nil {
		return err
	}

	phone := c.QueryParam("phone")
	if phone == "" {
		return BadRequest("phone query parameter is required")
	}

	resolution, err := h.resolver.Resolve(ctx, propertyID, phone, time.Now())
	if errors.Is(err, booking.ErrNoStay) {
		return httperror.NewHTTPError(http.StatusNotFound, "no active stay matches the given phone number")
	}
	if err != nil {
		return err
	}

	return SuccessResponse(c, resolution)
}

// parseDate parses a YYYY-MM-DD value into a UTC calendar date
func parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, BadRequest(field + " is required")
	}

	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: expected YYYY-MM-DD", field)
	}

	return t.UTC(), nil
}
