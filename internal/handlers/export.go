package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/repositories"
)

// ExportHandler serves a property's calendar as an ICS document to external
// consumers. The route is public: external platforms poll it with no tenant
// context, just the property's export URL.
type ExportHandler struct {
	events    repositories.CalendarEventRepo
	generator *feed.Generator
	cache     *redis.CalendarCache
}

// NewExportHandler creates a new export handler
func NewExportHandler(events repositories.CalendarEventRepo, generator *feed.Generator, cache *redis.CalendarCache) *ExportHandler {
	return &ExportHandler{
		events:    events,
		generator: generator,
		cache:     cache,
	}
}

// RegisterRoutes registers the public calendar route
func (h *ExportHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/calendars/:propertyId/calendar.ics", h.Calendar)
}

// Calendar handles GET /calendars/:propertyId/calendar.ics
func (h *ExportHandler) Calendar(c echo.Context) error {
	ctx := c.Request().Context()

	propertyID, err := ParseUUID(c, "propertyId")
	if err != nil {
		return err
	}

	events, cached := h.cache.Get(ctx, propertyID)
	if !cached {
		events, err = h.events.ListForCalendar(ctx, propertyID)
		if err != nil {
			return err
		}
		if err := h.cache.Set(ctx, propertyID, events); err != nil {
			// Advisory cache; serve the response regardless.
			c.Logger().Warnf("failed to cache calendar for property %s: %v", propertyID, err)
		}
	}

	metrics.CalendarExports.Inc()

	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(h.generator.Generate(ctx, events)))
}
