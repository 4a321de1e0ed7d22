package handlers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/sync"
)

// FeedSourceHandler handles feed source API requests
type FeedSourceHandler struct {
	repo         repositories.FeedSourceRepo
	orchestrator *sync.Orchestrator
}

// NewFeedSourceHandler creates a new feed source handler
func NewFeedSourceHandler(repo repositories.FeedSourceRepo, orchestrator *sync.Orchestrator) *FeedSourceHandler {
	return &FeedSourceHandler{
		repo:         repo,
		orchestrator: orchestrator,
	}
}

// CreateFeedSourceRequest is the request body for registering a feed
type CreateFeedSourceRequest struct {
	PropertyID uuid.UUID      `json:"property_id" validate:"required"`
	Platform   string         `json:"platform" validate:"required"`
	FeedURL    *string        `json:"feed_url,omitempty" validate:"omitempty,url"`
	Active     *bool          `json:"active,omitempty"`
	Settings   map[string]any `json:"settings,omitempty"`
}

// UpdateFeedSourceRequest is the request body for editing a feed
type UpdateFeedSourceRequest struct {
	Platform *string        `json:"platform,omitempty"`
	FeedURL  *string        `json:"feed_url,omitempty" validate:"omitempty,url"`
	Active   *bool          `json:"active,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// RegisterRoutes registers the feed source routes
func (h *FeedSourceHandler) RegisterRoutes(g *echo.Group) {
	feeds := g.Group("/feeds")
	feeds.POST("", h.Create)
	feeds.GET("", h.List)
	feeds.GET("/:id", h.Get)
	feeds.PUT("/:id", h.Update)
	feeds.DELETE("/:id", h.Delete)
	feeds.POST("/:id/sync", h.Sync)

	g.POST("/sync", h.SyncAll)
}

// Create handles POST /feeds
func (h *FeedSourceHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req CreateFeedSourceRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	source := &models.FeedSource{
		TenantID:   tenantID,
		PropertyID: req.PropertyID,
		Platform:   req.Platform,
		FeedURL:    req.FeedURL,
		Active:     active,
	}
	if req.Settings != nil {
		source.Settings = database.JSONB[map[string]any]{Data: req.Settings}
	}

	if err := h.repo.Create(ctx, source); err != nil {
		return err
	}

	return CreatedResponse(c, source)
}

// List handles GET /feeds
func (h *FeedSourceHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	sources, err := h.repo.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, sources)
}

// Get handles GET /feeds/:id
func (h *FeedSourceHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	source, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, source)
}

// Update handles PUT /feeds/:id
func (h *FeedSourceHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var req UpdateFeedSourceRequest
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if req.Platform != nil {
		existing.Platform = *req.Platform
	}
	if req.FeedURL != nil {
		existing.FeedURL = req.FeedURL
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if req.Settings != nil {
		existing.Settings = database.JSONB[map[string]any]{Data: req.Settings}
	}

	if err := h.repo.Update(ctx, existing); err != nil {
		return err
	}

	return SuccessResponse(c, existing)
}

// Delete handles DELETE /feeds/:id; the feed's events cascade with it
func (h *FeedSourceHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Sync handles POST /feeds/:id/sync
func (h *FeedSourceHandler) Sync(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.orchestrator.SyncFeedByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}

// SyncAll handles POST /sync for the tenant's active feeds
func (h *FeedSourceHandler) SyncAll(c echo.Context) error {
	ctx := c.Request().Context()

	report, err := h.orchestrator.SyncTenant(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, report)
}
