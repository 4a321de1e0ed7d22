package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const feedSourcesTable = "feed_sources"

var feedSourceStruct = database.NewStruct(new(models.FeedSource))

// FeedSourceRepository handles database operations for feed sources
type FeedSourceRepository struct {
	*Repository
}

// NewFeedSourceRepository creates a new feed source repository
func NewFeedSourceRepository(db database.DB, logger ectologger.Logger) *FeedSourceRepository {
	return &FeedSourceRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new feed source
func (r *FeedSourceRepository) Create(ctx context.Context, source *models.FeedSource) error {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.Create")
	defer span.End()

	if source.TenantID == uuid.Nil {
		tenantID, err := GetTenantID(ctx)
		if err != nil {
			return err
		}
		source.TenantID = tenantID
	}

	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	if source.LastStatus == "" {
		source.LastStatus = models.SyncStatusNeverRun
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(feedSourcesTable).
		Cols("id", "tenant_id", "property_id", "platform", "feed_url", "active", "last_sync_status", "settings", "created_at", "updated_at").
		Values(source.ID, source.TenantID, source.PropertyID, source.Platform, source.FeedURL, source.Active,
			source.LastStatus, source.Settings, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.Q(ctx).QueryRowContext(ctx, query, args...).Scan(&source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"feed_source_id": source.ID,
		}).Error("failed to create feed source")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create feed source")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"feed_source_id": source.ID,
	}).Debugf("Created %s", feedSourcesTable)
	return nil
}

// GetByID retrieves a feed source by ID (tenant-scoped)
func (r *FeedSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FeedSource, error) {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.GetByID")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := feedSourceStruct.SelectFrom(feedSourcesTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", id))

	query, args := sb.Build()
	var source models.FeedSource
	err = r.Q(ctx).GetContext(ctx, &source, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "feed source %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"feed_source_id": id,
		}).Error("failed to get feed source by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get feed source by ID")
	}

	return &source, nil
}

// List retrieves all feed sources for the tenant
func (r *FeedSourceRepository) List(ctx context.Context) ([]models.FeedSource, error) {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.List")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := feedSourceStruct.SelectFrom(feedSourcesTable)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	sources := []models.FeedSource{}
	err = r.Q(ctx).SelectContext(ctx, &sources, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list feed sources")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list feed sources")
	}

	return sources, nil
}

// ListActive retrieves the tenant's active feed sources that have a URL to sync
func (r *FeedSourceRepository) ListActive(ctx context.Context) ([]models.FeedSource, error) {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.ListActive")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := feedSourceStruct.SelectFrom(feedSourcesTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("active", true), sb.IsNotNull("feed_url"))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	sources := []models.FeedSource{}
	err = r.Q(ctx).SelectContext(ctx, &sources, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active feed sources")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active feed sources")
	}

	return sources, nil
}

// ListAllActive retrieves active syncable feed sources across all tenants.
// Cross-tenant: used only by the background scheduler.
func (r *FeedSourceRepository) ListAllActive(ctx context.Context) ([]models.FeedSource, error) {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.ListAllActive")
	defer span.End()

	sb := feedSourceStruct.SelectFrom(feedSourcesTable)
	sb.Where(sb.Equal("active", true), sb.IsNotNull("feed_url"))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	sources := []models.FeedSource{}
	err := r.Q(ctx).SelectContext(ctx, &sources, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active feed sources across tenants")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active feed sources")
	}

	return sources, nil
}

// GetOrCreateDirect returns the property's "direct" bucket source, creating
// it on first use. Direct sources have no URL and are never synced.
func (r *FeedSourceRepository) GetOrCreateDirect(ctx context.Context, propertyID uuid.UUID) (*models.FeedSource, error) {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.GetOrCreateDirect")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := feedSourceStruct.SelectFrom(feedSourcesTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("property_id", propertyID),
		sb.Equal("platform", models.PlatformDirect),
	)

	query, args := sb.Build()
	var source models.FeedSource
	err = r.Q(ctx).GetContext(ctx, &source, query, args...)
	if err == nil {
		return &source, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.WithContext(ctx).WithError(err).Error("failed to look up direct feed source")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up direct feed source")
	}

	source = models.FeedSource{
		TenantID:   tenantID,
		PropertyID: propertyID,
		Platform:   models.PlatformDirect,
		Active:     true,
	}
	if err := r.Create(ctx, &source); err != nil {
		return nil, err
	}

	return &source, nil
}

// Update updates a feed source's owner-editable fields (tenant-scoped)
func (r *FeedSourceRepository) Update(ctx context.Context, source *models.FeedSource) error {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.Update")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(feedSourcesTable)
	ub.Set(
		ub.Assign("platform", source.Platform),
		ub.Assign("feed_url", source.FeedURL),
		ub.Assign("active", source.Active),
		ub.Assign("settings", source.Settings),
		"updated_at = NOW()",
	)
	ub.Where(ub.Equal("tenant_id", tenantID), ub.Equal("id", source.ID))

	query, args := ub.Build()
	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"feed_source_id": source.ID,
		}).Error("failed to update feed source")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update feed source")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("feed source %s does not exist", source.ID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"feed_source_id": source.ID,
	}).Debugf("Updated %s", feedSourcesTable)
	return nil
}

// UpdateSyncStatus records the outcome of a sync attempt. Keyed by ID without
// a tenant filter so the scheduler can record results for any tenant's feeds.
func (r *FeedSourceRepository) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, syncErr *string) error {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.UpdateSyncStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(feedSourcesTable)
	ub.Set(
		ub.Assign("last_sync_status", status),
		ub.Assign("last_error", syncErr),
		"last_synced_at = NOW()",
		"updated_at = NOW()",
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"feed_source_id": id,
		}).Error("failed to update feed source sync status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update feed source sync status")
	}

	return nil
}

// Delete removes a feed source; its events cascade
func (r *FeedSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "FeedSourceRepository.Delete")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return err
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(feedSourcesTable)
	db.Where(db.Equal("tenant_id", tenantID), db.Equal("id", id))

	query, args := db.Build()
	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"feed_source_id": id,
		}).Error("failed to delete feed source")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete feed source")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("feed source %s does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"feed_source_id": id,
	}).Debugf("Deleted %s", feedSourcesTable)
	return nil
}
