package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const calendarEventsTable = "calendar_events"

// Postgres error codes surfaced as typed errors
const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

// ErrOverlap is returned when an insert or update trips the storage-level
// no-overlap exclusion constraint. It backs up the conflict detector against
// concurrent writers.
var ErrOverlap = errors.New("calendar event overlaps an existing blocking event")

// ErrDuplicateKey is returned when (feed_source_id, external_key) already exists
var ErrDuplicateKey = errors.New("calendar event external key already exists for this feed source")

var calendarEventStruct = database.NewStruct(new(models.CalendarEvent))

// CalendarEventRepository handles database operations for calendar events
type CalendarEventRepository struct {
	*Repository
}

// NewCalendarEventRepository creates a new calendar event repository
func NewCalendarEventRepository(db database.DB, logger ectologger.Logger) *CalendarEventRepository {
	return &CalendarEventRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a calendar event. TenantID may be pre-set by the sync engine;
// otherwise it is taken from the request context.
func (r *CalendarEventRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.Create")
	defer span.End()

	if event.TenantID == uuid.Nil {
		tenantID, err := GetTenantID(ctx)
		if err != nil {
			return err
		}
		event.TenantID = tenantID
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(calendarEventsTable).
		Cols("id", "tenant_id", "property_id", "feed_source_id", "title", "start_date", "end_date",
			"status", "origin", "external_key", "guest_name", "guest_email", "guest_phone", "guest_count",
			"notes", "created_at", "updated_at").
		Values(event.ID, event.TenantID, event.PropertyID, event.FeedSourceID, event.Title,
			event.StartDate, event.EndDate, event.Status, event.Origin, event.ExternalKey,
			event.GuestName, event.GuestEmail, event.GuestPhone, event.GuestCount, event.Notes,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.Q(ctx).QueryRowContext(ctx, query, args...).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if typed := typedWriteError(err); typed != nil {
			return typed
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id":    event.ID,
			"property_id": event.PropertyID,
		}).Error("failed to create calendar event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create calendar event")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id":    event.ID,
		"property_id": event.PropertyID,
	}).Debugf("Created %s", calendarEventsTable)
	return nil
}

// GetByID retrieves a calendar event by ID (tenant-scoped)
func (r *CalendarEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.GetByID")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := calendarEventStruct.SelectFrom(calendarEventsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", id))

	query, args := sb.Build()
	var event models.CalendarEvent
	err = r.Q(ctx).GetContext(ctx, &event, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "calendar event %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": id,
		}).Error("failed to get calendar event by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get calendar event by ID")
	}

	return &event, nil
}

// ListByProperty retrieves all events for a property (tenant-scoped)
func (r *CalendarEventRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.ListByProperty")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := calendarEventStruct.SelectFrom(calendarEventsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("property_id", propertyID))
	sb.OrderBy("start_date").Asc()

	query, args := sb.Build()
	events := []models.CalendarEvent{}
	err = r.Q(ctx).SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"property_id": propertyID,
		}).Error("failed to list calendar events by property")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list calendar events")
	}

	return events, nil
}

// ListForCalendar retrieves a property's events for the public calendar
// export. Cross-tenant: the export URL carries no tenant context.
func (r *CalendarEventRepository) ListForCalendar(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.ListForCalendar")
	defer span.End()

	sb := calendarEventStruct.SelectFrom(calendarEventsTable)
	sb.Where(sb.Equal("property_id", propertyID), sb.NotEqual("status", models.EventStatusCancelled))
	sb.OrderBy("start_date").Asc()

	query, args := sb.Build()
	events := []models.CalendarEvent{}
	err := r.Q(ctx).SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"property_id": propertyID,
		}).Error("failed to list calendar events for export")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list calendar events")
	}

	return events, nil
}

// ListByFeedSource retrieves all events owned by a feed source. Keyed by the
// source ID without a tenant filter so the sync engine can reconcile any
// tenant's feeds.
func (r *CalendarEventRepository) ListByFeedSource(ctx context.Context, feedSourceID uuid.UUID) ([]models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.ListByFeedSource")
	defer span.End()

	sb := calendarEventStruct.SelectFrom(calendarEventsTable)
	sb.Where(sb.Equal("feed_source_id", feedSourceID))

	query, args := sb.Build()
	events := []models.CalendarEvent{}
	err := r.Q(ctx).SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"feed_source_id": feedSourceID,
		}).Error("failed to list calendar events by feed source")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list calendar events")
	}

	return events, nil
}

// FindOverlapping returns events for the property whose half-open [start_date,
// end_date) interval overlaps [start, end) and whose status is in statuses.
// This query is the conflict detector's storage backend and always reads the
// authoritative table, never a cache.
func (r *CalendarEventRepository) FindOverlapping(ctx context.Context, propertyID uuid.UUID, start, end time.Time, statuses []models.EventStatus, excludeID *uuid.UUID) ([]models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.FindOverlapping")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	if len(statuses) == 0 {
		statuses = models.BlockingStatuses()
	}
	statusArgs := make([]any, len(statuses))
	for i, s := range statuses {
		statusArgs[i] = s
	}

	sb := calendarEventStruct.SelectFrom(calendarEventsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("property_id", propertyID),
		sb.In("status", statusArgs...),
		sb.LessThan("start_date", end),
		sb.GreaterThan("end_date", start),
	)
	if excludeID != nil {
		sb.Where(sb.NotEqual("id", *excludeID))
	}
	sb.OrderBy("start_date").Asc()

	query, args := sb.Build()
	events := []models.CalendarEvent{}
	err = r.Q(ctx).SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"property_id": propertyID,
		}).Error("failed to find overlapping calendar events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find overlapping calendar events")
	}

	return events, nil
}

// FindCurrentStays returns confirmed events whose inclusive [start_date,
// end_date] contains day and whose guest phone ends with phoneFragment,
// newest first. Inclusive on both ends: this is about physical occupancy on
// turnover days, not booking exclusivity.
func (r *CalendarEventRepository) FindCurrentStays(ctx context.Context, propertyID uuid.UUID, phoneFragment string, day time.Time) ([]models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.FindCurrentStays")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return nil, err
	}

	sb := calendarEventStruct.SelectFrom(calendarEventsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("property_id", propertyID),
		sb.Equal("status", models.EventStatusConfirmed),
		sb.IsNotNull("guest_phone"),
		sb.Like("guest_phone", "%"+phoneFragment),
		sb.LessEqualThan("start_date", day),
		sb.GreaterEqualThan("end_date", day),
	)
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	events := []models.CalendarEvent{}
	err = r.Q(ctx).SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"property_id": propertyID,
		}).Error("failed to find current stays")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find current stays")
	}

	return events, nil
}

// Update rewrites an event's mutable fields. Keyed by ID without a tenant
// filter; the sync engine owns rows across tenants.
func (r *CalendarEventRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(calendarEventsTable)
	ub.Set(
		ub.Assign("title", event.Title),
		ub.Assign("start_date", event.StartDate),
		ub.Assign("end_date", event.EndDate),
		ub.Assign("status", event.Status),
		ub.Assign("guest_name", event.GuestName),
		ub.Assign("guest_email", event.GuestEmail),
		ub.Assign("guest_phone", event.GuestPhone),
		ub.Assign("guest_count", event.GuestCount),
		ub.Assign("notes", event.Notes),
		"updated_at = NOW()",
	)
	ub.Where(ub.Equal("id", event.ID))

	query, args := ub.Build()
	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if typed := typedWriteError(err); typed != nil {
			return typed
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": event.ID,
		}).Error("failed to update calendar event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update calendar event")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("calendar event %s does not exist", event.ID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id": event.ID,
	}).Debugf("Updated %s", calendarEventsTable)
	return nil
}

// Cancel marks a direct booking as cancelled (tenant-scoped)
func (r *CalendarEventRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.Cancel")
	defer span.End()

	tenantID, err := GetTenantID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(calendarEventsTable)
	ub.Set(
		ub.Assign("status", models.EventStatusCancelled),
		"updated_at = NOW()",
	)
	ub.Where(ub.Equal("tenant_id", tenantID), ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": id,
		}).Error("failed to cancel calendar event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to cancel calendar event")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("calendar event %s does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id": id,
	}).Debugf("Cancelled %s", calendarEventsTable)
	return nil
}

// Delete removes an event by ID. Keyed by ID without a tenant filter; used by
// the reconciler when an external key vanishes upstream.
func (r *CalendarEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "CalendarEventRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(calendarEventsTable)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": id,
		}).Error("failed to delete calendar event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete calendar event")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NotFound("calendar event %s does not exist", id)
	}

	return nil
}

// typedWriteError maps Postgres constraint violations onto the sentinels the
// engine reacts to, or nil for anything else.
func typedWriteError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch string(pqErr.Code) {
	case pgExclusionViolation:
		return ErrOverlap
	case pgUniqueViolation:
		return ErrDuplicateKey
	}
	return nil
}
