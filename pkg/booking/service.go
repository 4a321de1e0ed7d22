package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ConflictError is the normal outcome of trying to book taken dates. It
// carries the conflicting events so callers can report which dates are taken.
type ConflictError struct {
	Conflicts []models.CalendarEvent
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("requested dates conflict with %d existing event(s)", len(e.Conflicts))
}

// Service owns the direct booking paths: create, cancel, availability.
type Service struct {
	db       database.DB
	feeds    repositories.FeedSourceRepo
	events   repositories.CalendarEventRepo
	detector *Detector
	cache    *redis.CalendarCache
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewService creates a booking Service
func NewService(
	db database.DB,
	feeds repositories.FeedSourceRepo,
	events repositories.CalendarEventRepo,
	detector *Detector,
	cache *redis.CalendarCache,
	producer *kafka.Producer,
	logger ectologger.Logger,
) *Service {
	return &Service{
		db:       db,
		feeds:    feeds,
		events:   events,
		detector: detector,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// CreateBooking inserts a direct booking after conflict-checking it. The
// check and the insert run in one transaction; the storage exclusion
// constraint backs up the check against writers that slip in between.
func (s *Service) CreateBooking(ctx context.Context, event *models.CalendarEvent) error {
	ctx, span := tracing.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if !event.StartDate.Before(event.EndDate) {
		return repositories.BadRequest("start date must be before end date")
	}

	if event.Status == "" {
		event.Status = models.EventStatusConfirmed
	}
	if event.Origin == "" {
		event.Origin = models.PlatformDirect
	}
	if event.ExternalKey == "" {
		event.ExternalKey = fmt.Sprintf("direct-%s", uuid.New())
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	direct, err := s.feeds.GetOrCreateDirect(ctx, event.PropertyID)
	if err != nil {
		return err
	}
	event.FeedSourceID = &direct.ID
	event.TenantID = direct.TenantID

	conflicts, err := s.detector.Detect(ctx, event.PropertyID, event.StartDate, event.EndDate, nil, nil)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		metrics.BookingConflicts.Inc()
		return &ConflictError{Conflicts: conflicts}
	}

	err = s.events.Create(ctx, event)
	if errors.Is(err, repositories.ErrOverlap) {
		// A concurrent writer won the race; report whatever blocks now.
		conflicts, derr := s.detector.Detect(ctx, event.PropertyID, event.StartDate, event.EndDate, nil, nil)
		if derr != nil || len(conflicts) == 0 {
			return &ConflictError{}
		}
		metrics.BookingConflicts.Inc()
		return &ConflictError{Conflicts: conflicts}
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	metrics.BookingsCreated.Inc()
	s.afterChange(ctx, event.TenantID, event.PropertyID, event.FeedSourceID, "booking", models.ReconcileResult{Inserted: 1})

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id":    event.ID,
		"property_id": event.PropertyID,
	}).Infof("Created direct booking %s to %s", event.StartDate.Format("2006-01-02"), event.EndDate.Format("2006-01-02"))
	return nil
}

// CancelBooking marks a direct booking cancelled. Cancelled events stop
// blocking dates but stay on the books.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "BookingService.CancelBooking")
	defer span.End()

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Feed-ingested events belong to their upstream feed. Cancelling one
	// locally would unblock its dates while the platform still holds the
	// reservation, and the next sync would see no field change to restore.
	if event.Origin != models.PlatformDirect {
		return repositories.BadRequest("only direct bookings can be cancelled; feed events are managed by their upstream feed")
	}

	if err := s.events.Cancel(ctx, id); err != nil {
		return err
	}

	s.afterChange(ctx, event.TenantID, event.PropertyID, event.FeedSourceID, "cancellation", models.ReconcileResult{Updated: 1})

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id":    id,
		"property_id": event.PropertyID,
	}).Infof("Cancelled booking")
	return nil
}

// Availability reports whether [start, end) is free for the property, along
// with whatever blocks it.
func (s *Service) Availability(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, []models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "BookingService.Availability")
	defer span.End()

	conflicts, err := s.detector.Detect(ctx, propertyID, start, end, nil, nil)
	if err != nil {
		return false, nil, err
	}

	return len(conflicts) == 0, conflicts, nil
}

// afterChange runs the post-write fanout: drop the property's cached
// calendar and tell the rest of the platform. Neither failure unwinds the
// write; both are logged.
func (s *Service) afterChange(ctx context.Context, tenantID, propertyID uuid.UUID, feedSourceID *uuid.UUID, trigger string, result models.ReconcileResult) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, propertyID)
	}

	if s.producer == nil {
		return
	}

	msg := &kafka.CalendarChangedMessage{
		TenantID:   tenantID.String(),
		PropertyID: propertyID.String(),
		Trigger:    trigger,
		Inserted:   result.Inserted,
		Updated:    result.Updated,
		Deleted:    result.Deleted,
	}
	if feedSourceID != nil {
		msg.FeedSourceID = feedSourceID.String()
	}

	if err := s.producer.PublishCalendarChanged(ctx, msg); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("Failed to publish calendar change for property %s", propertyID)
	}
}
