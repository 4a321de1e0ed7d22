package booking

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Overlaps is the single authoritative overlap test for half-open [start, end)
// date ranges. An existing event conflicts with a candidate range iff
// existing.start < candidateEnd AND existing.end > candidateStart, so an event
// ending on the candidate's start date (same-day turnover) is not a conflict.
// Every path that creates a blocking event must go through this predicate
// rather than reimplementing interval math.
func Overlaps(existingStart, existingEnd, candidateStart, candidateEnd time.Time) bool {
	return existingStart.Before(candidateEnd) && existingEnd.After(candidateStart)
}

// Detector answers whether a candidate date range collides with existing
// events for a property. It always reads the authoritative store, never a
// cache.
type Detector struct {
	events repositories.CalendarEventRepo
	logger ectologger.Logger
}

// NewDetector creates a Detector over the event store
func NewDetector(events repositories.CalendarEventRepo, logger ectologger.Logger) *Detector {
	return &Detector{
		events: events,
		logger: logger,
	}
}

// Detect returns the events for propertyID whose [start_date, end_date)
// overlaps [start, end) and whose status is in statuses. A nil or empty
// statuses means the default blocking set {confirmed, blocked}. excludeID,
// when set, omits that event so updates don't conflict with themselves.
func (d *Detector) Detect(ctx context.Context, propertyID uuid.UUID, start, end time.Time, statuses []models.EventStatus, excludeID *uuid.UUID) ([]models.CalendarEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "Detector.Detect")
	defer span.End()

	if !start.Before(end) {
		return nil, repositories.BadRequest("start date must be before end date")
	}

	if len(statuses) == 0 {
		statuses = models.BlockingStatuses()
	}

	candidates, err := d.events.FindOverlapping(ctx, propertyID, start, end, statuses, excludeID)
	if err != nil {
		return nil, err
	}

	// The query already mirrors the predicate; filtering here keeps Overlaps
	// the one place boundary semantics live.
	conflicts := make([]models.CalendarEvent, 0, len(candidates))
	for _, ev := range candidates {
		if Overlaps(ev.StartDate, ev.EndDate, start, end) {
			conflicts = append(conflicts, ev)
		}
	}

	if len(conflicts) > 0 {
		d.logger.WithContext(ctx).WithFields(map[string]any{
			"property_id": propertyID,
			"conflicts":   len(conflicts),
		}).Debugf("Found conflicting events for %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	return conflicts, nil
}
