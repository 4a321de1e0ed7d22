package booking

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrNoStay is returned when no confirmed event matches the phone fragment
// for today. Distinct from an ambiguous-but-resolved match.
var ErrNoStay = errors.New("no active stay matches")

// StayConfig is the turnover policy: published check-in/check-out wall times
// and the grace windows around them. Policy, not invariant, so it lives in
// configuration.
type StayConfig struct {
	CheckInHour    int
	CheckOutHour   int
	ArrivalGrace   time.Duration
	DepartureGrace time.Duration
}

// Resolution is the outcome of a stay lookup. Ambiguous is set when more than
// one event matched and a priority rule picked the winner.
type Resolution struct {
	Event     *models.CalendarEvent `json:"event"`
	Ambiguous bool                  `json:"ambiguous"`
}

// StayResolver decides which event is "the guest's current stay", which on
// turnover days requires more than a date check.
type StayResolver struct {
	events repositories.CalendarEventRepo
	cfg    StayConfig
	logger ectologger.Logger
}

// NewStayResolver creates a StayResolver
func NewStayResolver(events repositories.CalendarEventRepo, cfg StayConfig, logger ectologger.Logger) *StayResolver {
	return &StayResolver{
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

// Resolve finds the guest's active stay for the property at the given time.
// Matching events are confirmed events whose inclusive [start, end] contains
// today and whose guest phone ends with phoneFragment; end-inclusive because
// a departing guest still physically occupies the property on checkout day.
func (r *StayResolver) Resolve(ctx context.Context, propertyID uuid.UUID, phoneFragment string, now time.Time) (*Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "StayResolver.Resolve")
	defer span.End()

	if phoneFragment == "" {
		return nil, repositories.BadRequest("phone fragment is required")
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	matches, err := r.events.FindCurrentStays(ctx, propertyID, phoneFragment, today)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, ErrNoStay
	}
	if len(matches) == 1 {
		return &Resolution{Event: &matches[0]}, nil
	}

	event := r.pickStay(matches, today, now)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"property_id": propertyID,
		"matches":     len(matches),
		"event_id":    event.ID,
	}).Warnf("Ambiguous stay lookup resolved by turnover rules")

	return &Resolution{Event: event, Ambiguous: true}, nil
}

// pickStay applies the turnover priority rules to multiple matches. matches
// are ordered newest-created first, which also serves as the final fallback.
func (r *StayResolver) pickStay(matches []models.CalendarEvent, today, now time.Time) *models.CalendarEvent {
	// Rule 1: a mid-stay guest wins outright.
	for i := range matches {
		if matches[i].StartDate.Before(today) && matches[i].EndDate.After(today) {
			return &matches[i]
		}
	}

	checkIn := today.Add(time.Duration(r.cfg.CheckInHour) * time.Hour)
	checkOut := today.Add(time.Duration(r.cfg.CheckOutHour) * time.Hour)

	// Rule 2: single-day stay (starts and ends today) always matches.
	for i := range matches {
		if matches[i].StartDate.Equal(today) && matches[i].EndDate.Equal(today) {
			return &matches[i]
		}
	}

	// Rule 3: arriving today, once the clock is inside the check-in grace.
	if !now.Before(checkIn.Add(-r.cfg.ArrivalGrace)) {
		for i := range matches {
			if matches[i].StartDate.Equal(today) {
				return &matches[i]
			}
		}
	}

	// Rule 4: departing today, while still inside the check-out grace.
	if !now.After(checkOut.Add(r.cfg.DepartureGrace)) {
		for i := range matches {
			if matches[i].EndDate.Equal(today) {
				return &matches[i]
			}
		}
	}

	// Fallback: the most recently created match.
	return &matches[0]
}
