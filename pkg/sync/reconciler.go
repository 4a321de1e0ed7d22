package sync

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ReconciliationError aborts one feed's reconciliation. Applied reports how
// far the run got before the transaction rolled back; other feeds in the same
// batch are unaffected.
type ReconciliationError struct {
	FeedID  uuid.UUID
	Applied models.ReconcileResult
	Err     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for feed %s after %d inserts, %d updates, %d deletes: %v",
		e.FeedID, e.Applied.Inserted, e.Applied.Updated, e.Applied.Deleted, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// Reconciler diffs parsed feed events against the stored events of one feed
// source and applies the difference.
type Reconciler struct {
	db     database.DB
	events repositories.CalendarEventRepo
	logger ectologger.Logger
}

// NewReconciler creates a Reconciler
func NewReconciler(db database.DB, events repositories.CalendarEventRepo, logger ectologger.Logger) *Reconciler {
	return &Reconciler{
		db:     db,
		events: events,
		logger: logger,
	}
}

// Reconcile applies one feed's parsed events to storage, joined on
// external_key: unknown keys insert, known keys update only when a field
// actually changed, and stored keys missing from the feed delete. All writes
// for the feed share one transaction, so a second run against identical feed
// content is a true no-op ({0,0,0}) regardless of unrelated writes to other
// feed sources in between.
func (r *Reconciler) Reconcile(ctx context.Context, source *models.FeedSource, parsed []feed.ParsedEvent) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	var result models.ReconcileResult

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return result, &ReconciliationError{FeedID: source.ID, Err: err}
	}
	defer tx.Rollback(ctx)

	// A feed snapshot can move several stays at once; mid-transaction states
	// may overlap even though the final state does not. Check the exclusion
	// constraint at commit instead of per statement.
	if _, err := tx.ExecContext(ctx, "SET CONSTRAINTS calendar_events_no_overlap DEFERRED"); err != nil {
		return result, &ReconciliationError{FeedID: source.ID, Err: err}
	}

	stored, err := r.events.ListByFeedSource(ctx, source.ID)
	if err != nil {
		return result, &ReconciliationError{FeedID: source.ID, Err: err}
	}

	storedByKey := make(map[string]*models.CalendarEvent, len(stored))
	for i := range stored {
		storedByKey[stored[i].ExternalKey] = &stored[i]
	}

	if len(parsed) == 0 && len(stored) > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"feed_source_id": source.ID,
			"stored":         len(stored),
		}).Warnf("Feed produced zero events; removing all %d stored events", len(stored))
	}

	seen := make(map[string]bool, len(parsed))
	incoming := make([]feed.ParsedEvent, 0, len(parsed))
	for _, pe := range parsed {
		if seen[pe.ExternalKey] {
			r.logger.WithContext(ctx).Warnf("Duplicate external key %q in feed %s, keeping first occurrence", pe.ExternalKey, source.ID)
			continue
		}
		seen[pe.ExternalKey] = true
		incoming = append(incoming, pe)
	}

	// Deletions go first: a booking that reappears under a fresh upstream key
	// (cancel-and-rebook, platform UID churn) must not collide with the stale
	// row it replaces.
	for key, existing := range storedByKey {
		if seen[key] {
			continue
		}
		// The upstream booking was cancelled or fell out of the feed's window.
		if err := r.events.Delete(ctx, existing.ID); err != nil {
			return result, &ReconciliationError{FeedID: source.ID, Applied: result, Err: err}
		}
		result.Deleted++
	}

	for _, pe := range incoming {
		existing, ok := storedByKey[pe.ExternalKey]
		if !ok {
			event := newEventFromParsed(source, pe)
			if err := r.events.Create(ctx, event); err != nil {
				return result, &ReconciliationError{FeedID: source.ID, Applied: result, Err: err}
			}
			result.Inserted++
			continue
		}

		if !needsUpdate(existing, pe) {
			continue
		}

		existing.Title = pe.Summary
		existing.StartDate = pe.Start
		existing.EndDate = pe.End
		existing.GuestName = optional(pe.GuestName)
		if err := r.events.Update(ctx, existing); err != nil {
			return result, &ReconciliationError{FeedID: source.ID, Applied: result, Err: err}
		}
		result.Updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ReconcileResult{}, &ReconciliationError{FeedID: source.ID, Applied: result, Err: err}
	}

	metrics.EventsReconciled.WithLabelValues("inserted").Add(float64(result.Inserted))
	metrics.EventsReconciled.WithLabelValues("updated").Add(float64(result.Updated))
	metrics.EventsReconciled.WithLabelValues("deleted").Add(float64(result.Deleted))

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"feed_source_id": source.ID,
		"inserted":       result.Inserted,
		"updated":        result.Updated,
		"deleted":        result.Deleted,
	}).Debugf("Reconciled feed %s", source.ID)

	return result, nil
}

func newEventFromParsed(source *models.FeedSource, pe feed.ParsedEvent) *models.CalendarEvent {
	return &models.CalendarEvent{
		TenantID:     source.TenantID,
		PropertyID:   source.PropertyID,
		FeedSourceID: &source.ID,
		Title:        pe.Summary,
		StartDate:    pe.Start,
		EndDate:      pe.End,
		Status:       models.EventStatusConfirmed,
		Origin:       source.Platform,
		ExternalKey:  pe.ExternalKey,
		GuestName:    optional(pe.GuestName),
	}
}

// needsUpdate reports whether any reconciled field differs between the stored
// event and its parsed counterpart. Identical rows produce no write.
func needsUpdate(existing *models.CalendarEvent, pe feed.ParsedEvent) bool {
	if !existing.StartDate.Equal(pe.Start) || !existing.EndDate.Equal(pe.End) {
		return true
	}
	if existing.Title != pe.Summary {
		return true
	}
	storedName := ""
	if existing.GuestName != nil {
		storedName = *existing.GuestName
	}
	return storedName != pe.GuestName
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
