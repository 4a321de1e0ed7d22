package sync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/sync"
)

func testSource() *models.FeedSource {
	return &models.FeedSource{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		PropertyID: uuid.New(),
		Platform:   "airbnb",
		Active:     true,
	}
}

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	source := testSource()

	parsed := []feed.ParsedEvent{
		{ExternalKey: "a", Start: date(2025, 6, 1), End: date(2025, 6, 4), Summary: "Reserved - Jane Smith", GuestName: "Jane Smith"},
		{ExternalKey: "b", Start: date(2025, 6, 10), End: date(2025, 6, 15), Summary: "Reserved"},
	}

	t.Run("first run inserts everything", func(t *testing.T) {
		events := &fakeEventRepo{}
		db := &fakeDB{}
		reconciler := sync.NewReconciler(db, events, getTestLogger())

		result, err := reconciler.Reconcile(ctx, source, parsed)
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Inserted: 2}, result)
		assert.True(t, db.lastTx.committed)

		require.Len(t, events.events, 2)
		a := events.byKey("a")
		require.NotNil(t, a)
		assert.Equal(t, source.TenantID, a.TenantID)
		assert.Equal(t, source.PropertyID, a.PropertyID)
		assert.Equal(t, models.EventStatusConfirmed, a.Status)
		assert.Equal(t, "airbnb", a.Origin)
		require.NotNil(t, a.GuestName)
		assert.Equal(t, "Jane Smith", *a.GuestName)
	})

	t.Run("identical second run is a no-op", func(t *testing.T) {
		events := &fakeEventRepo{}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		_, err := reconciler.Reconcile(ctx, source, parsed)
		require.NoError(t, err)

		result, err := reconciler.Reconcile(ctx, source, parsed)
		require.NoError(t, err)
		assert.True(t, result.IsNoop())
		assert.Len(t, events.events, 2)
	})

	t.Run("changed dates update in place", func(t *testing.T) {
		events := &fakeEventRepo{}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		_, err := reconciler.Reconcile(ctx, source, parsed)
		require.NoError(t, err)
		originalID := events.byKey("a").ID

		moved := []feed.ParsedEvent{
			{ExternalKey: "a", Start: date(2025, 6, 2), End: date(2025, 6, 5), Summary: "Reserved - Jane Smith", GuestName: "Jane Smith"},
			parsed[1],
		}
		result, err := reconciler.Reconcile(ctx, source, moved)
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Updated: 1}, result)

		a := events.byKey("a")
		assert.Equal(t, originalID, a.ID, "update must keep the row, not replace it")
		assert.Equal(t, date(2025, 6, 2), a.StartDate)
		assert.Equal(t, date(2025, 6, 5), a.EndDate)
	})

	t.Run("missing keys delete", func(t *testing.T) {
		events := &fakeEventRepo{}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		_, err := reconciler.Reconcile(ctx, source, parsed)
		require.NoError(t, err)

		result, err := reconciler.Reconcile(ctx, source, parsed[:1])
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Deleted: 1}, result)
		assert.Len(t, events.events, 1)
		assert.Nil(t, events.byKey("b"))
	})

	t.Run("empty feed clears the source's events", func(t *testing.T) {
		events := &fakeEventRepo{}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		_, err := reconciler.Reconcile(ctx, source, parsed)
		require.NoError(t, err)

		result, err := reconciler.Reconcile(ctx, source, nil)
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Deleted: 2}, result)
		assert.Empty(t, events.events)
	})

	t.Run("events from other sources are untouched", func(t *testing.T) {
		otherSourceID := uuid.New()
		events := &fakeEventRepo{
			events: []models.CalendarEvent{
				{
					ID:           uuid.New(),
					PropertyID:   source.PropertyID,
					FeedSourceID: &otherSourceID,
					ExternalKey:  "other",
					StartDate:    date(2025, 6, 1),
					EndDate:      date(2025, 6, 4),
					Status:       models.EventStatusConfirmed,
				},
			},
		}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		result, err := reconciler.Reconcile(ctx, source, nil)
		require.NoError(t, err)
		assert.True(t, result.IsNoop())
		assert.NotNil(t, events.byKey("other"))
	})

	t.Run("duplicate external keys keep the first occurrence", func(t *testing.T) {
		events := &fakeEventRepo{}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		dupes := []feed.ParsedEvent{
			{ExternalKey: "a", Start: date(2025, 6, 1), End: date(2025, 6, 4), Summary: "first"},
			{ExternalKey: "a", Start: date(2025, 6, 20), End: date(2025, 6, 22), Summary: "second"},
		}
		result, err := reconciler.Reconcile(ctx, source, dupes)
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Inserted: 1}, result)
		assert.Equal(t, "first", events.byKey("a").Title)
	})

	t.Run("rotated external key on identical dates deletes before inserting", func(t *testing.T) {
		events := &fakeEventRepo{}
		reconciler := sync.NewReconciler(&fakeDB{}, events, getTestLogger())

		// A guest cancels and rebooks: same dates, fresh upstream UID. The
		// stale row must be gone before its replacement lands or the
		// no-overlap constraint rejects the insert.
		_, err := reconciler.Reconcile(ctx, source, []feed.ParsedEvent{
			{ExternalKey: "old-uid", Start: date(2025, 6, 10), End: date(2025, 6, 15), Summary: "Reserved"},
		})
		require.NoError(t, err)
		events.ops = nil

		result, err := reconciler.Reconcile(ctx, source, []feed.ParsedEvent{
			{ExternalKey: "new-uid", Start: date(2025, 6, 10), End: date(2025, 6, 15), Summary: "Reserved"},
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Inserted: 1, Deleted: 1}, result)
		assert.Equal(t, []string{"delete:old-uid", "create:new-uid"}, events.ops)
		assert.Nil(t, events.byKey("old-uid"))
		assert.NotNil(t, events.byKey("new-uid"))
	})

	t.Run("write failure reports progress and wraps the cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		events := &fakeEventRepo{createErrAfter: 1, createErr: cause}
		db := &fakeDB{}
		reconciler := sync.NewReconciler(db, events, getTestLogger())

		_, err := reconciler.Reconcile(ctx, source, parsed)
		require.Error(t, err)

		var recErr *sync.ReconciliationError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, source.ID, recErr.FeedID)
		assert.Equal(t, 1, recErr.Applied.Inserted)
		assert.ErrorIs(t, err, cause)
		assert.False(t, db.lastTx.committed)
	})
}
