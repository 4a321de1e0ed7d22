package models_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestBatchReport_Add(t *testing.T) {
	var report models.BatchReport

	report.Add(models.FeedSyncResult{
		FeedSourceID: uuid.New(),
		Platform:     "airbnb",
		Result:       models.ReconcileResult{Inserted: 2, Updated: 1},
	})
	report.Add(models.FeedSyncResult{
		FeedSourceID: uuid.New(),
		Platform:     "vrbo",
		Skipped:      true,
	})
	failed := uuid.New()
	report.Add(models.FeedSyncResult{
		FeedSourceID: failed,
		Platform:     "airbnb",
		Error:        "fetch failed",
	})

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Deleted)
	if assert.Len(t, report.Errors, 1) {
		assert.Contains(t, report.Errors[0], failed.String())
	}
}

func TestReconcileResult_IsNoop(t *testing.T) {
	assert.True(t, models.ReconcileResult{}.IsNoop())
	assert.False(t, models.ReconcileResult{Inserted: 1}.IsNoop())
	assert.False(t, models.ReconcileResult{Deleted: 1}.IsNoop())
}

func TestCalendarEvent_Nights(t *testing.T) {
	event := models.CalendarEvent{
		StartDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 5, event.Nights())
}
