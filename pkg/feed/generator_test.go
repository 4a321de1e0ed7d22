package feed_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/models"
)

func exportEvent(key string, start, end time.Time, status models.EventStatus) models.CalendarEvent {
	return models.CalendarEvent{
		ID:          uuid.New(),
		PropertyID:  uuid.New(),
		ExternalKey: key,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerator_Generate(t *testing.T) {
	generator := feed.NewGenerator(getTestLogger())
	ctx := context.Background()

	t.Run("produces a publishable calendar", func(t *testing.T) {
		events := []models.CalendarEvent{
			exportEvent("stay-1", date(2025, 6, 10), date(2025, 6, 15), models.EventStatusConfirmed),
		}

		ics := generator.Generate(ctx, events)
		assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR"))
		assert.Contains(t, ics, "METHOD:PUBLISH")
		assert.Contains(t, ics, "UID:stay-1")
		assert.Contains(t, ics, "DTSTART;VALUE=DATE:20250610")
		assert.Contains(t, ics, "DTEND;VALUE=DATE:20250615")
	})

	t.Run("round-trips through the parser", func(t *testing.T) {
		parser := feed.NewParser(getTestLogger(), testHorizon)
		events := []models.CalendarEvent{
			exportEvent("stay-2", date(2025, 7, 1), date(2025, 7, 4), models.EventStatusConfirmed),
			exportEvent("stay-1", date(2025, 6, 10), date(2025, 6, 15), models.EventStatusConfirmed),
		}

		ics := generator.Generate(ctx, events)
		parsed := parser.Parse(ctx, []byte(ics), "export", "")
		require.Len(t, parsed, 2)

		// Output is ordered by start date regardless of input order.
		assert.Equal(t, "stay-1", parsed[0].ExternalKey)
		assert.Equal(t, date(2025, 6, 10), parsed[0].Start)
		assert.Equal(t, date(2025, 6, 15), parsed[0].End)
		assert.Equal(t, "stay-2", parsed[1].ExternalKey)
		assert.Equal(t, date(2025, 7, 1), parsed[1].Start)
		assert.Equal(t, date(2025, 7, 4), parsed[1].End)
	})

	t.Run("cancelled events are excluded", func(t *testing.T) {
		events := []models.CalendarEvent{
			exportEvent("kept", date(2025, 6, 10), date(2025, 6, 15), models.EventStatusConfirmed),
			exportEvent("gone", date(2025, 6, 20), date(2025, 6, 25), models.EventStatusCancelled),
		}

		ics := generator.Generate(ctx, events)
		assert.Contains(t, ics, "UID:kept")
		assert.NotContains(t, ics, "UID:gone")
	})

	t.Run("summary falls back by status", func(t *testing.T) {
		reserved := exportEvent("r-1", date(2025, 6, 10), date(2025, 6, 12), models.EventStatusConfirmed)
		blocked := exportEvent("b-1", date(2025, 6, 20), date(2025, 6, 22), models.EventStatusBlocked)
		titled := exportEvent("t-1", date(2025, 7, 1), date(2025, 7, 3), models.EventStatusConfirmed)
		titled.Title = "Maintenance window"

		ics := generator.Generate(ctx, []models.CalendarEvent{reserved, blocked, titled})
		assert.Contains(t, ics, "SUMMARY:Reserved")
		assert.Contains(t, ics, "SUMMARY:Blocked")
		assert.Contains(t, ics, "SUMMARY:Maintenance window")
	})

	t.Run("missing external key falls back to the row id", func(t *testing.T) {
		ev := exportEvent("", date(2025, 6, 10), date(2025, 6, 12), models.EventStatusConfirmed)

		ics := generator.Generate(ctx, []models.CalendarEvent{ev})
		assert.Contains(t, ics, "UID:clover-"+ev.ID.String()+"@clover")
	})

	t.Run("empty event set still serializes", func(t *testing.T) {
		ics := generator.Generate(ctx, nil)
		assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR"))
		assert.Contains(t, ics, "END:VCALENDAR")
	})
}
