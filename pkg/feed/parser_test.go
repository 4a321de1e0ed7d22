package feed_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/feed"
)

const testHorizon = 4 * 365 * 24 * time.Hour

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// calendar builds an ICS document from raw VEVENT bodies
func calendar(events ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//Test//EN\r\n")
	for _, ev := range events {
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString(ev)
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

func TestParser_Parse(t *testing.T) {
	parser := feed.NewParser(getTestLogger(), testHorizon)
	ctx := context.Background()

	t.Run("all-day event normalizes to UTC calendar dates", func(t *testing.T) {
		body := calendar(
			"UID:abc123@airbnb.com\r\n" +
				"DTSTAMP:20250601T000000Z\r\n" +
				"DTSTART;VALUE=DATE:20250610\r\n" +
				"DTEND;VALUE=DATE:20250615\r\n" +
				"SUMMARY:Reserved - Jane Smith\r\n",
		)

		events := parser.Parse(ctx, body, "airbnb", "")
		require.Len(t, events, 1)
		assert.Equal(t, "abc123@airbnb.com", events[0].ExternalKey)
		assert.Equal(t, date(2025, 6, 10), events[0].Start)
		assert.Equal(t, date(2025, 6, 15), events[0].End)
		assert.Equal(t, "Reserved - Jane Smith", events[0].Summary)
		assert.Equal(t, "Jane Smith", events[0].GuestName)
	})

	t.Run("timestamped event truncates to its date", func(t *testing.T) {
		body := calendar(
			"UID:ts-1\r\n" +
				"DTSTAMP:20250601T000000Z\r\n" +
				"DTSTART:20250610T160000Z\r\n" +
				"DTEND:20250612T100000Z\r\n" +
				"SUMMARY:Booking: John Doe\r\n",
		)

		events := parser.Parse(ctx, body, "vrbo", "")
		require.Len(t, events, 1)
		assert.Equal(t, date(2025, 6, 10), events[0].Start)
		assert.Equal(t, date(2025, 6, 12), events[0].End)
		assert.Equal(t, "John Doe", events[0].GuestName)
	})

	t.Run("same-day timestamps become one occupied night", func(t *testing.T) {
		body := calendar(
			"UID:same-day\r\n" +
				"DTSTAMP:20250601T000000Z\r\n" +
				"DTSTART:20250610T140000Z\r\n" +
				"DTEND:20250610T180000Z\r\n",
		)

		events := parser.Parse(ctx, body, "other", "")
		require.Len(t, events, 1)
		assert.Equal(t, date(2025, 6, 10), events[0].Start)
		assert.Equal(t, date(2025, 6, 11), events[0].End)
	})

	t.Run("event without UID is skipped, siblings survive", func(t *testing.T) {
		body := calendar(
			"DTSTAMP:20250601T000000Z\r\n"+
				"DTSTART;VALUE=DATE:20250601\r\n"+
				"DTEND;VALUE=DATE:20250603\r\n",
			"UID:good-1\r\n"+
				"DTSTAMP:20250601T000000Z\r\n"+
				"DTSTART;VALUE=DATE:20250610\r\n"+
				"DTEND;VALUE=DATE:20250612\r\n",
		)

		events := parser.Parse(ctx, body, "airbnb", "")
		require.Len(t, events, 1)
		assert.Equal(t, "good-1", events[0].ExternalKey)
	})

	t.Run("unparseable body yields zero events", func(t *testing.T) {
		events := parser.Parse(ctx, []byte("this is not a calendar"), "airbnb", "")
		assert.Empty(t, events)
	})

	t.Run("empty body yields zero events", func(t *testing.T) {
		events := parser.Parse(ctx, nil, "airbnb", "")
		assert.Empty(t, events)
	})

	t.Run("recurring event expands to one entry per occurrence", func(t *testing.T) {
		body := calendar(
			"UID:recur-1\r\n" +
				"DTSTAMP:20250101T000000Z\r\n" +
				"DTSTART;VALUE=DATE:20250601\r\n" +
				"DTEND;VALUE=DATE:20250603\r\n" +
				"RRULE:FREQ=WEEKLY;COUNT=3\r\n" +
				"SUMMARY:Owner block\r\n",
		)

		events := parser.Parse(ctx, body, "other", "")
		require.Len(t, events, 3)

		assert.Equal(t, "recur-1:20250601", events[0].ExternalKey)
		assert.Equal(t, date(2025, 6, 1), events[0].Start)
		assert.Equal(t, date(2025, 6, 3), events[0].End)

		assert.Equal(t, "recur-1:20250608", events[1].ExternalKey)
		assert.Equal(t, date(2025, 6, 8), events[1].Start)
		assert.Equal(t, date(2025, 6, 10), events[1].End)

		assert.Equal(t, "recur-1:20250615", events[2].ExternalKey)
	})

	t.Run("EXDATE removes an occurrence", func(t *testing.T) {
		body := calendar(
			"UID:recur-2\r\n" +
				"DTSTAMP:20250101T000000Z\r\n" +
				"DTSTART;VALUE=DATE:20250601\r\n" +
				"DTEND;VALUE=DATE:20250602\r\n" +
				"RRULE:FREQ=WEEKLY;COUNT=3\r\n" +
				"EXDATE;VALUE=DATE:20250608\r\n",
		)

		events := parser.Parse(ctx, body, "other", "")
		require.Len(t, events, 2)
		assert.Equal(t, "recur-2:20250601", events[0].ExternalKey)
		assert.Equal(t, "recur-2:20250615", events[1].ExternalKey)
	})

	t.Run("custom guest name pattern overrides the defaults", func(t *testing.T) {
		body := calendar(
			"UID:custom-1\r\n" +
				"DTSTAMP:20250601T000000Z\r\n" +
				"DTSTART;VALUE=DATE:20250610\r\n" +
				"DTEND;VALUE=DATE:20250612\r\n" +
				"SUMMARY:Guest Maria Garcia\r\n",
		)

		events := parser.Parse(ctx, body, "other", `^Guest\s+(.+)$`)
		require.Len(t, events, 1)
		assert.Equal(t, "Maria Garcia", events[0].GuestName)
	})
}

func TestParser_GuestNames(t *testing.T) {
	parser := feed.NewParser(getTestLogger(), testHorizon)
	ctx := context.Background()

	tests := []struct {
		name     string
		summary  string
		expected string
	}{
		{"reserved dash form", "Reserved - Jane Smith", "Jane Smith"},
		{"booking colon form", "Booking: John Doe", "John Doe"},
		{"name with confirmation code", "Alice Brown (HMABCDEF12)", "Alice Brown"},
		{"platform placeholder carries no name", "Reserved - Airbnb", ""},
		{"plain summary has no name", "Not available", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := calendar(
				"UID:gn-1\r\n" +
					"DTSTAMP:20250601T000000Z\r\n" +
					"DTSTART;VALUE=DATE:20250610\r\n" +
					"DTEND;VALUE=DATE:20250612\r\n" +
					"SUMMARY:" + tt.summary + "\r\n",
			)

			events := parser.Parse(ctx, body, "airbnb", "")
			require.Len(t, events, 1)
			assert.Equal(t, tt.expected, events[0].GuestName)
		})
	}
}
