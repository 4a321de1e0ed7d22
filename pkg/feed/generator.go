package feed

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"
	ical "github.com/arran4/golang-ical"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Generator serializes a property's events back into ICS text for external
// calendar consumers.
type Generator struct {
	logger ectologger.Logger
}

// NewGenerator creates a Generator
func NewGenerator(logger ectologger.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate renders the given events as an ICS document. Cancelled events are
// excluded and output is ordered by start date ascending so the document is
// deterministic for a given event set. Text escaping is handled by the ICS
// encoder.
func (g *Generator) Generate(ctx context.Context, events []models.CalendarEvent) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//Ramsey-B//clover//EN")

	filtered := make([]models.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Status == models.EventStatusCancelled {
			continue
		}
		filtered = append(filtered, ev)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].StartDate.Equal(filtered[j].StartDate) {
			return filtered[i].ID.String() < filtered[j].ID.String()
		}
		return filtered[i].StartDate.Before(filtered[j].StartDate)
	})

	for _, ev := range filtered {
		uid := ev.ExternalKey
		if uid == "" {
			uid = fmt.Sprintf("clover-%s@clover", ev.ID)
		}

		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(ev.UpdatedAt.UTC())
		ve.SetAllDayStartAt(ev.StartDate)
		ve.SetAllDayEndAt(ev.EndDate)
		ve.SetSummary(eventSummary(ev))
	}

	g.logger.WithContext(ctx).Debugf("Generated calendar with %d events", len(filtered))
	return cal.Serialize()
}

func eventSummary(ev models.CalendarEvent) string {
	if ev.Title != "" {
		return ev.Title
	}
	if ev.Status == models.EventStatusBlocked {
		return "Blocked"
	}
	return "Reserved"
}
