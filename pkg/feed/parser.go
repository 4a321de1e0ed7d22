package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// ParsedEvent is the normalized representation of one feed event. Start and
// End are calendar dates at UTC midnight; End is the checkout date and is
// exclusive.
type ParsedEvent struct {
	ExternalKey string
	Start       time.Time
	End         time.Time
	Summary     string
	GuestName   string
}

// Guest-name shapes the major platforms embed in their summaries.
var guestNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^Reserved\s*-\s*(.+)$`),
	regexp.MustCompile(`^Booking:\s*(.+)$`),
	regexp.MustCompile(`^(.+?)\s*\([A-Z0-9]{6,}\)$`),
}

// Parser turns raw ICS text into normalized events
type Parser struct {
	logger  ectologger.Logger
	horizon time.Duration
}

// NewParser creates a Parser. Recurring events are expanded up to horizon
// past the current time.
func NewParser(logger ectologger.Logger, horizon time.Duration) *Parser {
	return &Parser{
		logger:  logger,
		horizon: horizon,
	}
}

// Parse extracts events from raw calendar text. A malformed event block is
// skipped with a warning; a wholly unparseable body yields zero events, not
// an error. namePattern, when non-empty, replaces the built-in guest-name
// heuristics for this feed.
func (p *Parser) Parse(ctx context.Context, body []byte, platform string, namePattern string) []ParsedEvent {
	if len(body) == 0 {
		p.logger.WithContext(ctx).Warnf("Empty feed body for platform %s", platform)
		return nil
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warnf("Unparseable feed body for platform %s", platform)
		return nil
	}

	var custom *regexp.Regexp
	if namePattern != "" {
		custom, err = regexp.Compile(namePattern)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Warnf("Invalid guest name pattern %q, using defaults", namePattern)
		}
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		parsed, err := p.parseEvent(ve, custom)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Warnf("Skipping malformed event in %s feed", platform)
			continue
		}
		events = append(events, parsed...)
	}

	p.logger.WithContext(ctx).Debugf("Parsed %d events from %s feed", len(events), platform)
	return events
}

// parseEvent normalizes one VEVENT, expanding recurrences into one entry per
// occurrence keyed UID:YYYYMMDD.
func (p *Parser) parseEvent(ve *ical.VEvent, custom *regexp.Regexp) ([]ParsedEvent, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	uid := uidProp.Value

	start, end, err := eventTimes(ve)
	if err != nil {
		return nil, err
	}

	start = toDate(start)
	end = toDate(end)
	if !end.After(start) {
		// Timestamped same-day entries collapse to one occupied night.
		end = start.AddDate(0, 0, 1)
	}

	summary := ""
	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		summary = prop.Value
	}

	base := ParsedEvent{
		ExternalKey: uid,
		Start:       start,
		End:         end,
		Summary:     summary,
		GuestName:   extractGuestName(summary, custom),
	}

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return []ParsedEvent{base}, nil
	}

	return p.expandRecurring(base, ve, rruleProp.Value)
}

// expandRecurring materializes a recurring event's occurrences within the
// parser horizon, honoring EXDATEs.
func (p *Parser) expandRecurring(base ParsedEvent, ve *ical.VEvent, rawRule string) ([]ParsedEvent, error) {
	rule, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", rawRule, err)
	}
	rule.DTStart(base.Start)

	var set rrule.Set
	set.RRule(rule)

	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			if t, err := parseExDate(strings.TrimSpace(part)); err == nil {
				set.ExDate(toDate(t))
			}
		}
	}

	nights := int(base.End.Sub(base.Start).Hours() / 24)
	horizonEnd := time.Now().UTC().Add(p.horizon)

	starts := set.Between(base.Start, horizonEnd, true)
	out := make([]ParsedEvent, 0, len(starts))
	for _, occStart := range starts {
		occStart = toDate(occStart)
		occ := base
		occ.ExternalKey = fmt.Sprintf("%s:%s", base.ExternalKey, occStart.Format("20060102"))
		occ.Start = occStart
		occ.End = occStart.AddDate(0, 0, nights)
		out = append(out, occ)
	}

	return out, nil
}

// eventTimes reads DTSTART/DTEND, using the all-day accessors for date-only
// values so they land on their calendar date regardless of the process zone.
func eventTimes(ve *ical.VEvent) (time.Time, time.Time, error) {
	if isAllDay(ve) {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid DTSTART: %w", err)
		}
		end, err := ve.GetAllDayEndAt()
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid DTEND: %w", err)
		}
		return start, end, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid DTEND: %w", err)
	}
	return start, end, nil
}

// isAllDay reports whether DTSTART is a date-only value (VALUE=DATE or no
// time component), the form the booking platforms export.
func isAllDay(ve *ical.VEvent) bool {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return false
	}
	if vals, ok := prop.ICalParameters["VALUE"]; ok && len(vals) > 0 && strings.EqualFold(vals[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

// toDate truncates a timestamp to its calendar date at UTC midnight
func toDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseExDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty EXDATE value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.Parse("20060102T150405", v)
	}
	return time.Parse("20060102", v)
}

// extractGuestName applies the guest-name heuristics to a summary. This is
// best-effort metadata, never an identity boundary.
func extractGuestName(summary string, custom *regexp.Regexp) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}

	patterns := guestNamePatterns
	if custom != nil {
		patterns = []*regexp.Regexp{custom}
	}

	for _, re := range patterns {
		m := re.FindStringSubmatch(summary)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimSpace(m[1])
		// Bare platform placeholders like "Reserved - Airbnb" carry no name.
		if name == "" || strings.EqualFold(name, "airbnb") || strings.EqualFold(name, "vrbo") {
			continue
		}
		return name
	}

	return ""
}
