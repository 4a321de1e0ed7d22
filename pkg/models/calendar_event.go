package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle status of a calendar event.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusBlocked   EventStatus = "blocked"
	EventStatusTentative EventStatus = "tentative"
	EventStatusCancelled EventStatus = "cancelled"
)

// BlockingStatuses are the statuses that make a date range unavailable.
// Tentative and cancelled events never block a booking.
func BlockingStatuses() []EventStatus {
	return []EventStatus{EventStatusConfirmed, EventStatusBlocked}
}

// CalendarEvent is one occupied or blocked date range for a property.
// The interval [StartDate, EndDate) is half-open: the end date is the
// checkout date and is not itself occupied, so same-day turnover works.
type CalendarEvent struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	TenantID     uuid.UUID   `db:"tenant_id" json:"tenant_id"`
	PropertyID   uuid.UUID   `db:"property_id" json:"property_id"`
	FeedSourceID *uuid.UUID  `db:"feed_source_id" json:"feed_source_id,omitempty"`
	Title        string      `db:"title" json:"title"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      time.Time   `db:"end_date" json:"end_date"`
	Status       EventStatus `db:"status" json:"status"`
	Origin       string      `db:"origin" json:"origin"`
	ExternalKey  string      `db:"external_key" json:"external_key"`
	GuestName    *string     `db:"guest_name" json:"guest_name,omitempty"`
	GuestEmail   *string     `db:"guest_email" json:"guest_email,omitempty"`
	GuestPhone   *string     `db:"guest_phone" json:"guest_phone,omitempty"`
	GuestCount   *int        `db:"guest_count" json:"guest_count,omitempty"`
	Notes        *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// Nights returns the length of the stay in nights.
func (e *CalendarEvent) Nights() int {
	return int(e.EndDate.Sub(e.StartDate).Hours() / 24)
}
