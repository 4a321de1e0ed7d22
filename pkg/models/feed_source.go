package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
)

// SyncStatus is the outcome of a feed source's most recent sync.
type SyncStatus string

const (
	SyncStatusSuccess  SyncStatus = "success"
	SyncStatusFailed   SyncStatus = "failed"
	SyncStatusNeverRun SyncStatus = "never_run"
)

// PlatformDirect is the platform label for the implicit bucket that holds
// bookings created by this system rather than ingested from a feed.
const PlatformDirect = "direct"

// FeedSource is one external-calendar subscription for a property. A source
// with no URL acts purely as a bucket for directly-created events.
type FeedSource struct {
	ID           uuid.UUID                      `db:"id" json:"id"`
	TenantID     uuid.UUID                      `db:"tenant_id" json:"tenant_id"`
	PropertyID   uuid.UUID                      `db:"property_id" json:"property_id"`
	Platform     string                         `db:"platform" json:"platform"`
	FeedURL      *string                        `db:"feed_url" json:"feed_url,omitempty"`
	Active       bool                           `db:"active" json:"active"`
	LastSyncedAt *time.Time                     `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LastStatus   SyncStatus                     `db:"last_sync_status" json:"last_sync_status"`
	LastError    *string                        `db:"last_error" json:"last_error,omitempty"`
	Settings     database.JSONB[map[string]any] `db:"settings" json:"settings,omitempty"`
	CreatedAt    time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (FeedSource) TableName() string {
	return "feed_sources"
}

// GuestNamePattern returns the per-feed guest name extraction override, if
// the owner configured one in the source settings.
func (f *FeedSource) GuestNamePattern() string {
	if f.Settings.Data == nil {
		return ""
	}
	if v, ok := f.Settings.Data["guest_name_pattern"].(string); ok {
		return v
	}
	return ""
}
