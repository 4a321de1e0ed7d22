package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconcileResult counts the writes one reconciliation applied.
type ReconcileResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}

// IsNoop reports whether the reconciliation applied no writes.
func (r ReconcileResult) IsNoop() bool {
	return r.Inserted == 0 && r.Updated == 0 && r.Deleted == 0
}

// FeedSyncResult is the outcome of syncing a single feed source.
type FeedSyncResult struct {
	FeedSourceID uuid.UUID       `json:"feed_source_id"`
	PropertyID   uuid.UUID       `json:"property_id"`
	Platform     string          `json:"platform"`
	Result       ReconcileResult `json:"result"`
	EventsFound  int             `json:"events_found"`
	Skipped      bool            `json:"skipped,omitempty"`
	Error        string          `json:"error,omitempty"`
	SyncedAt     time.Time       `json:"synced_at"`
}

// BatchReport aggregates a batch sync across feed sources. Errors holds one
// message per failed feed; failures never abort sibling feeds.
type BatchReport struct {
	Synced   int      `json:"synced"`
	Total    int      `json:"total"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	Errors   []string `json:"errors"`
}

// Add folds one feed result into the report.
func (b *BatchReport) Add(res FeedSyncResult) {
	b.Total++
	if res.Error != "" {
		b.Errors = append(b.Errors, res.Platform+" ("+res.FeedSourceID.String()+"): "+res.Error)
		return
	}
	if res.Skipped {
		return
	}
	b.Synced++
	b.Inserted += res.Result.Inserted
	b.Updated += res.Result.Updated
	b.Deleted += res.Result.Deleted
}
