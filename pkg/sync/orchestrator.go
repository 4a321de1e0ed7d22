package sync

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Orchestrator runs fetch, parse, reconcile per feed source. A feed's failure
// lands on its status fields and in the batch report; it never aborts sibling
// feeds.
type Orchestrator struct {
	feeds      repositories.FeedSourceRepo
	fetcher    *feed.Fetcher
	parser     *feed.Parser
	reconciler *Reconciler
	locker     *redis.Locker
	cache      *redis.CalendarCache
	producer   *kafka.Producer
	lockTTL    time.Duration
	logger     ectologger.Logger
}

// NewOrchestrator creates an Orchestrator. locker carries the per-feed key
// prefix; cache and producer are optional fanout targets.
func NewOrchestrator(
	feeds repositories.FeedSourceRepo,
	fetcher *feed.Fetcher,
	parser *feed.Parser,
	reconciler *Reconciler,
	locker *redis.Locker,
	cache *redis.CalendarCache,
	producer *kafka.Producer,
	lockTTL time.Duration,
	logger ectologger.Logger,
) *Orchestrator {
	return &Orchestrator{
		feeds:      feeds,
		fetcher:    fetcher,
		parser:     parser,
		reconciler: reconciler,
		locker:     locker,
		cache:      cache,
		producer:   producer,
		lockTTL:    lockTTL,
		logger:     logger,
	}
}

// SyncFeedByID syncs one feed on demand (tenant-scoped lookup)
func (o *Orchestrator) SyncFeedByID(ctx context.Context, id uuid.UUID) (models.FeedSyncResult, error) {
	source, err := o.feeds.GetByID(ctx, id)
	if err != nil {
		return models.FeedSyncResult{}, err
	}
	return o.SyncFeed(ctx, source), nil
}

// SyncFeed runs one feed through fetch, parse, reconcile. Holders of the
// per-feed lock win; a concurrent request for the same feed is skipped, not
// queued.
func (o *Orchestrator) SyncFeed(ctx context.Context, source *models.FeedSource) models.FeedSyncResult {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.SyncFeed")
	defer span.End()

	result := models.FeedSyncResult{
		FeedSourceID: source.ID,
		PropertyID:   source.PropertyID,
		Platform:     source.Platform,
		SyncedAt:     time.Now().UTC(),
	}

	if source.FeedURL == nil || *source.FeedURL == "" {
		result.Error = "feed source has no URL"
		return result
	}

	lock, err := o.locker.Acquire(ctx, source.ID.String(), o.lockTTL)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		o.logger.WithContext(ctx).Debugf("Feed %s is already syncing, skipping", source.ID)
		result.Skipped = true
		return result
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer lock.Release(ctx)

	start := time.Now()
	defer func() {
		metrics.FeedSyncDuration.WithLabelValues(source.Platform).Observe(time.Since(start).Seconds())
	}()

	body, err := o.fetcher.Fetch(ctx, *source.FeedURL)
	if err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			metrics.FeedFetchErrors.WithLabelValues(string(fetchErr.Cause)).Inc()
		}
		return o.recordFailure(ctx, source, result, err)
	}

	parsed := o.parser.Parse(ctx, body, source.Platform, source.GuestNamePattern())
	result.EventsFound = len(parsed)

	applied, err := o.reconciler.Reconcile(ctx, source, parsed)
	if err != nil {
		return o.recordFailure(ctx, source, result, err)
	}
	result.Result = applied

	if err := o.feeds.UpdateSyncStatus(ctx, source.ID, models.SyncStatusSuccess, nil); err != nil {
		o.logger.WithContext(ctx).WithError(err).Warnf("Failed to record sync success for feed %s", source.ID)
	}
	metrics.FeedSyncsTotal.WithLabelValues(source.Platform, "success").Inc()

	if !applied.IsNoop() {
		o.afterSync(ctx, source, applied)
	}

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"feed_source_id": source.ID,
		"platform":       source.Platform,
		"events_found":   result.EventsFound,
		"inserted":       applied.Inserted,
		"updated":        applied.Updated,
		"deleted":        applied.Deleted,
	}).Infof("Synced feed %s", source.ID)

	return result
}

// SyncTenant syncs all of the requesting tenant's active feeds
func (o *Orchestrator) SyncTenant(ctx context.Context) (models.BatchReport, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.SyncTenant")
	defer span.End()

	sources, err := o.feeds.ListActive(ctx)
	if err != nil {
		return models.BatchReport{}, err
	}

	return o.syncBatch(ctx, sources), nil
}

// SyncAll syncs every active feed across all tenants. Cross-tenant: the
// background scheduler's entry point.
func (o *Orchestrator) SyncAll(ctx context.Context) (models.BatchReport, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.SyncAll")
	defer span.End()

	sources, err := o.feeds.ListAllActive(ctx)
	if err != nil {
		return models.BatchReport{}, err
	}

	return o.syncBatch(ctx, sources), nil
}

func (o *Orchestrator) syncBatch(ctx context.Context, sources []models.FeedSource) models.BatchReport {
	report := models.BatchReport{Errors: []string{}}
	for i := range sources {
		report.Add(o.SyncFeed(ctx, &sources[i]))
	}

	if len(report.Errors) > 0 {
		o.logger.WithContext(ctx).WithFields(map[string]any{
			"total":  report.Total,
			"synced": report.Synced,
			"errors": len(report.Errors),
		}).Warnf("Batch sync finished with %d error(s)", len(report.Errors))
	} else {
		o.logger.WithContext(ctx).Infof("Batch sync finished: %d/%d feeds synced", report.Synced, report.Total)
	}

	return report
}

// recordFailure lands the error on the feed's status fields and the result
func (o *Orchestrator) recordFailure(ctx context.Context, source *models.FeedSource, result models.FeedSyncResult, err error) models.FeedSyncResult {
	msg := err.Error()
	result.Error = msg

	if uerr := o.feeds.UpdateSyncStatus(ctx, source.ID, models.SyncStatusFailed, &msg); uerr != nil {
		o.logger.WithContext(ctx).WithError(uerr).Warnf("Failed to record sync failure for feed %s", source.ID)
	}
	metrics.FeedSyncsTotal.WithLabelValues(source.Platform, "failed").Inc()

	o.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"feed_source_id": source.ID,
		"platform":       source.Platform,
	}).Errorf("Feed sync failed")

	return result
}

// afterSync invalidates the property's cached calendar and announces the
// change; neither failure affects the sync outcome.
func (o *Orchestrator) afterSync(ctx context.Context, source *models.FeedSource, applied models.ReconcileResult) {
	if o.cache != nil {
		o.cache.Invalidate(ctx, source.PropertyID)
	}

	if o.producer == nil {
		return
	}

	msg := &kafka.CalendarChangedMessage{
		TenantID:     source.TenantID.String(),
		PropertyID:   source.PropertyID.String(),
		FeedSourceID: source.ID.String(),
		Trigger:      "sync",
		Inserted:     applied.Inserted,
		Updated:      applied.Updated,
		Deleted:      applied.Deleted,
	}
	if err := o.producer.PublishCalendarChanged(ctx, msg); err != nil {
		o.logger.WithContext(ctx).WithError(err).Warnf("Failed to publish calendar change for property %s", source.PropertyID)
	}
}
