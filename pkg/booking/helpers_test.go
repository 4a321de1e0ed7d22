package booking_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/booking"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repositories"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeEventRepo is an in-memory CalendarEventRepo. FindOverlapping mirrors the
// SQL predicate; per-method overrides let tests inject failures.
type fakeEventRepo struct {
	events    []models.CalendarEvent
	stays     []models.CalendarEvent
	cancelled []uuid.UUID

	createFn          func(ctx context.Context, event *models.CalendarEvent) error
	findOverlappingFn func(ctx context.Context, propertyID uuid.UUID, start, end time.Time, statuses []models.EventStatus, excludeID *uuid.UUID) ([]models.CalendarEvent, error)
}

var _ repositories.CalendarEventRepo = (*fakeEventRepo)(nil)

func (f *fakeEventRepo) Create(ctx context.Context, event *models.CalendarEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CalendarEvent, error) {
	for i := range f.events {
		if f.events[i].ID == id {
			ev := f.events[i]
			return &ev, nil
		}
	}
	return nil, repositories.NotFound("calendar event not found")
}

func (f *fakeEventRepo) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, error) {
	var out []models.CalendarEvent
	for _, ev := range f.events {
		if ev.PropertyID == propertyID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) ListForCalendar(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, error) {
	return f.ListByProperty(ctx, propertyID)
}

func (f *fakeEventRepo) ListByFeedSource(ctx context.Context, feedSourceID uuid.UUID) ([]models.CalendarEvent, error) {
	var out []models.CalendarEvent
	for _, ev := range f.events {
		if ev.FeedSourceID != nil && *ev.FeedSourceID == feedSourceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) FindOverlapping(ctx context.Context, propertyID uuid.UUID, start, end time.Time, statuses []models.EventStatus, excludeID *uuid.UUID) ([]models.CalendarEvent, error) {
	if f.findOverlappingFn != nil {
		return f.findOverlappingFn(ctx, propertyID, start, end, statuses, excludeID)
	}

	statusSet := make(map[models.EventStatus]bool, len(statuses))
	for _, s := range statuses {
		statusSet[s] = true
	}

	var out []models.CalendarEvent
	for _, ev := range f.events {
		if ev.PropertyID != propertyID || !statusSet[ev.Status] {
			continue
		}
		if excludeID != nil && ev.ID == *excludeID {
			continue
		}
		if ev.StartDate.Before(end) && ev.EndDate.After(start) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) FindCurrentStays(ctx context.Context, propertyID uuid.UUID, phoneFragment string, day time.Time) ([]models.CalendarEvent, error) {
	return f.stays, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, event *models.CalendarEvent) error {
	for i := range f.events {
		if f.events[i].ID == event.ID {
			f.events[i] = *event
			return nil
		}
	}
	return repositories.NotFound("calendar event not found")
}

func (f *fakeEventRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Status = models.EventStatusCancelled
			f.cancelled = append(f.cancelled, id)
			return nil
		}
	}
	return repositories.NotFound("calendar event not found")
}

func (f *fakeEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	for i := range f.events {
		if f.events[i].ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return repositories.NotFound("calendar event not found")
}

// fakeFeedRepo satisfies FeedSourceRepo for service tests; only the direct
// bucket lookup does real work.
type fakeFeedRepo struct {
	direct *models.FeedSource
}

var _ repositories.FeedSourceRepo = (*fakeFeedRepo)(nil)

func (f *fakeFeedRepo) Create(ctx context.Context, source *models.FeedSource) error { return nil }
func (f *fakeFeedRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.FeedSource, error) {
	return nil, repositories.NotFound("feed source not found")
}
func (f *fakeFeedRepo) List(ctx context.Context) ([]models.FeedSource, error)       { return nil, nil }
func (f *fakeFeedRepo) ListActive(ctx context.Context) ([]models.FeedSource, error) { return nil, nil }
func (f *fakeFeedRepo) ListAllActive(ctx context.Context) ([]models.FeedSource, error) {
	return nil, nil
}
func (f *fakeFeedRepo) GetOrCreateDirect(ctx context.Context, propertyID uuid.UUID) (*models.FeedSource, error) {
	if f.direct == nil {
		f.direct = &models.FeedSource{
			ID:         uuid.New(),
			TenantID:   uuid.New(),
			PropertyID: propertyID,
			Platform:   models.PlatformDirect,
			Active:     true,
		}
	}
	return f.direct, nil
}
func (f *fakeFeedRepo) Update(ctx context.Context, source *models.FeedSource) error { return nil }
func (f *fakeFeedRepo) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, syncErr *string) error {
	return nil
}
func (f *fakeFeedRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

// fakeTx tracks commit/rollback without a live database
type fakeTx struct {
	committed  bool
	rolledBack bool
}

var _ database.Tx = (*fakeTx)(nil)

func (t *fakeTx) IsOpen() bool { return !t.committed && !t.rolledBack }
func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (t *fakeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}
func (t *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

// fakeDB hands out fakeTx transactions; the query surface is unused because
// tests pair it with in-memory repositories.
type fakeDB struct {
	lastTx *fakeTx
}

var _ database.DB = (*fakeDB)(nil)

func (d *fakeDB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, nil
}
func (d *fakeDB) Close() error { return nil }
func (d *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (d *fakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (d *fakeDB) PingContext(ctx context.Context) error { return nil }
func (d *fakeDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}
func (d *fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (d *fakeDB) SetConnMaxLifetime(dur time.Duration) {}
func (d *fakeDB) SetMaxIdleConns(n int)                {}
func (d *fakeDB) SetMaxOpenConns(n int)                {}
func (d *fakeDB) Stats() sql.DBStats                   { return sql.DBStats{} }
func (d *fakeDB) Unsafe() *sqlx.DB                     { return nil }
func (d *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	tx := &fakeTx{}
	d.lastTx = tx
	return ctx, tx, nil
}

func newTestService(events *fakeEventRepo, feeds *fakeFeedRepo) (*booking.Service, *fakeDB) {
	logger := getTestLogger()
	db := &fakeDB{}
	detector := booking.NewDetector(events, logger)
	return booking.NewService(db, feeds, events, detector, nil, nil, logger), db
}
