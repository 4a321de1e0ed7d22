package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// FeedSourceRepo defines the interface for feed source repository operations
type FeedSourceRepo interface {
	Create(ctx context.Context, source *models.FeedSource) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FeedSource, error)
	List(ctx context.Context) ([]models.FeedSource, error)
	ListActive(ctx context.Context) ([]models.FeedSource, error)
	ListAllActive(ctx context.Context) ([]models.FeedSource, error)
	GetOrCreateDirect(ctx context.Context, propertyID uuid.UUID) (*models.FeedSource, error)
	Update(ctx context.Context, source *models.FeedSource) error
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, syncErr *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CalendarEventRepo defines the interface for calendar event repository operations
type CalendarEventRepo interface {
	Create(ctx context.Context, event *models.CalendarEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CalendarEvent, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, error)
	ListForCalendar(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, error)
	ListByFeedSource(ctx context.Context, feedSourceID uuid.UUID) ([]models.CalendarEvent, error)
	FindOverlapping(ctx context.Context, propertyID uuid.UUID, start, end time.Time, statuses []models.EventStatus, excludeID *uuid.UUID) ([]models.CalendarEvent, error)
	FindCurrentStays(ctx context.Context, propertyID uuid.UUID, phoneFragment string, day time.Time) ([]models.CalendarEvent, error)
	Update(ctx context.Context, event *models.CalendarEvent) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
