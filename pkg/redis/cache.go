package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/models"
)

const calendarKeyPrefix = "calendar:property:"

// CalendarCache is a read-through cache of per-property event lists. It is
// advisory only: writers invalidate, and anything that decides bookings reads
// the database directly.
type CalendarCache struct {
	client *Client
	ttl    time.Duration
}

// NewCalendarCache creates a CalendarCache with the given entry TTL
func NewCalendarCache(client *Client, ttl time.Duration) *CalendarCache {
	return &CalendarCache{
		client: client,
		ttl:    ttl,
	}
}

func calendarKey(propertyID uuid.UUID) string {
	return calendarKeyPrefix + propertyID.String()
}

// Get returns the cached events for a property, or (nil, false) on a miss.
// Cache errors are logged and treated as misses.
func (c *CalendarCache) Get(ctx context.Context, propertyID uuid.UUID) ([]models.CalendarEvent, bool) {
	raw, err := c.client.Get(ctx, calendarKey(propertyID))
	if err != nil {
		if err != redis.Nil {
			c.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to read cached calendar for property %s", propertyID)
		}
		return nil, false
	}

	var events []models.CalendarEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		c.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to decode cached calendar for property %s", propertyID)
		return nil, false
	}

	return events, true
}

// Set stores the events for a property
func (c *CalendarCache) Set(ctx context.Context, propertyID uuid.UUID, events []models.CalendarEvent) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode calendar for property %s: %w", propertyID, err)
	}

	return c.client.Set(ctx, calendarKey(propertyID), payload, c.ttl)
}

// Invalidate drops the cached calendar for a property
func (c *CalendarCache) Invalidate(ctx context.Context, propertyID uuid.UUID) {
	if err := c.client.Del(ctx, calendarKey(propertyID)); err != nil {
		c.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to invalidate cached calendar for property %s", propertyID)
	}
}
