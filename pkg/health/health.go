// Package health exposes the liveness, readiness, and health endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/database"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const checkTimeout = 5 * time.Second

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Check probes one dependency.
type Check func(ctx context.Context) CheckResult

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// Checker probes the service's two hard dependencies. Readiness also gates
// on SetReady so the pod doesn't take traffic before migrations finish.
type Checker struct {
	checks    map[string]Check
	startTime time.Time
	version   string
	mu        sync.RWMutex
	ready     bool
}

func NewChecker(db database.DB, redisClient *redis.Client, version string) *Checker {
	return &Checker{
		checks: map[string]Check{
			"database": timed(func(ctx context.Context) error { return db.PingContext(ctx) }),
			"redis":    timed(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
		startTime: time.Now(),
		version:   version,
	}
}

// timed wraps a ping into a CheckResult with latency and a bounded timeout.
func timed(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		start := time.Now()
		if err := ping(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Latency: time.Since(start).String()}
		}
		return CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
	}
}

func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// LivenessHandler answers "is the process alive", never touching dependencies.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Response{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		ReportedAt: time.Now(),
	})
}

func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, Response{
			Status:     StatusUnhealthy,
			Version:    c.version,
			ReportedAt: time.Now(),
			Checks: map[string]CheckResult{
				"startup": {Status: StatusUnhealthy, Message: "service is still starting up"},
			},
		})
	}
	return c.HealthHandler(ctx)
}

// HealthHandler runs every registered check and reports the worst status.
func (c *Checker) HealthHandler(ctx echo.Context) error {
	results := make(map[string]CheckResult, len(c.checks))
	overall := StatusHealthy
	for name, check := range c.checks {
		result := check(ctx.Request().Context())
		results[name] = result
		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return ctx.JSON(statusCode, Response{
		Status:     overall,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     results,
		ReportedAt: time.Now(),
	})
}
