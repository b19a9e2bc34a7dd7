package observability

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe checks one backing dependency. A failing required probe makes the whole
// status unhealthy; a failing optional one only degrades it.
type Probe struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) DependencyStatus
}

// DatabaseProbe pings a history database and runs a trivial query.
func DatabaseProbe(name string, db *sql.DB) Probe {
	return Probe{
		Name:     name,
		Required: true,
		Check: func(ctx context.Context) DependencyStatus {
			return checkDatabase(ctx, db)
		},
	}
}

// RedisProbe pings a Redis history store. Redis is treated as optional.
func RedisProbe(name string, client redis.UniversalClient) Probe {
	return Probe{
		Name: name,
		Check: func(ctx context.Context) DependencyStatus {
			return checkRedis(ctx, client)
		},
	}
}

// HealthChecker aggregates dependency probes for the history backends the
// engine reads from.
type HealthChecker struct {
	version string
	probes  []Probe
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string, probes ...Probe) *HealthChecker {
	return &HealthChecker{
		version: version,
		probes:  probes,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Check runs every probe and folds the results.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	for _, p := range h.probes {
		dep := p.Check(ctx)
		status.Dependencies[p.Name] = dep

		switch {
		case dep.Status == StatusHealthy:
		case p.Required && dep.Status == StatusUnhealthy:
			status.Status = StatusUnhealthy
		case status.Status != StatusUnhealthy:
			status.Status = StatusDegraded
		}
	}

	return status
}

// checkDatabase checks database health
func checkDatabase(ctx context.Context, db *sql.DB) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: start,
	}

	err := db.PingContext(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
		return status
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		status.Status = StatusUnhealthy
		status.Message = "query failed: " + err.Error()
		return status
	}

	stats := db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		status.Status = StatusDegraded
		status.Message = "connection pool exhausted"
	}

	return status
}

// checkRedis checks Redis health
func checkRedis(ctx context.Context, client redis.UniversalClient) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: start,
	}

	err := client.Ping(ctx).Err()
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}

	return status
}
