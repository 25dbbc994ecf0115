// health.go - Health monitoring for the invoice daemon.

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a specific component.
type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// SystemHealth represents the overall daemon health.
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        string            `json:"uptime"`
	Version       string            `json:"version"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checkers  map[string]func() error
	startTime time.Time
	version   string
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checkers:  make(map[string]func() error),
		startTime: time.Now(),
		version:   version,
	}
}

// RegisterComponent registers a health check for a component.
func (hc *HealthChecker) RegisterComponent(name string, checker func() error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkers[name] = checker
}

// Check runs all registered checks and aggregates the result.
func (hc *HealthChecker) Check() SystemHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	now := time.Now()
	overall := Healthy
	components := make([]ComponentHealth, 0, len(hc.checkers))
	for name, check := range hc.checkers {
		ch := ComponentHealth{Name: name, Status: Healthy, LastCheck: now}
		if err := check(); err != nil {
			ch.Status = Unhealthy
			ch.Message = err.Error()
			overall = Unhealthy
		}
		components = append(components, ch)
	}
	return SystemHealth{
		OverallStatus: overall,
		Timestamp:     now,
		Components:    components,
		Uptime:        now.Sub(hc.startTime).Round(time.Second).String(),
		Version:       hc.version,
	}
}

// Handler serves the health endpoint; 503 when any component is
// unhealthy.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hc.Check()
		w.Header().Set("Content-Type", "application/json")
		if health.OverallStatus != Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
