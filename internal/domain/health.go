package domain

import "time"

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates an optional dependency failed while orders can still be taken.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a dependency required to place orders is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency or store check.
type SystemHealthCheck struct {
	Status    string
	Critical  bool
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status string
	// AcceptingOrders is false once a critical check failed.
	AcceptingOrders bool
	Checks          map[string]SystemHealthCheck
	Version         string
	CommitSHA       string
	Environment     string
	Uptime          time.Duration
	GeneratedAt     time.Time
}
