package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service. Settings and
// Stores are optional; when both are set every listed store is checked for order readiness.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Settings         repositories.StoreSettingsReader
	Stores           []string
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	health   repositories.HealthRepository
	settings repositories.StoreSettingsReader
	stores   []string
	now      func() time.Time
	build    BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service backing the readiness endpoint.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	svc := &systemService{
		health:   deps.HealthRepository,
		settings: deps.Settings,
		now:      func() time.Time { return clock().UTC() },
		build:    build,
	}
	seen := make(map[string]struct{}, len(deps.Stores))
	for _, store := range deps.Stores {
		store = strings.TrimSpace(store)
		if _, dup := seen[store]; store == "" || dup {
			continue
		}
		seen[store] = struct{}{}
		svc.stores = append(svc.stores, store)
	}
	return svc, nil
}

// HealthReport runs the dependency checks, then checks that every configured store can take quick
// orders. A store whose settings cannot be read fails the report.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.now()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if strings.TrimSpace(report.Version) == "" {
		report.Version = s.build.Version
	}
	if strings.TrimSpace(report.CommitSHA) == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if strings.TrimSpace(report.Environment) == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}

	checkedStores := s.settings != nil && len(s.stores) > 0
	if checkedStores {
		for _, store := range s.stores {
			report.Checks["store:"+store] = s.storeReadiness(ctx, store)
		}
	}

	if strings.TrimSpace(report.Status) == "" || checkedStores {
		report.Status = worstStatus(report.Status, deriveStatus(report.Checks))
	}
	report.AcceptingOrders = report.Status != domain.HealthStatusError
	return report, nil
}

// storeReadiness reports whether the store can take a quick order right now. A disabled form or a
// store without active carriers or payment methods degrades the report.
func (s *systemService) storeReadiness(ctx context.Context, storeID string) domain.SystemHealthCheck {
	started := time.Now()
	settings, err := s.settings.Get(ctx, storeID)
	check := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Critical:  true,
		Detail:    "accepting orders",
		Latency:   time.Since(started),
		CheckedAt: s.now(),
	}

	switch {
	case err != nil:
		check.Status = domain.HealthStatusError
		check.Detail = "settings unavailable"
		check.Error = err.Error()
	case !settings.Enabled:
		check.Status = domain.HealthStatusDegraded
		check.Detail = "quick order disabled"
	case !hasActiveCarrier(settings) && !settings.ForceFallbackShipping:
		check.Status = domain.HealthStatusDegraded
		check.Detail = "no active shipping carrier"
	case !hasActivePayment(settings):
		check.Status = domain.HealthStatusDegraded
		check.Detail = "no active payment method"
	}
	return check
}

func hasActiveCarrier(settings StoreSettings) bool {
	for _, carrier := range settings.Carriers {
		if carrier.Active {
			return true
		}
	}
	return false
}

func hasActivePayment(settings StoreSettings) bool {
	for _, method := range settings.PaymentMethods {
		if method.Active {
			return true
		}
	}
	return false
}

// deriveStatus reports error only when a critical dependency failed. Other failures degrade the report.
func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch {
		case check.Status == domain.HealthStatusOK || check.Status == "":
			continue
		case check.Status == domain.HealthStatusError && check.Critical:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}

func worstStatus(a, b string) string {
	rank := func(status string) int {
		switch status {
		case domain.HealthStatusError:
			return 2
		case domain.HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if strings.TrimSpace(a) != "" && rank(a) >= rank(b) {
		return a
	}
	return b
}
