package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/repositories"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.2.3",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}

	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if report.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %s", report.Version)
	}
	if report.CommitSHA != "abc123" {
		t.Fatalf("expected commit abc123, got %s", report.CommitSHA)
	}
	if report.Environment != "prod" {
		t.Fatalf("expected environment prod, got %s", report.Environment)
	}
	if report.Uptime != now.Sub(start) {
		t.Fatalf("expected uptime %s, got %s", now.Sub(start), report.Uptime)
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestSystemServiceHealthReportErrors(t *testing.T) {
	expected := errors.New("collect failed")
	repo := &stubHealthRepository{err: expected}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	_, err = svc.HealthReport(context.Background())
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	_, err := NewSystemService(SystemServiceDeps{})
	if err == nil {
		t.Fatalf("expected error when repository missing")
	}
}

func TestSystemServiceDerivesStatusWhenMissing(t *testing.T) {
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"notifications": {Status: domain.HealthStatusDegraded},
				"secretManager": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
}

func TestSystemServiceDerivedStatusHonoursCriticality(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		{
			name:   "critical failure",
			checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusError, Critical: true}},
			want:   domain.HealthStatusError,
		},
		{
			name:   "optional failure",
			checks: map[string]domain.SystemHealthCheck{"secretManager": {Status: domain.HealthStatusError}},
			want:   domain.HealthStatusDegraded,
		},
		{
			name:   "all healthy",
			checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusOK, Critical: true}},
			want:   domain.HealthStatusOK,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{Checks: tc.checks}},
			})
			if err != nil {
				t.Fatalf("NewSystemService: %v", err)
			}
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, report.Status)
			}
		})
	}
}

func TestSystemServiceKeepsRepositoryMetadata(t *testing.T) {
	generated := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("EET", 2*60*60))
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Status:      domain.HealthStatusError,
			Version:     "from-repo",
			GeneratedAt: generated,
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Build:            BuildInfo{Version: "from-build"},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "from-repo" {
		t.Fatalf("expected repository version to win, got %s", report.Version)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
	if !report.GeneratedAt.Equal(generated) || report.GeneratedAt.Location() != time.UTC {
		t.Fatalf("expected generatedAt normalised to UTC, got %s", report.GeneratedAt)
	}
	if report.Checks == nil {
		t.Fatalf("expected checks map to be initialised")
	}
}

func TestSystemServiceStoreReadiness(t *testing.T) {
	disabled := twoCarrierSettings()
	disabled.Enabled = false
	noPayments := twoCarrierSettings()
	noPayments.PaymentMethods = nil

	cases := []struct {
		name      string
		reader    *stubSettingsReader
		status    string
		detail    string
		accepting bool
	}{
		{name: "ready", reader: settingsReader(twoCarrierSettings()), status: domain.HealthStatusOK, detail: "accepting orders", accepting: true},
		{name: "disabled", reader: settingsReader(disabled), status: domain.HealthStatusDegraded, detail: "quick order disabled", accepting: true},
		{name: "no payment methods", reader: settingsReader(noPayments), status: domain.HealthStatusDegraded, detail: "no active payment method", accepting: true},
		{
			name: "settings unavailable",
			reader: &stubSettingsReader{getFunc: func(context.Context, string) (domain.StoreSettings, error) {
				return domain.StoreSettings{}, errors.New("firestore down")
			}},
			status:    domain.HealthStatusError,
			detail:    "settings unavailable",
			accepting: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
					Status: domain.HealthStatusOK,
					Checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusOK, Critical: true}},
				}},
				Settings: tc.reader,
				Stores:   []string{"default", " default ", ""},
			})
			if err != nil {
				t.Fatalf("NewSystemService: %v", err)
			}
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			if tc.reader.calls != 1 {
				t.Fatalf("expected one settings read per distinct store, got %d", tc.reader.calls)
			}
			check, ok := report.Checks["store:default"]
			if !ok {
				t.Fatalf("expected a store check, got %+v", report.Checks)
			}
			if check.Status != tc.status || check.Detail != tc.detail || !check.Critical {
				t.Fatalf("unexpected store check %+v", check)
			}
			if report.Status != tc.status {
				t.Fatalf("expected report status %s, got %s", tc.status, report.Status)
			}
			if report.AcceptingOrders != tc.accepting {
				t.Fatalf("expected acceptingOrders %v, got %v", tc.accepting, report.AcceptingOrders)
			}
		})
	}
}

var _ repositories.HealthRepository = (*stubHealthRepository)(nil)
