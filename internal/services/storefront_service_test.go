package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
)

type stubFormKeys struct {
	issued    []string
	verifyErr error
}

func (s *stubFormKeys) Issue(store string) (string, time.Time, error) {
	s.issued = append(s.issued, store)
	return "key-" + store, time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC), nil
}

func (s *stubFormKeys) Verify(store, token string) error {
	if s.verifyErr != nil {
		return s.verifyErr
	}
	if token != "key-"+store {
		return errors.New("mismatch")
	}
	return nil
}

func newStorefront(t *testing.T, settings domain.StoreSettings, keys *stubFormKeys) StorefrontService {
	t.Helper()
	svc, err := NewStorefrontService(StorefrontServiceDeps{
		Settings: settingsReader(settings),
		Products: productCatalog(testProduct()),
		FormKeys: keys,
	})
	if err != nil {
		t.Fatalf("NewStorefrontService: %v", err)
	}
	return svc
}

func TestStorefrontFormConfig(t *testing.T) {
	keys := &stubFormKeys{}
	settings := twoCarrierSettings()
	settings.Locale = "en"
	svc := newStorefront(t, settings, keys)

	cfg, err := svc.FormConfig(context.Background(), "default", 5)
	if err != nil {
		t.Fatalf("FormConfig: %v", err)
	}
	if !cfg.Enabled || cfg.FormTitle != defaultFormTitle || cfg.DefaultCountry != "EG" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.FormKey != "key-default" || len(keys.issued) != 1 {
		t.Fatalf("expected form key issued for store, got %q (%v)", cfg.FormKey, keys.issued)
	}
	if cfg.Product == nil || cfg.Product.Price != 25000 || cfg.Product.FormattedPrice == "" {
		t.Fatalf("expected product summary, got %+v", cfg.Product)
	}
}

func TestStorefrontFormConfigDisabledStore(t *testing.T) {
	keys := &stubFormKeys{}
	settings := twoCarrierSettings()
	settings.Enabled = false
	svc := newStorefront(t, settings, keys)

	cfg, err := svc.FormConfig(context.Background(), "default", 5)
	if err != nil {
		t.Fatalf("FormConfig: %v", err)
	}
	if cfg.Enabled || cfg.FormKey != "" || cfg.Product != nil {
		t.Fatalf("expected disabled config without key or product, got %+v", cfg)
	}
	if len(keys.issued) != 0 {
		t.Fatalf("expected no key issued")
	}
}

func TestStorefrontFormConfigUnknownProduct(t *testing.T) {
	svc := newStorefront(t, twoCarrierSettings(), &stubFormKeys{})
	cfg, err := svc.FormConfig(context.Background(), "default", 42)
	if err != nil {
		t.Fatalf("FormConfig: %v", err)
	}
	if cfg.Product != nil {
		t.Fatalf("expected no product summary, got %+v", cfg.Product)
	}
}

func TestStorefrontVerifyFormKey(t *testing.T) {
	svc := newStorefront(t, twoCarrierSettings(), &stubFormKeys{})
	if err := svc.VerifyFormKey("default", "key-default"); err != nil {
		t.Fatalf("expected key to verify, got %v", err)
	}
	if err := svc.VerifyFormKey("default", "key-other"); !errors.Is(err, ErrInvalidFormKey) {
		t.Fatalf("expected ErrInvalidFormKey, got %v", err)
	}
}
