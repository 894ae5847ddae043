package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easyorder/quickorder/internal/platform/money"
	"github.com/easyorder/quickorder/internal/repositories"
)

// ErrInvalidFormKey indicates the anti-forgery key is missing, forged, expired or bound to another store.
var ErrInvalidFormKey = errors.New("quick order: invalid form key")

const defaultFormTitle = "Quick Order"

// FormKeyIssuer issues and verifies store scoped anti-forgery keys. auth.FormKeySigner implements it.
type FormKeyIssuer interface {
	Issue(store string) (string, time.Time, error)
	Verify(store, token string) error
}

// StorefrontServiceDeps wires the collaborators of the storefront service.
type StorefrontServiceDeps struct {
	Settings repositories.StoreSettingsReader
	Products repositories.ProductCatalog
	FormKeys FormKeyIssuer
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type storefrontService struct {
	settings repositories.StoreSettingsReader
	products repositories.ProductCatalog
	formKeys FormKeyIssuer
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewStorefrontService constructs a StorefrontService validating required dependencies.
func NewStorefrontService(deps StorefrontServiceDeps) (StorefrontService, error) {
	if deps.Settings == nil {
		return nil, errors.New("storefront service: settings reader is required")
	}
	if deps.Products == nil {
		return nil, errors.New("storefront service: product catalog is required")
	}
	if deps.FormKeys == nil {
		return nil, errors.New("storefront service: form key issuer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &storefrontService{
		settings: deps.Settings,
		products: deps.Products,
		formKeys: deps.FormKeys,
		logger:   logger,
	}, nil
}

// FormConfig returns the form configuration. A disabled store yields Enabled=false without a form key.
func (s *storefrontService) FormConfig(ctx context.Context, storeID string, productID int64) (FormConfig, error) {
	settings, err := s.settings.Get(ctx, storeID)
	if err != nil {
		return FormConfig{}, fmt.Errorf("%w: %v", ErrQuickOrderUnavailable, err)
	}

	cfg := FormConfig{
		StoreID:        settings.StoreID,
		Enabled:        settings.Enabled,
		FormTitle:      chooseFirstNonEmpty(strings.TrimSpace(settings.FormTitle), defaultFormTitle),
		DefaultCountry: strings.ToUpper(settings.DefaultCountry),
		Currency:       strings.ToUpper(settings.Currency),
		Locale:         settings.Locale,
	}
	if !settings.Enabled {
		return cfg, nil
	}

	if productID > 0 {
		product, err := s.products.FindByID(ctx, productID)
		switch {
		case err != nil:
			s.logger(ctx, "storefront.product_failed", map[string]any{
				"level":     "warn",
				"store":     settings.StoreID,
				"productId": productID,
				"error":     err,
			})
		case product.Purchasable():
			currency := storeCurrency(settings, product)
			cfg.Currency = currency
			cfg.Product = &FormProduct{
				ID:             product.ID,
				Name:           product.Name,
				Price:          product.Price,
				FormattedPrice: money.MustFormatter(settings.Locale, currency).Format(product.Price),
			}
		}
	}

	token, expires, err := s.formKeys.Issue(storeID)
	if err != nil {
		return FormConfig{}, fmt.Errorf("storefront service: issue form key: %w", err)
	}
	cfg.FormKey = token
	cfg.FormKeyExpires = expires
	return cfg, nil
}

func (s *storefrontService) IssueFormKey(storeID string) (string, error) {
	token, _, err := s.formKeys.Issue(storeID)
	if err != nil {
		return "", fmt.Errorf("storefront service: issue form key: %w", err)
	}
	return token, nil
}

func (s *storefrontService) VerifyFormKey(storeID, token string) error {
	if err := s.formKeys.Verify(storeID, token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormKey, err)
	}
	return nil
}
