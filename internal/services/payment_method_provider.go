package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/easyorder/quickorder/internal/repositories"
)

// PaymentMethodProviderDeps wires the store settings used to enumerate payment methods.
type PaymentMethodProviderDeps struct {
	Settings repositories.StoreSettingsReader
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentMethodProvider struct {
	settings repositories.StoreSettingsReader
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewPaymentMethodProvider constructs a PaymentMethodProvider over the store settings.
func NewPaymentMethodProvider(deps PaymentMethodProviderDeps) (PaymentMethodProvider, error) {
	if deps.Settings == nil {
		return nil, errors.New("payment method provider: settings reader is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentMethodProvider{
		settings: deps.Settings,
		logger:   logger,
	}, nil
}

func (p *paymentMethodProvider) List(ctx context.Context, storeID string) ([]PaymentOption, error) {
	settings, err := p.settings.Get(ctx, storeID)
	if err != nil {
		p.logger(ctx, "payment.settings_failed", map[string]any{
			"level": "warn",
			"store": storeID,
			"error": err,
		})
		return []PaymentOption{}, nil
	}
	if !settings.Enabled {
		return nil, ErrQuickOrderDisabled
	}
	return p.ForSettings(settings), nil
}

// ForSettings returns the active methods of the settings in enumeration order.
func (p *paymentMethodProvider) ForSettings(settings StoreSettings) []PaymentOption {
	active := settings.ActivePaymentMethods()
	options := make([]PaymentOption, 0, len(active))
	titler := cases.Title(language.English)
	for _, method := range active {
		code := strings.TrimSpace(method.Code)
		title := strings.TrimSpace(method.Title)
		if title == "" {
			title = titler.String(strings.ReplaceAll(code, "_", " "))
		}
		options = append(options, PaymentOption{Code: code, Title: title})
	}
	return options
}

func containsPaymentOption(options []PaymentOption, code string) (PaymentOption, bool) {
	code = strings.TrimSpace(code)
	for _, option := range options {
		if option.Code == code {
			return option, true
		}
	}
	return PaymentOption{}, false
}
