package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/repositories"
)

const (
	fallbackCarrierCode   = "quickorder"
	fallbackMethodCode    = "fallback"
	fallbackShippingTitle = "Standard Shipping"

	placeholderName   = "Guest User"
	placeholderStreet = "Default Street"
	placeholderPhone  = "123456789"
	placeholderEmail  = "guest@example.com"
	placeholderCity   = "Default City"
)

var (
	// ErrQuickOrderDisabled indicates the quick order form is switched off for the store.
	ErrQuickOrderDisabled = errors.New("quick order: disabled")
	// ErrQuickOrderUnavailable indicates store settings could not be read.
	ErrQuickOrderUnavailable = errors.New("quick order: unavailable")
	// ErrQuoteInputRequired indicates a shipping quote was requested without product or country.
	ErrQuoteInputRequired = errors.New("quick order: product and country are required")
)

// ShippingQuoteEngineDeps wires the collaborators of the shipping quote engine.
type ShippingQuoteEngineDeps struct {
	Settings repositories.StoreSettingsReader
	Products repositories.ProductCatalog
	Rates    RateCollector
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type shippingQuoteEngine struct {
	settings repositories.StoreSettingsReader
	products repositories.ProductCatalog
	rates    RateCollector
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewShippingQuoteEngine constructs a ShippingQuoteEngine validating required dependencies.
func NewShippingQuoteEngine(deps ShippingQuoteEngineDeps) (ShippingQuoteEngine, error) {
	if deps.Settings == nil {
		return nil, errors.New("shipping quote engine: settings reader is required")
	}
	if deps.Products == nil {
		return nil, errors.New("shipping quote engine: product catalog is required")
	}
	if deps.Rates == nil {
		return nil, errors.New("shipping quote engine: rate collector is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingQuoteEngine{
		settings: deps.Settings,
		products: deps.Products,
		rates:    deps.Rates,
		logger:   logger,
	}, nil
}

func (e *shippingQuoteEngine) Quote(ctx context.Context, req QuoteRequest) ([]ShippingOption, error) {
	countryID := strings.ToUpper(strings.TrimSpace(req.CountryID))
	if req.ProductID <= 0 || countryID == "" {
		return nil, ErrQuoteInputRequired
	}

	settings, err := e.settings.Get(ctx, req.StoreID)
	if err != nil {
		e.logger(ctx, "quote.settings_failed", map[string]any{
			"level": "warn",
			"store": req.StoreID,
			"error": err,
		})
		return []ShippingOption{}, nil
	}
	if !settings.Enabled {
		return nil, ErrQuickOrderDisabled
	}

	product, err := e.products.FindByID(ctx, req.ProductID)
	if err != nil || !product.Purchasable() {
		fields := map[string]any{
			"level":     "warn",
			"store":     settings.StoreID,
			"productId": req.ProductID,
		}
		if err != nil {
			fields["error"] = err
		}
		e.logger(ctx, "quote.product_unavailable", fields)
		return []ShippingOption{}, nil
	}

	regionText := strings.TrimSpace(req.Region)
	regionID := strings.TrimSpace(req.RegionID)
	city := regionText
	if city == "" {
		city = regionID
	}
	if city == "" {
		city = placeholderCity
	}

	pc := domain.NewPricingContext(settings.StoreID, storeCurrency(settings, product), domain.PricingLine{
		ProductID: product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
		Weight:    product.Weight,
	}).WithDestination(domain.Address{
		Name:      placeholderName,
		Street:    []string{placeholderStreet},
		City:      city,
		CountryID: countryID,
		RegionID:  regionID,
		Region:    regionText,
		Postcode:  strings.TrimSpace(req.Postcode),
		Telephone: placeholderPhone,
		Email:     placeholderEmail,
	})

	options := e.Collect(ctx, settings, pc)
	if len(options) == 0 {
		e.logger(ctx, "quote.no_methods", map[string]any{
			"level":   "warn",
			"store":   settings.StoreID,
			"country": countryID,
			"region":  chooseFirstNonEmpty(regionID, regionText),
		})
	}
	return options, nil
}

// Collect flattens the carrier groups into options in carrier then method order. Carriers that
// failed are logged and left out. The fallback option is added per store policy.
func (e *shippingQuoteEngine) Collect(ctx context.Context, settings StoreSettings, pc domain.PricingContext) []ShippingOption {
	options := []ShippingOption{}
	if !settings.ForceFallbackShipping {
		groups, err := e.rates.Collect(ctx, pc, settings.ActiveCarriers())
		if err != nil {
			e.logger(ctx, "quote.collect_failed", map[string]any{
				"level": "warn",
				"store": pc.StoreID(),
				"error": err,
			})
			groups = nil
		}
		for _, group := range groups {
			if group.ErrorMessage != "" {
				e.logger(ctx, "quote.carrier_failed", map[string]any{
					"level":   "warn",
					"carrier": group.CarrierCode,
					"error":   group.ErrorMessage,
				})
				continue
			}
			for _, rate := range group.Rates {
				options = append(options, ShippingOption{
					CarrierCode:  group.CarrierCode,
					MethodCode:   rate.MethodCode,
					Code:         group.CarrierCode + "_" + rate.MethodCode,
					Title:        rate.MethodTitle,
					CarrierTitle: group.CarrierTitle,
					Price:        nonNegative(rate.Price),
					Cost:         nonNegative(rate.Cost),
				})
			}
		}
	}

	if settings.ForceFallbackShipping || (len(options) == 0 && settings.DefaultShippingPrice > 0) {
		options = append(options, fallbackOption(settings, pc.Subtotal()))
	}
	return options
}

func fallbackOption(settings StoreSettings, subtotal int64) ShippingOption {
	price := nonNegative(settings.DefaultShippingPrice)
	if settings.FreeShippingThreshold > 0 && subtotal >= settings.FreeShippingThreshold {
		price = 0
	}
	title := strings.TrimSpace(settings.FallbackShippingTitle)
	if title == "" {
		title = fallbackShippingTitle
	}
	return ShippingOption{
		CarrierCode:  fallbackCarrierCode,
		MethodCode:   fallbackMethodCode,
		Code:         fallbackCarrierCode + "_" + fallbackMethodCode,
		Title:        title,
		CarrierTitle: title,
		Price:        price,
		Cost:         price,
	}
}

// matchShippingOption finds the option selected by code, trying the combined code before the
// bare method code. The first match in engine order wins.
func matchShippingOption(options []ShippingOption, code string) (ShippingOption, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ShippingOption{}, false
	}
	for _, option := range options {
		if option.Code == code {
			return option, true
		}
	}
	for _, option := range options {
		if option.MethodCode == code {
			return option, true
		}
	}
	return ShippingOption{}, false
}

func storeCurrency(settings StoreSettings, product Product) string {
	return strings.ToUpper(chooseFirstNonEmpty(settings.Currency, product.Currency, "EGP"))
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
