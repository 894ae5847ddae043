package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/repositories"
)

var (
	// ErrProductUnavailable indicates the product is unknown, disabled or out of stock.
	ErrProductUnavailable = errors.New("quick order: product unavailable")
	// ErrInvalidQuantity indicates a negative quantity, one above domain.MaxLineQuantity, or a line
	// total that does not fit in minor units.
	ErrInvalidQuantity = errors.New("quick order: invalid quantity")
)

// PriceCalculatorDeps wires the collaborators of the price calculator.
type PriceCalculatorDeps struct {
	Settings repositories.StoreSettingsReader
	Products repositories.ProductCatalog
	Quotes   ShippingQuoteEngine
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type priceCalculator struct {
	settings repositories.StoreSettingsReader
	products repositories.ProductCatalog
	quotes   ShippingQuoteEngine
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewPriceCalculator constructs a PriceCalculator validating required dependencies.
func NewPriceCalculator(deps PriceCalculatorDeps) (PriceCalculator, error) {
	if deps.Settings == nil {
		return nil, errors.New("price calculator: settings reader is required")
	}
	if deps.Products == nil {
		return nil, errors.New("price calculator: product catalog is required")
	}
	if deps.Quotes == nil {
		return nil, errors.New("price calculator: shipping quote engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &priceCalculator{
		settings: deps.Settings,
		products: deps.Products,
		quotes:   deps.Quotes,
		logger:   logger,
	}, nil
}

// Calculate prices the product line and adds the cost of the selected shipping method. A method
// the quote engine does not return costs nothing.
func (c *priceCalculator) Calculate(ctx context.Context, req PriceRequest) (PriceBreakdown, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 || qty > domain.MaxLineQuantity {
		return PriceBreakdown{}, ErrInvalidQuantity
	}

	settings, err := c.settings.Get(ctx, req.StoreID)
	if err != nil {
		return PriceBreakdown{}, fmt.Errorf("%w: %v", ErrQuickOrderUnavailable, err)
	}
	if !settings.Enabled {
		return PriceBreakdown{}, ErrQuickOrderDisabled
	}
	if req.ProductID <= 0 {
		return PriceBreakdown{}, ErrProductUnavailable
	}

	product, err := c.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PriceBreakdown{}, ErrProductUnavailable
		}
		return PriceBreakdown{}, fmt.Errorf("%w: %v", ErrQuickOrderUnavailable, err)
	}
	if !product.Purchasable() {
		return PriceBreakdown{}, ErrProductUnavailable
	}

	line := domain.PricingLine{ProductID: product.ID, UnitPrice: product.Price, Quantity: qty}
	subtotal, ok := line.CheckedRowTotal()
	if !ok {
		return PriceBreakdown{}, ErrInvalidQuantity
	}
	breakdown := PriceBreakdown{
		Currency:       storeCurrency(settings, product),
		Locale:         settings.Locale,
		Subtotal:       subtotal,
		ShippingMethod: strings.TrimSpace(req.ShippingMethod),
	}

	if breakdown.ShippingMethod != "" {
		options, err := c.quotes.Quote(ctx, QuoteRequest{
			StoreID:   req.StoreID,
			ProductID: req.ProductID,
			CountryID: req.CountryID,
			RegionID:  req.RegionID,
			Region:    req.Region,
			Postcode:  req.Postcode,
		})
		if err != nil {
			if errors.Is(err, ErrQuickOrderDisabled) {
				return PriceBreakdown{}, err
			}
			c.logger(ctx, "price.quote_failed", map[string]any{
				"level": "warn",
				"store": settings.StoreID,
				"error": err,
			})
		}
		if option, ok := matchShippingOption(options, breakdown.ShippingMethod); ok {
			breakdown.ShippingCost = option.Price
			breakdown.Matched = true
		}
	}

	total, ok := domain.CheckedSum(breakdown.Subtotal, breakdown.ShippingCost)
	if !ok {
		return PriceBreakdown{}, ErrInvalidQuantity
	}
	breakdown.Total = total
	return breakdown, nil
}
