package services

import (
	"context"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product            = domain.Product
	Region             = domain.Region
	Address            = domain.Address
	StoreSettings      = domain.StoreSettings
	ShippingOption     = domain.ShippingOption
	PaymentOption      = domain.PaymentOption
	PriceBreakdown     = domain.PriceBreakdown
	CommittedOrder     = domain.CommittedOrder
	SystemHealthReport = domain.SystemHealthReport
)

// AddressNormalizer canonicalises raw contact and address fragments. All methods are pure.
type AddressNormalizer interface {
	NormalizePhone(raw, callingCode string) string
	NormalizeStreet(lines []string) []string
	SynthesizeEmail(phone, domain string) string
}

// RegionResolver maps free-text region names and identifiers onto the region reference data.
type RegionResolver interface {
	// Resolve finds the region of the country whose default or localized name equals name exactly.
	Resolve(ctx context.Context, name, countryID, locale string) (Region, bool)
	// Lookup verifies that regionID belongs to the country.
	Lookup(ctx context.Context, regionID, countryID string) (Region, bool)
	List(ctx context.Context, countryID string) ([]Region, error)
}

// ShippingQuoteEngine prices shipping for a single product against the enabled carriers of a store.
type ShippingQuoteEngine interface {
	// Quote returns the options for one unit of the product. Enrichment failures yield an empty slice.
	Quote(ctx context.Context, req QuoteRequest) ([]ShippingOption, error)
	// Collect prices an already built pricing context. It is the binding collection used at commit time.
	Collect(ctx context.Context, settings StoreSettings, pc domain.PricingContext) []ShippingOption
}

// PaymentMethodProvider lists the payment methods currently enabled for a store.
type PaymentMethodProvider interface {
	// List returns ErrQuickOrderDisabled for a disabled store. A settings read failure yields an
	// empty slice.
	List(ctx context.Context, storeID string) ([]PaymentOption, error)
	ForSettings(settings StoreSettings) []PaymentOption
}

// PriceCalculator computes the live price breakdown shown on the order form.
type PriceCalculator interface {
	Calculate(ctx context.Context, req PriceRequest) (PriceBreakdown, error)
}

// OrderIntentValidator turns a raw order request into a canonical OrderIntent.
type OrderIntentValidator interface {
	Validate(settings StoreSettings, req OrderRequest) (OrderIntent, error)
}

// OrderAssembler validates, prices and commits a quick order.
type OrderAssembler interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// StorefrontService serves the form configuration and its anti-forgery key.
type StorefrontService interface {
	FormConfig(ctx context.Context, storeID string, productID int64) (FormConfig, error)
	IssueFormKey(storeID string) (string, error)
	VerifyFormKey(storeID, token string) error
}

// SystemService exposes health information.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// RateCollector is the rate engine consulted by the quote engine. shipping.Engine implements it.
type RateCollector interface {
	Collect(ctx context.Context, pc domain.PricingContext, carriers []domain.CarrierSettings) ([]domain.CarrierRates, error)
}

// FormKeyVerifier checks the anti-forgery key submitted with an order. StorefrontService implements it.
type FormKeyVerifier interface {
	VerifyFormKey(storeID, token string) error
}

// OrderNotifier hands a placed order to the confirmation email pipeline.
type OrderNotifier interface {
	NotifyOrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error
}

// QuoteRequest carries the destination fragments used for a shipping quote.
type QuoteRequest struct {
	StoreID   string
	ProductID int64
	CountryID string
	RegionID  string
	Region    string
	Postcode  string
}

// PriceRequest carries the inputs of a live price calculation.
type PriceRequest struct {
	StoreID        string
	ProductID      int64
	Quantity       int
	ShippingMethod string
	CountryID      string
	RegionID       string
	Region         string
	Postcode       string
}

// OrderRequest is the raw order submission. Product ID and quantity stay textual so the validator
// can report malformed values with the shopper facing messages.
type OrderRequest struct {
	StoreID        string
	ProductID      string
	Quantity       string
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	Street         []string
	City           string
	CountryID      string
	RegionID       string
	Region         string
	Postcode       string
	ShippingMethod string
	PaymentMethod  string
	FormKey        string
}

// OrderResult is returned after a successful commit.
type OrderResult struct {
	Order   CommittedOrder
	Message string
}

// FormConfig is the storefront facing configuration of the quick order form.
type FormConfig struct {
	StoreID        string
	Enabled        bool
	FormTitle      string
	DefaultCountry string
	Currency       string
	Locale         string
	Product        *FormProduct
	FormKey        string
	FormKeyExpires time.Time
}

// FormProduct is the product summary rendered next to the form.
type FormProduct struct {
	ID             int64
	Name           string
	Price          int64
	FormattedPrice string
}
