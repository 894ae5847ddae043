package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/repositories"
)

const (
	quoteIDPrefix         = "qte_"
	defaultSuccessMessage = "Your order has been placed successfully."
)

var (
	// ErrShippingMethodUnavailable indicates the submitted shipping method is not offered anymore.
	ErrShippingMethodUnavailable = errors.New("quick order: shipping method unavailable")
	// ErrPaymentMethodUnavailable indicates the submitted payment method is not enabled anymore.
	ErrPaymentMethodUnavailable = errors.New("quick order: payment method unavailable")
	// ErrOrderCommitFailed indicates the order store failed for a reason that is not safe to show.
	ErrOrderCommitFailed = errors.New("quick order: order commit failed")
)

// OrderAssemblerDeps wires the collaborators required to assemble and commit an order.
type OrderAssemblerDeps struct {
	Settings    repositories.StoreSettingsReader
	Products    repositories.ProductCatalog
	Orders      repositories.OrderStore
	Regions     RegionResolver
	Quotes      ShippingQuoteEngine
	Payments    PaymentMethodProvider
	FormKeys    FormKeyVerifier
	Validator   OrderIntentValidator
	Normalizer  AddressNormalizer
	Notifier    OrderNotifier
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderAssembler struct {
	settings   repositories.StoreSettingsReader
	products   repositories.ProductCatalog
	orders     repositories.OrderStore
	regions    RegionResolver
	quotes     ShippingQuoteEngine
	payments   PaymentMethodProvider
	formKeys   FormKeyVerifier
	validator  OrderIntentValidator
	normalizer AddressNormalizer
	notifier   OrderNotifier
	now        func() time.Time
	newID      func() string
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderAssembler constructs an OrderAssembler validating required dependencies.
func NewOrderAssembler(deps OrderAssemblerDeps) (OrderAssembler, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("order assembler: settings reader is required")
	case deps.Products == nil:
		return nil, errors.New("order assembler: product catalog is required")
	case deps.Orders == nil:
		return nil, errors.New("order assembler: order store is required")
	case deps.Regions == nil:
		return nil, errors.New("order assembler: region resolver is required")
	case deps.Quotes == nil:
		return nil, errors.New("order assembler: shipping quote engine is required")
	case deps.Payments == nil:
		return nil, errors.New("order assembler: payment method provider is required")
	case deps.FormKeys == nil:
		return nil, errors.New("order assembler: form key verifier is required")
	}

	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = NewAddressNormalizer()
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewOrderIntentValidator(normalizer)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return quoteIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderAssembler{
		settings:   deps.Settings,
		products:   deps.Products,
		orders:     deps.Orders,
		regions:    deps.Regions,
		quotes:     deps.Quotes,
		payments:   deps.Payments,
		formKeys:   deps.FormKeys,
		validator:  validator,
		normalizer: normalizer,
		notifier:   deps.Notifier,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateOrder runs the order pipeline: settings, form key, validation, region resolution, guest
// identity, binding shipping and payment checks, then a single commit attempt.
func (a *orderAssembler) CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	settings, err := a.settings.Get(ctx, req.StoreID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %v", ErrQuickOrderUnavailable, err)
	}
	if !settings.Enabled {
		return OrderResult{}, ErrQuickOrderDisabled
	}
	if err := a.formKeys.VerifyFormKey(req.StoreID, req.FormKey); err != nil {
		a.logger(ctx, "order.form_key_rejected", map[string]any{
			"level": "warn",
			"store": req.StoreID,
		})
		return OrderResult{}, err
	}

	intent, err := a.validator.Validate(settings, req)
	if err != nil {
		return OrderResult{}, err
	}

	product, err := a.products.FindByID(ctx, intent.ProductID())
	if err != nil {
		if repositories.IsNotFound(err) {
			return OrderResult{}, ErrProductUnavailable
		}
		return OrderResult{}, fmt.Errorf("%w: %v", ErrQuickOrderUnavailable, err)
	}
	if !product.Purchasable() {
		return OrderResult{}, ErrProductUnavailable
	}

	address := a.buildAddress(ctx, settings, intent)
	customer := domain.GuestCustomer{
		Name:  intent.CustomerName(),
		Email: address.Email,
		Phone: intent.CustomerPhone(),
	}

	pc := domain.NewPricingContext(settings.StoreID, storeCurrency(settings, product), domain.PricingLine{
		ProductID: product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  intent.Quantity(),
		Weight:    product.Weight,
	}).WithDestination(address)
	subtotal, ok := pc.Line().CheckedRowTotal()
	if !ok {
		return OrderResult{}, invalid("qty", "Invalid quantity.")
	}

	shipping, ok := matchShippingOption(a.quotes.Collect(ctx, settings, pc), intent.ShippingMethod())
	if !ok {
		a.logger(ctx, "order.shipping_unavailable", map[string]any{
			"level":  "warn",
			"store":  settings.StoreID,
			"method": intent.ShippingMethod(),
		})
		return OrderResult{}, ErrShippingMethodUnavailable
	}
	payment, ok := containsPaymentOption(a.payments.ForSettings(settings), intent.PaymentMethod())
	if !ok {
		a.logger(ctx, "order.payment_unavailable", map[string]any{
			"level":  "warn",
			"store":  settings.StoreID,
			"method": intent.PaymentMethod(),
		})
		return OrderResult{}, ErrPaymentMethodUnavailable
	}

	grandTotal, ok := domain.CheckedSum(subtotal, shipping.Price)
	if !ok {
		return OrderResult{}, invalid("qty", "Invalid quantity.")
	}

	now := a.now()
	quote := domain.Quote{
		ID:              a.newID(),
		StoreID:         settings.StoreID,
		Line:            pc.Line(),
		Customer:        customer,
		BillingAddress:  address,
		ShippingAddress: pc.Destination(),
		ShippingMethod:  shipping,
		PaymentMethod:   payment,
		Totals: domain.OrderTotals{
			Currency:   pc.Currency(),
			Subtotal:   subtotal,
			Shipping:   shipping.Price,
			GrandTotal: grandTotal,
		},
		Status:    domain.QuoteStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	order, err := a.commit(ctx, quote)
	if err != nil {
		return OrderResult{}, err
	}

	a.logger(ctx, "order.placed", map[string]any{
		"level":       "info",
		"store":       order.StoreID,
		"orderId":     order.OrderID,
		"incrementId": order.IncrementID,
		"grandTotal":  order.Totals.GrandTotal,
	})

	if settings.SendEmailNotification {
		a.notify(ctx, order, quote)
	}

	message := strings.TrimSpace(settings.SuccessMessage)
	if message == "" {
		message = defaultSuccessMessage
	}
	return OrderResult{Order: order, Message: message}, nil
}

// buildAddress resolves the region and the guest email. The free-text region is kept for display
// while the stored identifier is the supplied one when it belongs to the country, else the one
// resolved from the text.
func (a *orderAssembler) buildAddress(ctx context.Context, settings StoreSettings, intent OrderIntent) domain.Address {
	display := intent.RegionText()
	regionID := ""
	if supplied := intent.RegionID(); supplied != "" {
		if region, ok := a.regions.Lookup(ctx, supplied, intent.CountryID()); ok {
			regionID = region.ID
			if display == "" {
				display = region.LocalizedName(settings.Locale)
			}
		} else if display == "" {
			display = supplied
		}
	}
	if regionID == "" && intent.RegionText() != "" {
		if region, ok := a.regions.Resolve(ctx, intent.RegionText(), intent.CountryID(), settings.Locale); ok {
			regionID = region.ID
		}
	}

	email := intent.CustomerEmail()
	if email == "" && settings.AutoGenerateEmail {
		email = a.normalizer.SynthesizeEmail(intent.CustomerPhone(), settings.GuestEmailDomain)
	}

	return domain.Address{
		Name:      intent.CustomerName(),
		Street:    intent.Street(),
		City:      intent.City(),
		CountryID: intent.CountryID(),
		RegionID:  regionID,
		Region:    display,
		Postcode:  intent.Postcode(),
		Telephone: intent.CustomerPhone(),
		Email:     email,
	}
}

func (a *orderAssembler) commit(ctx context.Context, quote domain.Quote) (domain.CommittedOrder, error) {
	saved, err := a.orders.SaveQuote(ctx, quote)
	if err != nil {
		return domain.CommittedOrder{}, a.commitError(ctx, quote, "save_quote", err)
	}
	if saved.ID == "" {
		saved.ID = quote.ID
	}
	order, err := a.orders.PlaceOrder(ctx, saved.StoreID, saved.ID)
	if err != nil {
		return domain.CommittedOrder{}, a.commitError(ctx, saved, "place_order", err)
	}
	return order, nil
}

func (a *orderAssembler) commitError(ctx context.Context, quote domain.Quote, step string, err error) error {
	var userErr *domain.UserError
	if errors.As(err, &userErr) {
		a.logger(ctx, "order.commit_rejected", map[string]any{
			"level":   "warn",
			"store":   quote.StoreID,
			"quoteId": quote.ID,
			"step":    step,
			"error":   err,
		})
		return domain.NewUserError("Unable to create order: "+userErr.Message, err)
	}
	a.logger(ctx, "order.commit_failed", map[string]any{
		"level":   "error",
		"store":   quote.StoreID,
		"quoteId": quote.ID,
		"step":    step,
		"error":   err,
	})
	return fmt.Errorf("%w: %s: %v", ErrOrderCommitFailed, step, err)
}

func (a *orderAssembler) notify(ctx context.Context, order domain.CommittedOrder, quote domain.Quote) {
	if a.notifier == nil {
		return
	}
	event := domain.OrderPlacedEvent{
		OrderID:        order.OrderID,
		IncrementID:    order.IncrementID,
		StoreID:        order.StoreID,
		Customer:       quote.Customer,
		ProductID:      quote.Line.ProductID,
		ProductName:    quote.Line.Name,
		Quantity:       quote.Line.Quantity,
		ShippingMethod: quote.ShippingMethod.Code,
		PaymentMethod:  quote.PaymentMethod.Code,
		Totals:         order.Totals,
		PlacedAt:       order.PlacedAt,
	}
	if err := a.notifier.NotifyOrderPlaced(ctx, event); err != nil {
		a.logger(ctx, "order.notify_failed", map[string]any{
			"level":   "warn",
			"store":   order.StoreID,
			"orderId": order.OrderID,
			"error":   err,
		})
	}
}
