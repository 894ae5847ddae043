package services

import (
	"context"
	"errors"
	"sync"

	domain "github.com/easyorder/quickorder/internal/domain"
)

type notFoundError struct{ op string }

func (e notFoundError) Error() string       { return e.op + ": not found" }
func (e notFoundError) IsNotFound() bool    { return true }
func (e notFoundError) IsConflict() bool    { return false }
func (e notFoundError) IsUnavailable() bool { return false }

type stubSettingsReader struct {
	getFunc func(ctx context.Context, storeID string) (domain.StoreSettings, error)
	calls   int
}

func (s *stubSettingsReader) Get(ctx context.Context, storeID string) (domain.StoreSettings, error) {
	s.calls++
	if s.getFunc != nil {
		return s.getFunc(ctx, storeID)
	}
	return domain.StoreSettings{}, errors.New("not implemented")
}

func settingsReader(settings domain.StoreSettings) *stubSettingsReader {
	return &stubSettingsReader{getFunc: func(_ context.Context, storeID string) (domain.StoreSettings, error) {
		out := settings
		if out.StoreID == "" {
			out.StoreID = storeID
		}
		return out, nil
	}}
}

type stubProductCatalog struct {
	findFunc func(ctx context.Context, productID int64) (domain.Product, error)
}

func (s *stubProductCatalog) FindByID(ctx context.Context, productID int64) (domain.Product, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, productID)
	}
	return domain.Product{}, notFoundError{op: "product"}
}

func productCatalog(products ...domain.Product) *stubProductCatalog {
	return &stubProductCatalog{findFunc: func(_ context.Context, productID int64) (domain.Product, error) {
		for _, p := range products {
			if p.ID == productID {
				return p, nil
			}
		}
		return domain.Product{}, notFoundError{op: "product"}
	}}
}

type stubRegionLookup struct {
	listFunc func(ctx context.Context, countryID string) ([]domain.Region, error)
}

func (s *stubRegionLookup) ListByCountry(ctx context.Context, countryID string) ([]domain.Region, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, countryID)
	}
	return nil, nil
}

type stubOrderStore struct {
	saveFunc  func(ctx context.Context, quote domain.Quote) (domain.Quote, error)
	placeFunc func(ctx context.Context, storeID, quoteID string) (domain.CommittedOrder, error)

	saved     []domain.Quote
	placeHits int
}

func (s *stubOrderStore) SaveQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error) {
	s.saved = append(s.saved, quote)
	if s.saveFunc != nil {
		return s.saveFunc(ctx, quote)
	}
	return quote, nil
}

func (s *stubOrderStore) PlaceOrder(ctx context.Context, storeID, quoteID string) (domain.CommittedOrder, error) {
	s.placeHits++
	if s.placeFunc != nil {
		return s.placeFunc(ctx, storeID, quoteID)
	}
	var quote domain.Quote
	if n := len(s.saved); n > 0 {
		quote = s.saved[n-1]
	}
	return domain.CommittedOrder{
		OrderID:     "ord_1",
		IncrementID: "000000001",
		StoreID:     storeID,
		QuoteID:     quoteID,
		Customer:    quote.Customer,
		Totals:      quote.Totals,
	}, nil
}

type stubRateCollector struct {
	collectFunc func(ctx context.Context, pc domain.PricingContext, carriers []domain.CarrierSettings) ([]domain.CarrierRates, error)
	contexts    []domain.PricingContext
}

func (s *stubRateCollector) Collect(ctx context.Context, pc domain.PricingContext, carriers []domain.CarrierSettings) ([]domain.CarrierRates, error) {
	s.contexts = append(s.contexts, pc)
	if s.collectFunc != nil {
		return s.collectFunc(ctx, pc, carriers)
	}
	return nil, nil
}

type stubNotifier struct {
	err    error
	events []domain.OrderPlacedEvent
}

func (s *stubNotifier) NotifyOrderPlaced(_ context.Context, event domain.OrderPlacedEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type stubFormKeys struct {
	err   error
	calls []string
}

func (s *stubFormKeys) VerifyFormKey(storeID, token string) error {
	s.calls = append(s.calls, storeID+":"+token)
	return s.err
}

type loggedEvent struct {
	name   string
	fields map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (r *eventRecorder) log(_ context.Context, event string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, loggedEvent{name: event, fields: fields})
}

func (r *eventRecorder) find(name string) (loggedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e, true
		}
	}
	return loggedEvent{}, false
}

func testProduct() domain.Product {
	return domain.Product{ID: 5, SKU: "SKU-5", Name: "Silver Ring", Price: 25000, Currency: "EGP", Enabled: true, InStock: true}
}

// twoCarrierSettings matches the store used by the storefront examples: a flat rate with two
// methods and a table rate for Cairo.
func twoCarrierSettings() domain.StoreSettings {
	return domain.StoreSettings{
		Enabled:           true,
		DefaultCountry:    "EG",
		CallingCode:       "20",
		Currency:          "EGP",
		Locale:            "ar-EG",
		AutoGenerateEmail: true,
		GuestEmailDomain:  "easypay.com",
		SuccessMessage:    "Thank you for your order.",
		Carriers: []domain.CarrierSettings{
			{
				Code: "flatrate", Type: domain.CarrierTypeFlatRate, Title: "Flat Rate", Active: true, SortOrder: 10,
				Methods: []domain.CarrierMethod{
					{Code: "flatrate", Name: "Fixed", Price: 5000},
					{Code: "express", Name: "Express", Price: 9000},
				},
			},
			{
				Code: "tablerate", Type: domain.CarrierTypeTableRate, Title: "Best Way", Active: true, SortOrder: 20,
				TableRates: []domain.TableRateRow{{CountryID: "EG", Region: "Cairo", Price: 3000}},
			},
			{Code: "dhl", Type: domain.CarrierTypeFlatRate, Title: "DHL", Active: false},
		},
		PaymentMethods: []domain.PaymentMethodSettings{
			{Code: "cashondelivery", Title: "Cash On Delivery", Active: true, SortOrder: 1},
			{Code: "bank_transfer", Active: true, SortOrder: 2},
			{Code: "checkmo", Title: "Check / Money order", Active: false},
		},
	}
}
