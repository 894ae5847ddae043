package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/shipping"
)

func newQuoteEngine(t *testing.T, settings *stubSettingsReader, products *stubProductCatalog, rates RateCollector, logger func(context.Context, string, map[string]any)) ShippingQuoteEngine {
	t.Helper()
	engine, err := NewShippingQuoteEngine(ShippingQuoteEngineDeps{
		Settings: settings,
		Products: products,
		Rates:    rates,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewShippingQuoteEngine: %v", err)
	}
	return engine
}

func TestShippingQuoteEngineFlattensEnabledCarriers(t *testing.T) {
	engine := newQuoteEngine(t, settingsReader(twoCarrierSettings()), productCatalog(testProduct()), shipping.NewEngine(), nil)

	options, err := engine.Quote(context.Background(), QuoteRequest{
		StoreID:   "default",
		ProductID: 5,
		CountryID: "EG",
		Region:    "Cairo",
		Postcode:  "",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	wantCodes := []string{"flatrate_flatrate", "flatrate_express", "tablerate_bestway"}
	if len(options) != len(wantCodes) {
		t.Fatalf("expected %d options, got %d: %+v", len(wantCodes), len(options), options)
	}
	for i, option := range options {
		if option.Code != wantCodes[i] {
			t.Fatalf("expected option %d to be %s, got %s", i, wantCodes[i], option.Code)
		}
		if option.Price < 0 {
			t.Fatalf("expected non-negative price, got %d", option.Price)
		}
	}
	if options[0].CarrierTitle != "Flat Rate" || options[0].Title != "Fixed" || options[0].Price != 5000 {
		t.Fatalf("unexpected first option %+v", options[0])
	}
	if options[2].Price != 3000 {
		t.Fatalf("expected table rate price 3000, got %d", options[2].Price)
	}
}

func TestShippingQuoteEngineUsesPlaceholderDestination(t *testing.T) {
	rates := &stubRateCollector{}
	engine := newQuoteEngine(t, settingsReader(twoCarrierSettings()), productCatalog(testProduct()), rates, nil)

	if _, err := engine.Quote(context.Background(), QuoteRequest{StoreID: "default", ProductID: 5, CountryID: "eg"}); err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(rates.contexts) != 1 {
		t.Fatalf("expected one rate collection, got %d", len(rates.contexts))
	}
	pc := rates.contexts[0]
	dest := pc.Destination()
	if pc.Line().Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", pc.Line().Quantity)
	}
	if dest.CountryID != "EG" || dest.City != placeholderCity || dest.Name != placeholderName {
		t.Fatalf("unexpected placeholder destination %+v", dest)
	}
	if len(dest.Street) != 1 || dest.Street[0] != placeholderStreet || dest.Telephone != placeholderPhone || dest.Email != placeholderEmail {
		t.Fatalf("unexpected placeholder identity %+v", dest)
	}
}

func TestShippingQuoteEngineErrors(t *testing.T) {
	disabled := twoCarrierSettings()
	disabled.Enabled = false
	engine := newQuoteEngine(t, settingsReader(disabled), productCatalog(testProduct()), shipping.NewEngine(), nil)

	if _, err := engine.Quote(context.Background(), QuoteRequest{ProductID: 5, CountryID: "EG"}); !errors.Is(err, ErrQuickOrderDisabled) {
		t.Fatalf("expected ErrQuickOrderDisabled, got %v", err)
	}
	if _, err := engine.Quote(context.Background(), QuoteRequest{ProductID: 5}); !errors.Is(err, ErrQuoteInputRequired) {
		t.Fatalf("expected ErrQuoteInputRequired without country, got %v", err)
	}
	if _, err := engine.Quote(context.Background(), QuoteRequest{CountryID: "EG"}); !errors.Is(err, ErrQuoteInputRequired) {
		t.Fatalf("expected ErrQuoteInputRequired without product, got %v", err)
	}
}

func TestShippingQuoteEngineDegradesToEmpty(t *testing.T) {
	failingSettings := &stubSettingsReader{getFunc: func(context.Context, string) (domain.StoreSettings, error) {
		return domain.StoreSettings{}, errors.New("firestore unavailable")
	}}
	failingRates := &stubRateCollector{collectFunc: func(context.Context, domain.PricingContext, []domain.CarrierSettings) ([]domain.CarrierRates, error) {
		return nil, errors.New("rate engine down")
	}}

	cases := map[string]ShippingQuoteEngine{
		"settings": newQuoteEngine(t, failingSettings, productCatalog(testProduct()), shipping.NewEngine(), nil),
		"product":  newQuoteEngine(t, settingsReader(twoCarrierSettings()), productCatalog(), shipping.NewEngine(), nil),
		"rates":    newQuoteEngine(t, settingsReader(twoCarrierSettings()), productCatalog(testProduct()), failingRates, nil),
	}
	for name, engine := range cases {
		options, err := engine.Quote(context.Background(), QuoteRequest{ProductID: 5, CountryID: "EG"})
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", name, err)
		}
		if options == nil || len(options) != 0 {
			t.Fatalf("%s: expected empty slice, got %#v", name, options)
		}
	}
}

func TestShippingQuoteEngineSkipsFailedCarriers(t *testing.T) {
	recorder := &eventRecorder{}
	rates := &stubRateCollector{collectFunc: func(context.Context, domain.PricingContext, []domain.CarrierSettings) ([]domain.CarrierRates, error) {
		return []domain.CarrierRates{
			{CarrierCode: "aramex", ErrorMessage: "timeout"},
			{CarrierCode: "flatrate", CarrierTitle: "Flat Rate", Rates: []domain.Rate{{MethodCode: "flatrate", MethodTitle: "Fixed", Price: 5000}}},
		}, nil
	}}
	engine := newQuoteEngine(t, settingsReader(twoCarrierSettings()), productCatalog(testProduct()), rates, recorder.log)

	options, err := engine.Quote(context.Background(), QuoteRequest{ProductID: 5, CountryID: "EG"})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(options) != 1 || options[0].Code != "flatrate_flatrate" {
		t.Fatalf("expected only the flat rate option, got %+v", options)
	}
	if _, ok := recorder.find("quote.carrier_failed"); !ok {
		t.Fatalf("expected carrier failure to be logged")
	}
}

func TestShippingQuoteEngineFallback(t *testing.T) {
	noCarriers := twoCarrierSettings()
	noCarriers.Carriers = nil
	noCarriers.DefaultShippingPrice = 4500
	noCarriers.FreeShippingThreshold = 50000
	noCarriers.FallbackShippingTitle = "Delivery"

	engine := newQuoteEngine(t, settingsReader(noCarriers), productCatalog(testProduct()), shipping.NewEngine(), nil)
	options, err := engine.Quote(context.Background(), QuoteRequest{ProductID: 5, CountryID: "EG"})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(options) != 1 || options[0].Code != "quickorder_fallback" || options[0].Price != 4500 || options[0].Title != "Delivery" {
		t.Fatalf("unexpected fallback options %+v", options)
	}

	forced := twoCarrierSettings()
	forced.ForceFallbackShipping = true
	forced.DefaultShippingPrice = 4500
	forced.FreeShippingThreshold = 20000
	engine = newQuoteEngine(t, settingsReader(forced), productCatalog(testProduct()), shipping.NewEngine(), nil)
	options, err = engine.Quote(context.Background(), QuoteRequest{ProductID: 5, CountryID: "EG"})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(options) != 1 || options[0].Code != "quickorder_fallback" {
		t.Fatalf("expected forced fallback only, got %+v", options)
	}
	if options[0].Price != 0 {
		t.Fatalf("expected free fallback above threshold, got %d", options[0].Price)
	}
}

func TestMatchShippingOptionPrefersCombinedCode(t *testing.T) {
	options := []ShippingOption{
		{CarrierCode: "tablerate", MethodCode: "flatrate", Code: "tablerate_flatrate", Price: 1},
		{CarrierCode: "flatrate", MethodCode: "flatrate", Code: "flatrate_flatrate", Price: 2},
	}
	if option, ok := matchShippingOption(options, "flatrate_flatrate"); !ok || option.Price != 2 {
		t.Fatalf("expected combined code match, got %+v %v", option, ok)
	}
	if option, ok := matchShippingOption(options, "flatrate"); !ok || option.Price != 1 {
		t.Fatalf("expected first method code match, got %+v %v", option, ok)
	}
	if _, ok := matchShippingOption(options, "dhl_express"); ok {
		t.Fatalf("expected no match")
	}
}
