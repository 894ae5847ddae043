package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/services"
)

type stubQuoteEngine struct {
	quoteFn func(ctx context.Context, req services.QuoteRequest) ([]services.ShippingOption, error)
}

func (s *stubQuoteEngine) Quote(ctx context.Context, req services.QuoteRequest) ([]services.ShippingOption, error) {
	if s.quoteFn == nil {
		return nil, nil
	}
	return s.quoteFn(ctx, req)
}

func (s *stubQuoteEngine) Collect(context.Context, services.StoreSettings, domain.PricingContext) []services.ShippingOption {
	return nil
}

type stubPriceCalculator struct {
	calculateFn func(ctx context.Context, req services.PriceRequest) (services.PriceBreakdown, error)
}

func (s *stubPriceCalculator) Calculate(ctx context.Context, req services.PriceRequest) (services.PriceBreakdown, error) {
	return s.calculateFn(ctx, req)
}

type stubPaymentProvider struct {
	methods []services.PaymentOption
	err     error
	store   string
}

func (s *stubPaymentProvider) List(_ context.Context, storeID string) ([]services.PaymentOption, error) {
	s.store = storeID
	return s.methods, s.err
}

func (s *stubPaymentProvider) ForSettings(services.StoreSettings) []services.PaymentOption {
	return s.methods
}

type stubOrderAssembler struct {
	createFn func(ctx context.Context, req services.OrderRequest) (services.OrderResult, error)
	calls    int
}

func (s *stubOrderAssembler) CreateOrder(ctx context.Context, req services.OrderRequest) (services.OrderResult, error) {
	s.calls++
	return s.createFn(ctx, req)
}

type stubStorefront struct {
	configFn func(ctx context.Context, storeID string, productID int64) (services.FormConfig, error)
	verifyFn func(storeID, token string) error
}

func (s *stubStorefront) FormConfig(ctx context.Context, storeID string, productID int64) (services.FormConfig, error) {
	return s.configFn(ctx, storeID, productID)
}

func (s *stubStorefront) IssueFormKey(string) (string, error) {
	return "token", nil
}

func (s *stubStorefront) VerifyFormKey(storeID, token string) error {
	if s.verifyFn == nil {
		return nil
	}
	return s.verifyFn(storeID, token)
}

func newQuickOrderTestRouter(deps QuickOrderHandlersDeps) http.Handler {
	h := NewQuickOrderHandlers(deps)
	return NewRouter(
		WithMiddlewares(StoreScopeMiddleware("default")),
		WithQuoteRoutes(h.Routes),
		WithOrderRoutes(h.OrderRoutes),
	)
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestQuickOrderHandlers_QuoteShipping(t *testing.T) {
	var captured services.QuoteRequest
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{
		Quotes: &stubQuoteEngine{quoteFn: func(_ context.Context, req services.QuoteRequest) ([]services.ShippingOption, error) {
			captured = req
			return []services.ShippingOption{{
				CarrierCode:  "flatrate",
				MethodCode:   "flatrate",
				Code:         "flatrate_flatrate",
				Title:        "Fixed",
				CarrierTitle: "Flat Rate",
				Price:        5000,
			}}, nil
		}},
	})

	rr := postJSON(t, router, "/quote/shipping", `{"product_id":"12","country_id":"EG","region":"Cairo","postcode":"11511"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.StoreID != "default" || captured.ProductID != 12 || captured.CountryID != "EG" || captured.Region != "Cairo" {
		t.Fatalf("unexpected quote request: %+v", captured)
	}

	var body struct {
		Success         bool `json:"success"`
		ShippingMethods []struct {
			Code         string      `json:"code"`
			CarrierTitle string      `json:"carrier_title"`
			Price        json.Number `json:"price"`
		} `json:"shipping_methods"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || len(body.ShippingMethods) != 1 {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if body.ShippingMethods[0].Code != "flatrate_flatrate" || body.ShippingMethods[0].Price.String() != "50.00" {
		t.Fatalf("unexpected method payload: %+v", body.ShippingMethods[0])
	}
}

func TestQuickOrderHandlers_QuoteShippingEmptyListIsArray(t *testing.T) {
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Quotes: &stubQuoteEngine{}})

	rr := postJSON(t, router, "/quote/shipping", `{"product_id":1,"country_id":"EG"}`)
	if !strings.Contains(rr.Body.String(), `"shipping_methods":[]`) {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestQuickOrderHandlers_QuoteShippingErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
	}{
		{name: "disabled", err: services.ErrQuickOrderDisabled, message: "Quick order is not enabled."},
		{name: "missing input", err: services.ErrQuoteInputRequired, message: "Product ID and Country are required."},
		{name: "unexpected", err: errors.New("boom"), message: "Unable to get shipping methods."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newQuickOrderTestRouter(QuickOrderHandlersDeps{
				Quotes: &stubQuoteEngine{quoteFn: func(context.Context, services.QuoteRequest) ([]services.ShippingOption, error) {
					return nil, tc.err
				}},
			})
			rr := postJSON(t, router, "/quote/shipping", `{}`)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected business rejection with 200, got %d", rr.Code)
			}
			body := decodeBody(t, rr)
			if body["success"] != false || body["message"] != tc.message {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestQuickOrderHandlers_CalculateFormatsTotals(t *testing.T) {
	var captured services.PriceRequest
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{
		Prices: &stubPriceCalculator{calculateFn: func(_ context.Context, req services.PriceRequest) (services.PriceBreakdown, error) {
			captured = req
			return services.PriceBreakdown{
				Currency:     "EGP",
				Locale:       "en",
				Subtotal:     50000,
				ShippingCost: 5000,
				Total:        55000,
			}, nil
		}},
	})

	rr := postJSON(t, router, "/quote/calculate", `{"product_id":7,"qty":2,"shipping_method":"flatrate_flatrate","country_id":"EG"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.Quantity != 2 || captured.ProductID != 7 || captured.ShippingMethod != "flatrate_flatrate" {
		t.Fatalf("unexpected price request: %+v", captured)
	}

	var body struct {
		Success     bool `json:"success"`
		Calculation struct {
			Subtotal  json.Number `json:"subtotal"`
			Total     json.Number `json:"total"`
			Currency  string      `json:"currency"`
			Formatted struct {
				Total string `json:"total"`
			} `json:"formatted"`
		} `json:"calculation"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Calculation.Subtotal.String() != "500.00" || body.Calculation.Total.String() != "550.00" {
		t.Fatalf("unexpected calculation: %s", rr.Body.String())
	}
	if body.Calculation.Currency != "EGP" || !strings.Contains(body.Calculation.Formatted.Total, "550") {
		t.Fatalf("unexpected formatted total: %s", rr.Body.String())
	}
}

func TestQuickOrderHandlers_CalculateRejectsMalformedQuantity(t *testing.T) {
	called := false
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{
		Prices: &stubPriceCalculator{calculateFn: func(context.Context, services.PriceRequest) (services.PriceBreakdown, error) {
			called = true
			return services.PriceBreakdown{}, nil
		}},
	})

	rr := postJSON(t, router, "/quote/calculate", `{"product_id":7,"qty":"lots"}`)
	body := decodeBody(t, rr)
	if called {
		t.Fatal("expected calculator not to be called")
	}
	if body["message"] != "Invalid quantity." {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestQuickOrderHandlers_CalculateProductUnavailable(t *testing.T) {
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{
		Prices: &stubPriceCalculator{calculateFn: func(context.Context, services.PriceRequest) (services.PriceBreakdown, error) {
			return services.PriceBreakdown{}, services.ErrProductUnavailable
		}},
	})

	body := decodeBody(t, postJSON(t, router, "/quote/calculate", `{"product_id":7}`))
	if body["success"] != false || body["message"] != "This product is not available." {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestQuickOrderHandlers_QuotePayment(t *testing.T) {
	payments := &stubPaymentProvider{methods: []services.PaymentOption{{Code: "cashondelivery", Title: "Cash On Delivery"}}}
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Payments: payments})

	req := httptest.NewRequest(http.MethodPost, "/quote/payment", strings.NewReader(`{}`))
	req.Header.Set(StoreHeader, "cairo")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if payments.store != "cairo" {
		t.Fatalf("expected store cairo, got %q", payments.store)
	}
	if !strings.Contains(rr.Body.String(), `"payment_methods":[{"code":"cashondelivery","title":"Cash On Delivery"}]`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestQuickOrderHandlers_QuotePaymentDisabledStore(t *testing.T) {
	payments := &stubPaymentProvider{err: services.ErrQuickOrderDisabled}
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Payments: payments})

	rr := postJSON(t, router, "/quote/payment", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false || body["error"] != "quick_order_disabled" || body["message"] != "Quick order is not enabled." {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["payment_methods"]; ok {
		t.Fatalf("expected no payment methods, got %v", body["payment_methods"])
	}
}

func TestQuickOrderHandlers_CreateOrderFromForm(t *testing.T) {
	var captured services.OrderRequest
	orders := &stubOrderAssembler{createFn: func(_ context.Context, req services.OrderRequest) (services.OrderResult, error) {
		captured = req
		return services.OrderResult{
			Order:   domain.CommittedOrder{OrderID: "01HX", IncrementID: "000000042"},
			Message: "Thank you.",
		}, nil
	}}
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Orders: orders})

	form := url.Values{}
	form.Set("form_key", "good")
	form.Set("product_id", "5")
	form.Set("qty", "2")
	form.Set("customer_name", "Mona Adel")
	form.Set("customer_phone", "01012345678")
	form.Add("street[1]", "Floor 3")
	form.Add("street[0]", "12 Tahrir St")
	form.Set("city", "Cairo")
	form.Set("country_id", "EG")
	form.Set("region", "Cairo")
	form.Set("shipping_method", "flatrate_flatrate")
	form.Set("payment_method", "cashondelivery")

	req := httptest.NewRequest(http.MethodPost, "/order/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	body := decodeBody(t, rr)
	if body["success"] != true || body["order_id"] != "01HX" || body["increment_id"] != "000000042" || body["message"] != "Thank you." {
		t.Fatalf("unexpected body: %v", body)
	}
	if strings.Join(captured.Street, "|") != "12 Tahrir St|Floor 3" {
		t.Fatalf("unexpected street: %v", captured.Street)
	}
	if captured.StoreID != "default" || captured.FormKey != "good" {
		t.Fatalf("expected store scope and form key forwarded, got %+v", captured)
	}
	if captured.ProductID != "5" || captured.Quantity != "2" || captured.PaymentMethod != "cashondelivery" {
		t.Fatalf("unexpected order request: %+v", captured)
	}
}

func TestQuickOrderHandlers_CreateOrderSplitsCommaStreet(t *testing.T) {
	var captured services.OrderRequest
	orders := &stubOrderAssembler{createFn: func(_ context.Context, req services.OrderRequest) (services.OrderResult, error) {
		captured = req
		return services.OrderResult{}, nil
	}}
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Orders: orders})

	postJSON(t, router, "/order/create", `{"form_key":"k","street":"12 Tahrir St, Floor 3"}`)
	if len(captured.Street) != 2 {
		t.Fatalf("expected two street lines, got %v", captured.Street)
	}
}

func TestQuickOrderHandlers_CreateOrderRejections(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{name: "invalid form key", err: fmt.Errorf("%w: expired", services.ErrInvalidFormKey), code: "invalid_form_key", message: "Invalid form key."},
		{name: "disabled store", err: services.ErrQuickOrderDisabled, code: "quick_order_disabled", message: "Quick order is not enabled."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured services.OrderRequest
			orders := &stubOrderAssembler{createFn: func(_ context.Context, req services.OrderRequest) (services.OrderResult, error) {
				captured = req
				return services.OrderResult{}, tc.err
			}}
			router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Orders: orders})

			body := decodeBody(t, postJSON(t, router, "/order/create", `{"form_key":"stale"}`))
			if body["success"] != false || body["error"] != tc.code || body["message"] != tc.message {
				t.Fatalf("unexpected body: %v", body)
			}
			if captured.FormKey != "stale" {
				t.Fatalf("expected form key forwarded to the assembler, got %q", captured.FormKey)
			}
		})
	}
}

func TestQuickOrderHandlers_CreateOrderErrorMessages(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
		field   string
	}{
		{name: "validation", err: &services.ValidationError{Field: "customer_phone", Message: "Please enter a valid phone number."}, message: "Please enter a valid phone number.", field: "customer_phone"},
		{name: "shipping", err: services.ErrShippingMethodUnavailable, message: "The selected shipping method is not available."},
		{name: "payment", err: services.ErrPaymentMethodUnavailable, message: "The selected payment method is not available."},
		{name: "user error", err: fmt.Errorf("wrap: %w", domain.NewUserError("Unable to create order: out of stock", errors.New("stock"))), message: "Unable to create order: out of stock"},
		{name: "commit failed", err: fmt.Errorf("%w: timeout", services.ErrOrderCommitFailed), message: "Unable to create order. Please try again later."},
		{name: "unexpected", err: services.ErrQuickOrderUnavailable, message: "An unexpected error occurred. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderAssembler{createFn: func(context.Context, services.OrderRequest) (services.OrderResult, error) {
				return services.OrderResult{}, tc.err
			}}
			router := newQuickOrderTestRouter(QuickOrderHandlersDeps{Orders: orders})

			rr := postJSON(t, router, "/order/create", `{"form_key":"k"}`)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			body := decodeBody(t, rr)
			if body["success"] != false || body["message"] != tc.message {
				t.Fatalf("unexpected body: %v", body)
			}
			if tc.field != "" && body["field"] != tc.field {
				t.Fatalf("expected field %s, got %v", tc.field, body["field"])
			}
		})
	}
}

func TestQuickOrderHandlers_TransportErrors(t *testing.T) {
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{
		Quotes:       &stubQuoteEngine{},
		MaxBodyBytes: 32,
	})

	rr := postJSON(t, router, "/quote/shipping", `{"product_id":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rr.Code)
	}

	rr = postJSON(t, router, "/quote/shipping", `{"postcode":"`+strings.Repeat("1", 64)+`"}`)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/quote/shipping", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "application/xml")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestQuickOrderHandlers_MissingServiceUnavailable(t *testing.T) {
	router := newQuickOrderTestRouter(QuickOrderHandlersDeps{})

	rr := postJSON(t, router, "/order/create", `{}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestOrderRateLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newSimpleRateLimiter(2, time.Minute, func() time.Time { return now })
	handler := orderRateLimit(limiter, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/order/create", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if send("10.0.0.1:1234") != http.StatusOK || send("10.0.0.1:5678") != http.StatusOK {
		t.Fatal("expected first two requests to pass")
	}
	if code := send("10.0.0.1:9999"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", code)
	}
	now = now.Add(2 * time.Minute)
	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", code)
	}
}

func TestOrderRateLimitDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if OrderRateLimitMiddleware(0, time.Minute)(next) == nil {
		t.Fatal("expected passthrough handler")
	}
}
