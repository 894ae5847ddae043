package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/platform/httpx"
	"github.com/easyorder/quickorder/internal/platform/money"
	"github.com/easyorder/quickorder/internal/platform/requestctx"
	"github.com/easyorder/quickorder/internal/services"
)

// QuickOrderHandlersDeps bundles the services behind the quote and order endpoints.
type QuickOrderHandlersDeps struct {
	Quotes       services.ShippingQuoteEngine
	Prices       services.PriceCalculator
	Payments     services.PaymentMethodProvider
	Orders       services.OrderAssembler
	MaxBodyBytes int64
}

// QuickOrderHandlers serves the single product order form.
type QuickOrderHandlers struct {
	quotes       services.ShippingQuoteEngine
	prices       services.PriceCalculator
	payments     services.PaymentMethodProvider
	orders       services.OrderAssembler
	maxBodyBytes int64
}

// NewQuickOrderHandlers constructs the handlers. Missing services answer 503.
func NewQuickOrderHandlers(deps QuickOrderHandlersDeps) *QuickOrderHandlers {
	limit := deps.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	return &QuickOrderHandlers{
		quotes:       deps.Quotes,
		prices:       deps.Prices,
		payments:     deps.Payments,
		orders:       deps.Orders,
		maxBodyBytes: limit,
	}
}

// Routes wires the /quote endpoints.
func (h *QuickOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/shipping", h.quoteShipping)
	r.Post("/calculate", h.calculate)
	r.Post("/payment", h.quotePayment)
}

// OrderRoutes wires the /order endpoints.
func (h *QuickOrderHandlers) OrderRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/create", h.createOrder)
}

type shippingMethodPayload struct {
	CarrierCode  string      `json:"carrier_code"`
	MethodCode   string      `json:"method_code"`
	Code         string      `json:"code"`
	Title        string      `json:"title"`
	CarrierTitle string      `json:"carrier_title"`
	Price        json.Number `json:"price"`
}

type shippingQuoteResponse struct {
	Success         bool                    `json:"success"`
	ShippingMethods []shippingMethodPayload `json:"shipping_methods"`
}

type paymentMethodPayload struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type paymentQuoteResponse struct {
	Success        bool                   `json:"success"`
	PaymentMethods []paymentMethodPayload `json:"payment_methods"`
}

type calculationFormatted struct {
	Subtotal     string `json:"subtotal"`
	ShippingCost string `json:"shipping_cost"`
	Total        string `json:"total"`
}

type calculationPayload struct {
	Subtotal     json.Number          `json:"subtotal"`
	ShippingCost json.Number          `json:"shipping_cost"`
	Total        json.Number          `json:"total"`
	Currency     string               `json:"currency"`
	Formatted    calculationFormatted `json:"formatted"`
}

type calculationResponse struct {
	Success     bool               `json:"success"`
	Calculation calculationPayload `json:"calculation"`
}

type createOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	IncrementID string `json:"increment_id"`
	Message     string `json:"message"`
}

func (h *QuickOrderHandlers) quoteShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		writeServiceUnavailable(w, r, "quote")
		return
	}
	params, err := decodeParams(r, h.maxBodyBytes)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	options, err := h.quotes.Quote(ctx, services.QuoteRequest{
		StoreID:   requestctx.Store(ctx),
		ProductID: params.int64("product_id"),
		CountryID: params.get("country_id"),
		RegionID:  params.get("region_id"),
		Region:    params.get("region"),
		Postcode:  params.get("postcode"),
	})
	if err != nil {
		herr := toHTTPError(ctx, "quote.shipping_failed", err)
		if herr.Code == "unexpected_error" {
			herr = httpx.Reject("shipping_quote_failed", messageShippingFailed)
		}
		httpx.WriteError(ctx, w, herr)
		return
	}

	writeJSONResponse(w, http.StatusOK, shippingQuoteResponse{
		Success:         true,
		ShippingMethods: buildShippingMethods(options),
	})
}

func (h *QuickOrderHandlers) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.prices == nil {
		writeServiceUnavailable(w, r, "quote")
		return
	}
	params, err := decodeParams(r, h.maxBodyBytes)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	qty, ok := parseQuantity(params.get("qty"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.Reject("invalid_quantity", messageInvalidQuantity))
		return
	}

	breakdown, err := h.prices.Calculate(ctx, services.PriceRequest{
		StoreID:        requestctx.Store(ctx),
		ProductID:      params.int64("product_id"),
		Quantity:       qty,
		ShippingMethod: params.get("shipping_method"),
		CountryID:      params.get("country_id"),
		RegionID:       params.get("region_id"),
		Region:         params.get("region"),
		Postcode:       params.get("postcode"),
	})
	if err != nil {
		writeServiceError(ctx, w, "quote.calculate_failed", err)
		return
	}

	writeJSONResponse(w, http.StatusOK, calculationResponse{
		Success:     true,
		Calculation: buildCalculation(breakdown),
	})
}

func (h *QuickOrderHandlers) quotePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(w, r, "payment")
		return
	}
	if _, err := readLimitedBody(r, h.maxBodyBytes); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	methods, err := h.payments.List(ctx, requestctx.Store(ctx))
	if err != nil {
		writeServiceError(ctx, w, "payment.list_failed", err)
		return
	}
	payload := make([]paymentMethodPayload, 0, len(methods))
	for _, method := range methods {
		payload = append(payload, paymentMethodPayload{Code: method.Code, Title: method.Title})
	}
	writeJSONResponse(w, http.StatusOK, paymentQuoteResponse{Success: true, PaymentMethods: payload})
}

func (h *QuickOrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(w, r, "order")
		return
	}
	params, err := decodeParams(r, h.maxBodyBytes)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	result, err := h.orders.CreateOrder(ctx, buildOrderRequest(requestctx.Store(ctx), params))
	if err != nil {
		writeServiceError(ctx, w, "order.create_failed", err)
		return
	}

	writeJSONResponse(w, http.StatusOK, createOrderResponse{
		Success:     true,
		OrderID:     result.Order.OrderID,
		IncrementID: result.Order.IncrementID,
		Message:     result.Message,
	})
}

func buildOrderRequest(storeID string, params requestParams) services.OrderRequest {
	street := params.list("street")
	if len(street) == 1 && strings.Contains(street[0], ",") {
		street = strings.Split(street[0], ",")
	}
	return services.OrderRequest{
		StoreID:        storeID,
		ProductID:      params.get("product_id"),
		Quantity:       params.get("qty"),
		CustomerName:   params.get("customer_name"),
		CustomerPhone:  params.get("customer_phone"),
		CustomerEmail:  params.get("customer_email"),
		Street:         street,
		City:           params.get("city"),
		CountryID:      params.get("country_id"),
		RegionID:       params.get("region_id"),
		Region:         params.get("region"),
		Postcode:       params.get("postcode"),
		ShippingMethod: params.get("shipping_method"),
		PaymentMethod:  params.get("payment_method"),
		FormKey:        params.get("form_key"),
	}
}

// parseQuantity accepts an absent value or any whole number. Sign checks are left to the calculator.
func parseQuantity(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, true
	}
	n := parseWholeNumber(raw)
	if n == 0 && strings.Trim(raw, "0.") != "" {
		return 0, false
	}
	return int(n), true
}

func buildShippingMethods(options []domain.ShippingOption) []shippingMethodPayload {
	out := make([]shippingMethodPayload, 0, len(options))
	for _, opt := range options {
		out = append(out, shippingMethodPayload{
			CarrierCode:  opt.CarrierCode,
			MethodCode:   opt.MethodCode,
			Code:         opt.Code,
			Title:        opt.Title,
			CarrierTitle: opt.CarrierTitle,
			Price:        money.Number(opt.Price),
		})
	}
	return out
}

func buildCalculation(b domain.PriceBreakdown) calculationPayload {
	f := money.MustFormatter(b.Locale, b.Currency)
	return calculationPayload{
		Subtotal:     money.Number(b.Subtotal),
		ShippingCost: money.Number(b.ShippingCost),
		Total:        money.Number(b.Total),
		Currency:     f.Currency(),
		Formatted: calculationFormatted{
			Subtotal:     f.Format(b.Subtotal),
			ShippingCost: f.Format(b.ShippingCost),
			Total:        f.Format(b.Total),
		},
	}
}

func writeServiceUnavailable(w http.ResponseWriter, r *http.Request, name string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}
