package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/easyorder/quickorder/internal/platform/httpx"
	"github.com/easyorder/quickorder/internal/platform/money"
	"github.com/easyorder/quickorder/internal/platform/requestctx"
	"github.com/easyorder/quickorder/internal/services"
)

// StorefrontHandlers serves the form bootstrap endpoints.
type StorefrontHandlers struct {
	storefront    services.StorefrontService
	regions       services.RegionResolver
	defaultLocale string
}

// StorefrontOption customises StorefrontHandlers.
type StorefrontOption func(*StorefrontHandlers)

// WithRegionResolver enables GET /regions.
func WithRegionResolver(resolver services.RegionResolver) StorefrontOption {
	return func(h *StorefrontHandlers) {
		h.regions = resolver
	}
}

// WithDefaultLocale sets the locale used for region names when the request carries none.
func WithDefaultLocale(locale string) StorefrontOption {
	return func(h *StorefrontHandlers) {
		h.defaultLocale = strings.TrimSpace(locale)
	}
}

// NewStorefrontHandlers constructs the storefront handlers.
func NewStorefrontHandlers(storefront services.StorefrontService, opts ...StorefrontOption) *StorefrontHandlers {
	h := &StorefrontHandlers{storefront: storefront}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires GET /config and GET /regions.
func (h *StorefrontHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/config", h.getConfig)
	r.Get("/regions", h.listRegions)
}

type formProductPayload struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Price          json.Number `json:"price"`
	FormattedPrice string      `json:"formatted_price"`
}

type formConfigResponse struct {
	Success          bool                `json:"success"`
	Enabled          bool                `json:"enabled"`
	FormTitle        string              `json:"form_title"`
	DefaultCountry   string              `json:"default_country"`
	Currency         string              `json:"currency"`
	Product          *formProductPayload `json:"product,omitempty"`
	FormKey          string              `json:"form_key,omitempty"`
	FormKeyExpiresAt string              `json:"form_key_expires_at,omitempty"`
}

type regionPayload struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type regionsResponse struct {
	Success bool            `json:"success"`
	Regions []regionPayload `json:"regions"`
}

func (h *StorefrontHandlers) getConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.storefront == nil {
		writeServiceUnavailable(w, r, "storefront")
		return
	}

	productID := parseWholeNumber(r.URL.Query().Get("product_id"))
	cfg, err := h.storefront.FormConfig(ctx, requestctx.Store(ctx), productID)
	if err != nil {
		writeServiceError(ctx, w, "storefront.config_failed", err)
		return
	}

	resp := formConfigResponse{
		Success:        true,
		Enabled:        cfg.Enabled,
		FormTitle:      cfg.FormTitle,
		DefaultCountry: cfg.DefaultCountry,
		Currency:       cfg.Currency,
		FormKey:        cfg.FormKey,
	}
	if !cfg.FormKeyExpires.IsZero() {
		resp.FormKeyExpiresAt = cfg.FormKeyExpires.UTC().Format(time.RFC3339)
	}
	if cfg.Product != nil {
		resp.Product = &formProductPayload{
			ID:             cfg.Product.ID,
			Name:           cfg.Product.Name,
			Price:          money.Number(cfg.Product.Price),
			FormattedPrice: cfg.Product.FormattedPrice,
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *StorefrontHandlers) listRegions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.regions == nil {
		writeServiceUnavailable(w, r, "region")
		return
	}

	query := r.URL.Query()
	countryID := strings.TrimSpace(query.Get("country_id"))
	if countryID == "" {
		httpx.WriteError(ctx, w, httpx.Reject("missing_country", "Country is required."))
		return
	}
	locale := strings.TrimSpace(query.Get("locale"))
	if locale == "" {
		locale = h.defaultLocale
	}

	regions, err := h.regions.List(ctx, countryID)
	if err != nil {
		requestctx.Logger(ctx).Warn("storefront.regions_failed", zap.String("country", countryID), zap.Error(err))
		regions = nil
	}

	payload := make([]regionPayload, 0, len(regions))
	for _, region := range regions {
		payload = append(payload, regionPayload{
			ID:   region.ID,
			Code: region.Code,
			Name: region.LocalizedName(locale),
		})
	}
	writeJSONResponse(w, http.StatusOK, regionsResponse{Success: true, Regions: payload})
}
