// Package shipping is the in-process rate engine. It prices a pricing context against the
// carriers configured for a store and returns the results grouped per carrier.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/easyorder/quickorder/internal/domain"
)

// ErrUnsupportedCarrier is reported for carriers whose type has no registered implementation.
var ErrUnsupportedCarrier = errors.New("shipping: unsupported carrier type")

// Carrier computes the rates one configured carrier offers for a pricing context.
// Returning no rates and no error means the carrier does not apply.
type Carrier interface {
	Rates(ctx context.Context, cfg domain.CarrierSettings, pc domain.PricingContext) ([]domain.Rate, error)
}

// CarrierFunc adapts a function to the Carrier interface.
type CarrierFunc func(ctx context.Context, cfg domain.CarrierSettings, pc domain.PricingContext) ([]domain.Rate, error)

// Rates implements Carrier.
func (f CarrierFunc) Rates(ctx context.Context, cfg domain.CarrierSettings, pc domain.PricingContext) ([]domain.Rate, error) {
	return f(ctx, cfg, pc)
}

// Engine dispatches carrier configurations to their implementation by type.
type Engine struct {
	carriers map[domain.CarrierType]Carrier
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithCarrier registers or replaces the implementation of a carrier type.
func WithCarrier(kind domain.CarrierType, carrier Carrier) EngineOption {
	return func(e *Engine) {
		kind = domain.CarrierType(strings.ToLower(strings.TrimSpace(string(kind))))
		if kind == "" || carrier == nil {
			return
		}
		e.carriers[kind] = carrier
	}
}

// NewEngine returns an engine with the flat rate, free shipping and table rate carriers registered.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		carriers: map[domain.CarrierType]Carrier{
			domain.CarrierTypeFlatRate:     CarrierFunc(flatRate),
			domain.CarrierTypeFreeShipping: CarrierFunc(freeShipping),
			domain.CarrierTypeTableRate:    CarrierFunc(tableRate),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Collect prices the context against each carrier in the given order. Carriers that do not ship to
// the destination country are left out. A failing carrier yields a group carrying ErrorMessage
// instead of failing the whole collection; only context cancellation aborts it.
func (e *Engine) Collect(ctx context.Context, pc domain.PricingContext, carriers []domain.CarrierSettings) ([]domain.CarrierRates, error) {
	if e == nil {
		return nil, errors.New("shipping: engine is nil")
	}
	dest := pc.Destination()
	groups := make([]domain.CarrierRates, 0, len(carriers))
	for _, cfg := range carriers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("shipping: collect rates: %w", err)
		}
		if !cfg.AllowsCountry(dest.CountryID) {
			continue
		}
		group := domain.CarrierRates{CarrierCode: cfg.Code, CarrierTitle: carrierTitle(cfg)}
		impl, ok := e.carriers[domain.CarrierType(strings.ToLower(string(cfg.Type)))]
		if !ok {
			group.ErrorMessage = fmt.Sprintf("%s: %s", ErrUnsupportedCarrier, cfg.Type)
			groups = append(groups, group)
			continue
		}
		rates, err := impl.Rates(ctx, cfg, pc)
		if err != nil {
			group.ErrorMessage = err.Error()
			groups = append(groups, group)
			continue
		}
		if len(rates) == 0 {
			continue
		}
		group.Rates = rates
		groups = append(groups, group)
	}
	return groups, nil
}

func carrierTitle(cfg domain.CarrierSettings) string {
	if title := strings.TrimSpace(cfg.Title); title != "" {
		return title
	}
	return cfg.Code
}
