package shipping

import (
	"context"
	"strings"

	"github.com/easyorder/quickorder/internal/domain"
)

const (
	defaultFlatRateMethod  = "flatrate"
	defaultFreeMethod      = "freeshipping"
	defaultTableRateMethod = "bestway"
)

func flatRate(_ context.Context, cfg domain.CarrierSettings, pc domain.PricingContext) ([]domain.Rate, error) {
	methods := cfg.Methods
	if len(methods) == 0 {
		methods = []domain.CarrierMethod{{Code: defaultFlatRateMethod, Name: "Fixed"}}
	}
	qty := int64(pc.Line().Quantity)
	if qty <= 0 {
		qty = 1
	}
	rates := make([]domain.Rate, 0, len(methods))
	for _, m := range methods {
		cost := m.Price
		if m.PerItem {
			cost *= qty
		}
		rates = append(rates, domain.Rate{
			MethodCode:  methodCode(m, defaultFlatRateMethod),
			MethodTitle: methodName(m, "Fixed"),
			Price:       cost + cfg.HandlingFee,
			Cost:        cost,
		})
	}
	return rates, nil
}

func freeShipping(_ context.Context, cfg domain.CarrierSettings, pc domain.PricingContext) ([]domain.Rate, error) {
	if cfg.FreeShippingSubtotal > 0 && pc.Subtotal() < cfg.FreeShippingSubtotal {
		return nil, nil
	}
	m := domain.CarrierMethod{Code: defaultFreeMethod, Name: "Free"}
	if len(cfg.Methods) > 0 {
		m = cfg.Methods[0]
	}
	return []domain.Rate{{
		MethodCode:  methodCode(m, defaultFreeMethod),
		MethodTitle: methodName(m, "Free"),
	}}, nil
}

func tableRate(_ context.Context, cfg domain.CarrierSettings, pc domain.PricingContext) ([]domain.Rate, error) {
	row, ok := bestTableRow(cfg.TableRates, pc.Destination(), pc.Subtotal())
	if !ok {
		return nil, nil
	}
	m := domain.CarrierMethod{Code: defaultTableRateMethod, Name: "Table Rate"}
	if len(cfg.Methods) > 0 {
		m = cfg.Methods[0]
	}
	return []domain.Rate{{
		MethodCode:  methodCode(m, defaultTableRateMethod),
		MethodTitle: methodName(m, "Table Rate"),
		Price:       row.Price + cfg.HandlingFee,
		Cost:        row.Price,
	}}, nil
}

// bestTableRow picks the matching row with the most specific destination, then the highest
// subtotal condition. Ties keep the earlier row.
func bestTableRow(rows []domain.TableRateRow, dest domain.Address, subtotal int64) (domain.TableRateRow, bool) {
	var (
		best      domain.TableRateRow
		bestScore = -1
	)
	for _, row := range rows {
		if row.MinSubtotal > subtotal {
			continue
		}
		score, ok := rowScore(row, dest)
		if !ok {
			continue
		}
		if score > bestScore || (score == bestScore && row.MinSubtotal > best.MinSubtotal) {
			best, bestScore = row, score
		}
	}
	return best, bestScore >= 0
}

func rowScore(row domain.TableRateRow, dest domain.Address) (int, bool) {
	score := 0
	if !wildcard(row.CountryID) {
		if !strings.EqualFold(row.CountryID, dest.CountryID) {
			return 0, false
		}
		score += 4
	}
	if !wildcard(row.Region) {
		if row.Region != dest.Region && row.Region != dest.RegionID {
			return 0, false
		}
		score += 2
	}
	if !wildcard(row.Postcode) {
		if !postcodeMatches(row.Postcode, dest.Postcode) {
			return 0, false
		}
		score++
	}
	return score, true
}

func postcodeMatches(pattern, postcode string) bool {
	postcode = strings.TrimSpace(postcode)
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return postcode != "" && strings.HasPrefix(postcode, prefix)
	}
	return pattern == postcode
}

func wildcard(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "*"
}

func methodCode(m domain.CarrierMethod, fallback string) string {
	if code := strings.TrimSpace(m.Code); code != "" {
		return code
	}
	return fallback
}

func methodName(m domain.CarrierMethod, fallback string) string {
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	return fallback
}
