package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/easyorder/quickorder/internal/domain"
)

func pricingContext(qty int, unitPrice int64, dest domain.Address) domain.PricingContext {
	return domain.NewPricingContext("default", "EGP", domain.PricingLine{
		ProductID: 5,
		SKU:       "SKU-5",
		UnitPrice: unitPrice,
		Quantity:  qty,
	}).WithDestination(dest)
}

func TestEngineCollectKeepsCarrierOrder(t *testing.T) {
	engine := NewEngine()
	pc := pricingContext(2, 10000, domain.Address{CountryID: "EG", Region: "Cairo"})

	groups, err := engine.Collect(context.Background(), pc, []domain.CarrierSettings{
		{Code: "tablerate", Type: domain.CarrierTypeTableRate, Title: "Best Way", TableRates: []domain.TableRateRow{
			{CountryID: "EG", Price: 6000},
			{CountryID: "EG", Region: "Cairo", Price: 4000},
		}},
		{Code: "flatrate", Type: domain.CarrierTypeFlatRate, Title: "Flat Rate", HandlingFee: 500, Methods: []domain.CarrierMethod{
			{Code: "flatrate", Name: "Fixed", Price: 2500, PerItem: true},
		}},
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	require.Equal(t, "tablerate", groups[0].CarrierCode)
	require.Equal(t, int64(4000), groups[0].Rates[0].Price)
	require.Equal(t, "bestway", groups[0].Rates[0].MethodCode)

	require.Equal(t, "flatrate", groups[1].CarrierCode)
	require.Equal(t, int64(5500), groups[1].Rates[0].Price)
	require.Equal(t, int64(5000), groups[1].Rates[0].Cost)
}

func TestEngineCollectSkipsCountriesAndThresholds(t *testing.T) {
	engine := NewEngine()
	pc := pricingContext(1, 10000, domain.Address{CountryID: "EG"})

	groups, err := engine.Collect(context.Background(), pc, []domain.CarrierSettings{
		{Code: "intl", Type: domain.CarrierTypeFlatRate, SpecificCountries: []string{"SA", "AE"}},
		{Code: "freeshipping", Type: domain.CarrierTypeFreeShipping, FreeShippingSubtotal: 50000},
		{Code: "flatrate", Type: domain.CarrierTypeFlatRate, Methods: []domain.CarrierMethod{{Price: 3000}}},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "flatrate", groups[0].CarrierCode)
	require.Equal(t, "flatrate", groups[0].CarrierTitle)
	require.Equal(t, "flatrate", groups[0].Rates[0].MethodCode)
}

func TestEngineFreeShippingAboveThreshold(t *testing.T) {
	engine := NewEngine()
	pc := pricingContext(5, 10000, domain.Address{CountryID: "EG"})

	groups, err := engine.Collect(context.Background(), pc, []domain.CarrierSettings{
		{Code: "freeshipping", Type: domain.CarrierTypeFreeShipping, Title: "Free Shipping", FreeShippingSubtotal: 50000},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, int64(0), groups[0].Rates[0].Price)
	require.Equal(t, "freeshipping", groups[0].Rates[0].MethodCode)
}

func TestEngineReportsCarrierErrors(t *testing.T) {
	engine := NewEngine(WithCarrier("remote", CarrierFunc(func(context.Context, domain.CarrierSettings, domain.PricingContext) ([]domain.Rate, error) {
		return nil, errors.New("remote carrier unreachable")
	})))
	pc := pricingContext(1, 1000, domain.Address{CountryID: "EG"})

	groups, err := engine.Collect(context.Background(), pc, []domain.CarrierSettings{
		{Code: "aramex", Type: "remote"},
		{Code: "pigeon", Type: "pigeon"},
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "remote carrier unreachable", groups[0].ErrorMessage)
	require.ErrorContains(t, errors.New(groups[1].ErrorMessage), ErrUnsupportedCarrier.Error())
}

func TestEngineCollectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Collect(ctx, pricingContext(1, 1000, domain.Address{CountryID: "EG"}), []domain.CarrierSettings{
		{Code: "flatrate", Type: domain.CarrierTypeFlatRate},
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBestTableRow(t *testing.T) {
	rows := []domain.TableRateRow{
		{CountryID: "*", Price: 9000},
		{CountryID: "EG", Postcode: "11*", Price: 3500},
		{CountryID: "EG", MinSubtotal: 20000, Price: 2000},
		{CountryID: "EG", Price: 5000},
	}

	row, ok := bestTableRow(rows, domain.Address{CountryID: "EG", Postcode: "11511"}, 1000)
	require.True(t, ok)
	require.Equal(t, int64(3500), row.Price)

	row, ok = bestTableRow(rows, domain.Address{CountryID: "EG"}, 25000)
	require.True(t, ok)
	require.Equal(t, int64(2000), row.Price)

	row, ok = bestTableRow(rows, domain.Address{CountryID: "SA"}, 1000)
	require.True(t, ok)
	require.Equal(t, int64(9000), row.Price)

	_, ok = bestTableRow(nil, domain.Address{CountryID: "EG"}, 1000)
	require.False(t, ok)
}
