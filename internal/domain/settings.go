package domain

import (
	"sort"
	"strings"
	"time"
)

// CarrierType selects the rate calculation used by a configured carrier.
type CarrierType string

const (
	// CarrierTypeFlatRate charges a fixed amount per order or per item.
	CarrierTypeFlatRate CarrierType = "flatrate"
	// CarrierTypeFreeShipping offers a zero-cost method above a subtotal threshold.
	CarrierTypeFreeShipping CarrierType = "freeshipping"
	// CarrierTypeTableRate looks the price up from destination based rate rows.
	CarrierTypeTableRate CarrierType = "tablerate"
)

// StoreSettings is the store scoped configuration read on every request.
type StoreSettings struct {
	StoreID               string
	Enabled               bool
	FormTitle             string
	SuccessMessage        string
	DefaultCountry        string
	CallingCode           string
	Currency              string
	Locale                string
	SendEmailNotification bool
	AutoGenerateEmail     bool
	GuestEmailDomain      string
	PhoneValidation       bool
	RequireEmail          bool
	RequirePostcode       bool
	ForceFallbackShipping bool
	FallbackShippingTitle string
	DefaultShippingPrice  int64
	FreeShippingThreshold int64
	IncrementPrefix       string
	Carriers              []CarrierSettings
	PaymentMethods        []PaymentMethodSettings
	UpdatedAt             time.Time
}

// CarrierSettings configures one shipping carrier for the store.
type CarrierSettings struct {
	Code                 string
	Type                 CarrierType
	Title                string
	Active               bool
	SortOrder            int
	SpecificCountries    []string
	Methods              []CarrierMethod
	HandlingFee          int64
	FreeShippingSubtotal int64
	TableRates           []TableRateRow
}

// CarrierMethod is a single method offered by a carrier.
type CarrierMethod struct {
	Code    string
	Name    string
	Price   int64
	PerItem bool
}

// TableRateRow prices a destination once the subtotal reaches MinSubtotal.
// Empty or "*" fields match any value.
type TableRateRow struct {
	CountryID   string
	Region      string
	Postcode    string
	MinSubtotal int64
	Price       int64
}

// PaymentMethodSettings configures one payment method for the store.
type PaymentMethodSettings struct {
	Code      string
	Title     string
	Active    bool
	SortOrder int
}

// AllowsCountry reports whether the carrier ships to the country.
func (c CarrierSettings) AllowsCountry(countryID string) bool {
	if len(c.SpecificCountries) == 0 {
		return true
	}
	for _, allowed := range c.SpecificCountries {
		if strings.EqualFold(strings.TrimSpace(allowed), countryID) {
			return true
		}
	}
	return false
}

// ActiveCarriers returns the enabled carriers ordered by SortOrder, keeping declaration order on ties.
// This order is the presentation order of every shipping quote.
func (s StoreSettings) ActiveCarriers() []CarrierSettings {
	active := make([]CarrierSettings, 0, len(s.Carriers))
	for _, carrier := range s.Carriers {
		if carrier.Active && strings.TrimSpace(carrier.Code) != "" {
			active = append(active, carrier)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})
	return active
}

// ActivePaymentMethods returns the enabled payment methods ordered like ActiveCarriers.
func (s StoreSettings) ActivePaymentMethods() []PaymentMethodSettings {
	active := make([]PaymentMethodSettings, 0, len(s.PaymentMethods))
	for _, method := range s.PaymentMethods {
		if method.Active && strings.TrimSpace(method.Code) != "" {
			active = append(active, method)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})
	return active
}
