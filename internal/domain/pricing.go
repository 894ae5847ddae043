package domain

import "math"

// MaxLineQuantity caps the quantity of the single order line.
const MaxLineQuantity = 10000

// PricingLine is the single product line of a pricing context.
type PricingLine struct {
	ProductID int64
	SKU       string
	Name      string
	UnitPrice int64
	Quantity  int
	Weight    float64
}

// RowTotal returns unit price multiplied by quantity.
func (l PricingLine) RowTotal() int64 {
	if l.Quantity <= 0 {
		return 0
	}
	return l.UnitPrice * int64(l.Quantity)
}

// CheckedRowTotal is RowTotal that reports false instead of wrapping, and for quantities above
// MaxLineQuantity.
func (l PricingLine) CheckedRowTotal() (int64, bool) {
	if l.Quantity > MaxLineQuantity || l.UnitPrice < 0 {
		return 0, false
	}
	if l.Quantity <= 0 {
		return 0, true
	}
	if l.UnitPrice > math.MaxInt64/int64(l.Quantity) {
		return 0, false
	}
	return l.UnitPrice * int64(l.Quantity), true
}

// CheckedSum adds non-negative amounts and reports false on overflow.
func CheckedSum(amounts ...int64) (int64, bool) {
	var total int64
	for _, amount := range amounts {
		if amount < 0 || total > math.MaxInt64-amount {
			return 0, false
		}
		total += amount
	}
	return total, true
}

// Address is a guest destination; billing and shipping always share one value.
type Address struct {
	Name      string
	Street    []string
	City      string
	CountryID string
	RegionID  string
	Region    string
	Postcode  string
	Telephone string
	Email     string
}

func (a Address) clone() Address {
	if a.Street != nil {
		a.Street = append([]string(nil), a.Street...)
	}
	return a
}

// PricingContext is a disposable guest cart used only to ask the rate engine for prices.
// Values are immutable: every With* method returns a fresh copy.
type PricingContext struct {
	storeID     string
	currency    string
	line        PricingLine
	destination Address
}

// NewPricingContext starts a pricing context for one product line.
func NewPricingContext(storeID, currency string, line PricingLine) PricingContext {
	return PricingContext{storeID: storeID, currency: currency, line: line}
}

// WithDestination returns a copy of the context shipping to the address.
func (c PricingContext) WithDestination(addr Address) PricingContext {
	c.destination = addr.clone()
	return c
}

// WithQuantity returns a copy of the context with the line quantity replaced.
func (c PricingContext) WithQuantity(qty int) PricingContext {
	c.line.Quantity = qty
	return c
}

// StoreID returns the store scope of the context.
func (c PricingContext) StoreID() string { return c.storeID }

// Currency returns the store currency.
func (c PricingContext) Currency() string { return c.currency }

// Line returns the product line.
func (c PricingContext) Line() PricingLine { return c.line }

// Destination returns a copy of the destination address.
func (c PricingContext) Destination() Address { return c.destination.clone() }

// Subtotal returns the line row total.
func (c PricingContext) Subtotal() int64 { return c.line.RowTotal() }

// Rate is a single priced method returned by a carrier.
type Rate struct {
	MethodCode  string
	MethodTitle string
	Price       int64
	Cost        int64
}

// CarrierRates groups the rates one carrier produced for a pricing context.
type CarrierRates struct {
	CarrierCode  string
	CarrierTitle string
	Rates        []Rate
	ErrorMessage string
}

// ShippingOption is a flattened carrier/method pair offered to the shopper.
type ShippingOption struct {
	CarrierCode  string
	MethodCode   string
	Code         string
	Title        string
	CarrierTitle string
	Price        int64
	Cost         int64
}

// PaymentOption is an enabled payment method.
type PaymentOption struct {
	Code  string
	Title string
}

// PriceBreakdown is the live total shown while the shopper edits the form.
type PriceBreakdown struct {
	Currency       string
	Locale         string
	Subtotal       int64
	ShippingCost   int64
	Total          int64
	ShippingMethod string
	Matched        bool
}
