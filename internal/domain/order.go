package domain

import "time"

// QuoteStatus tracks whether a persisted purchase context was turned into an order.
type QuoteStatus string

const (
	// QuoteStatusActive marks a saved quote that has not been placed yet.
	QuoteStatusActive QuoteStatus = "active"
	// QuoteStatusConverted marks a quote that produced an order.
	QuoteStatusConverted QuoteStatus = "converted"
)

// GuestCustomer holds the purchaser identity of a guest order.
type GuestCustomer struct {
	Name  string
	Email string
	Phone string
}

// OrderTotals is the totals snapshot copied onto the committed order.
type OrderTotals struct {
	Currency   string
	Subtotal   int64
	Shipping   int64
	GrandTotal int64
}

// Quote is the purchase context persisted right before the order is placed.
type Quote struct {
	ID              string
	StoreID         string
	Line            PricingLine
	Customer        GuestCustomer
	BillingAddress  Address
	ShippingAddress Address
	ShippingMethod  ShippingOption
	PaymentMethod   PaymentOption
	Totals          OrderTotals
	Status          QuoteStatus
	ReservedOrderID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CommittedOrder is the durable result of a successful quick order.
type CommittedOrder struct {
	OrderID     string
	IncrementID string
	StoreID     string
	QuoteID     string
	Customer    GuestCustomer
	Totals      OrderTotals
	PlacedAt    time.Time
}

// OrderPlacedEvent is published after commit so the confirmation email can be sent.
type OrderPlacedEvent struct {
	OrderID        string
	IncrementID    string
	StoreID        string
	Customer       GuestCustomer
	ProductID      int64
	ProductName    string
	Quantity       int
	ShippingMethod string
	PaymentMethod  string
	Totals         OrderTotals
	PlacedAt       time.Time
}
