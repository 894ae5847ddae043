// Package jobs publishes order lifecycle events for the asynchronous workers that send the
// confirmation email. Pub/Sub and Kafka transports share one JSON envelope.
package jobs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easyorder/quickorder/internal/domain"
)

// EventTypeOrderPlaced names the event emitted once an order is committed.
const EventTypeOrderPlaced = "quickorder.order.placed"

// OrderPlacedMessage is the wire form of domain.OrderPlacedEvent.
type OrderPlacedMessage struct {
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	OrderID        string    `json:"orderId"`
	IncrementID    string    `json:"incrementId"`
	StoreID        string    `json:"storeId"`
	CustomerName   string    `json:"customerName"`
	CustomerEmail  string    `json:"customerEmail,omitempty"`
	CustomerPhone  string    `json:"customerPhone"`
	ProductID      int64     `json:"productId"`
	ProductName    string    `json:"productName"`
	Quantity       int       `json:"quantity"`
	ShippingMethod string    `json:"shippingMethod"`
	PaymentMethod  string    `json:"paymentMethod"`
	Currency       string    `json:"currency"`
	Subtotal       int64     `json:"subtotal"`
	ShippingCost   int64     `json:"shippingCost"`
	GrandTotal     int64     `json:"grandTotal"`
	PlacedAt       time.Time `json:"placedAt"`
}

func newOrderPlacedMessage(newID func() string, event domain.OrderPlacedEvent) OrderPlacedMessage {
	return OrderPlacedMessage{
		EventID:        newID(),
		EventType:      EventTypeOrderPlaced,
		OrderID:        event.OrderID,
		IncrementID:    event.IncrementID,
		StoreID:        event.StoreID,
		CustomerName:   event.Customer.Name,
		CustomerEmail:  event.Customer.Email,
		CustomerPhone:  event.Customer.Phone,
		ProductID:      event.ProductID,
		ProductName:    event.ProductName,
		Quantity:       event.Quantity,
		ShippingMethod: event.ShippingMethod,
		PaymentMethod:  event.PaymentMethod,
		Currency:       event.Totals.Currency,
		Subtotal:       event.Totals.Subtotal,
		ShippingCost:   event.Totals.Shipping,
		GrandTotal:     event.Totals.GrandTotal,
		PlacedAt:       event.PlacedAt.UTC(),
	}
}

func encodeMessage(msg OrderPlacedMessage) ([]byte, map[string]string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, err
	}
	attrs := make(map[string]string, 4)
	setAttr(attrs, "eventId", msg.EventID)
	setAttr(attrs, "eventType", msg.EventType)
	setAttr(attrs, "storeId", msg.StoreID)
	setAttr(attrs, "orderId", msg.OrderID)
	return data, attrs, nil
}

func defaultEventID() string {
	return uuid.NewString()
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
