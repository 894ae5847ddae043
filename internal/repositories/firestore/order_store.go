package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	domain "github.com/easyorder/quickorder/internal/domain"
	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
	"github.com/easyorder/quickorder/internal/repositories"
)

const (
	quotesCollection    = "quotes"
	ordersCollection    = "orders"
	sequencesCollection = "orderSequences"

	orderIDPrefix      = "ord_"
	orderStatusPending = "pending"
	incrementIDDigits  = 9
)

// ErrQuoteAlreadyPlaced is wrapped in the user error returned when a converted quote is placed again.
var ErrQuoteAlreadyPlaced = errors.New("order store: quote already placed")

type addressDocument struct {
	Name      string   `firestore:"name"`
	Street    []string `firestore:"street"`
	City      string   `firestore:"city"`
	CountryID string   `firestore:"countryId"`
	RegionID  string   `firestore:"regionId"`
	Region    string   `firestore:"region"`
	Postcode  string   `firestore:"postcode"`
	Telephone string   `firestore:"telephone"`
	Email     string   `firestore:"email"`
}

type lineDocument struct {
	ProductID int64   `firestore:"productId"`
	SKU       string  `firestore:"sku"`
	Name      string  `firestore:"name"`
	UnitPrice int64   `firestore:"unitPrice"`
	Quantity  int     `firestore:"quantity"`
	Weight    float64 `firestore:"weight"`
}

type customerDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone"`
}

type shippingDocument struct {
	Code         string `firestore:"code"`
	CarrierCode  string `firestore:"carrierCode"`
	MethodCode   string `firestore:"methodCode"`
	Title        string `firestore:"title"`
	CarrierTitle string `firestore:"carrierTitle"`
	Price        int64  `firestore:"price"`
	Cost         int64  `firestore:"cost"`
}

type paymentDocument struct {
	Code  string `firestore:"code"`
	Title string `firestore:"title"`
}

type totalsDocument struct {
	Currency   string `firestore:"currency"`
	Subtotal   int64  `firestore:"subtotal"`
	Shipping   int64  `firestore:"shipping"`
	GrandTotal int64  `firestore:"grandTotal"`
}

type quoteDocument struct {
	StoreID         string           `firestore:"storeId"`
	Line            lineDocument     `firestore:"line"`
	Customer        customerDocument `firestore:"customer"`
	BillingAddress  addressDocument  `firestore:"billingAddress"`
	ShippingAddress addressDocument  `firestore:"shippingAddress"`
	Shipping        shippingDocument `firestore:"shipping"`
	Payment         paymentDocument  `firestore:"payment"`
	Totals          totalsDocument   `firestore:"totals"`
	Status          string           `firestore:"status"`
	ReservedOrderID string           `firestore:"reservedOrderId,omitempty"`
	CreatedAt       time.Time        `firestore:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt"`
}

type orderDocument struct {
	IncrementID     string           `firestore:"incrementId"`
	StoreID         string           `firestore:"storeId"`
	QuoteID         string           `firestore:"quoteId"`
	Status          string           `firestore:"status"`
	Line            lineDocument     `firestore:"line"`
	Customer        customerDocument `firestore:"customer"`
	CustomerIsGuest bool             `firestore:"customerIsGuest"`
	BillingAddress  addressDocument  `firestore:"billingAddress"`
	ShippingAddress addressDocument  `firestore:"shippingAddress"`
	Shipping        shippingDocument `firestore:"shipping"`
	Payment         paymentDocument  `firestore:"payment"`
	Totals          totalsDocument   `firestore:"totals"`
	PlacedAt        time.Time        `firestore:"placedAt"`
}

type sequenceDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// OrderStoreOption customises the order store.
type OrderStoreOption func(*OrderStore)

// WithOrderIDGenerator overrides the generator of order document ids.
func WithOrderIDGenerator(gen func() string) OrderStoreOption {
	return func(s *OrderStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithOrderStoreClock overrides the clock used for timestamps.
func WithOrderStoreClock(clock func() time.Time) OrderStoreOption {
	return func(s *OrderStore) {
		if clock != nil {
			s.now = func() time.Time { return clock().UTC() }
		}
	}
}

// OrderStore implements repositories.OrderStore. Quotes and orders live in top level collections
// carrying their store id, and increment ids come from one sequence document per store.
type OrderStore struct {
	provider  *pfirestore.Provider
	settings  repositories.StoreSettingsReader
	quotes    *pfirestore.Collection[quoteDocument]
	orders    *pfirestore.Collection[orderDocument]
	sequences *pfirestore.Collection[sequenceDocument]
	newID     func() string
	now       func() time.Time
}

// NewOrderStore constructs the Firestore order store. The settings reader supplies the
// increment id prefix of each store.
func NewOrderStore(provider *pfirestore.Provider, settings repositories.StoreSettingsReader, opts ...OrderStoreOption) (*OrderStore, error) {
	if provider == nil {
		return nil, errors.New("order store requires firestore provider")
	}
	if settings == nil {
		return nil, errors.New("order store requires store settings reader")
	}
	store := &OrderStore{
		provider:  provider,
		settings:  settings,
		quotes:    pfirestore.NewCollection[quoteDocument](provider, quotesCollection, nil, nil),
		orders:    pfirestore.NewCollection[orderDocument](provider, ordersCollection, nil, nil),
		sequences: pfirestore.NewCollection[sequenceDocument](provider, sequencesCollection, nil, nil),
		newID:     func() string { return orderIDPrefix + ulid.Make().String() },
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// SaveQuote writes the purchase context as an active quote.
func (s *OrderStore) SaveQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error) {
	if strings.TrimSpace(quote.ID) == "" {
		return domain.Quote{}, errors.New("order store: quote id is required")
	}
	now := s.now()
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now
	if quote.Status == "" {
		quote.Status = domain.QuoteStatusActive
	}
	if err := s.quotes.Set(ctx, quote.ID, encodeQuote(quote)); err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

// PlaceOrder converts the quote into an order in one transaction: the quote is read and checked,
// the store sequence advances, the order is written and the quote is marked converted.
func (s *OrderStore) PlaceOrder(ctx context.Context, storeID, quoteID string) (domain.CommittedOrder, error) {
	storeID = strings.TrimSpace(storeID)
	quoteID = strings.TrimSpace(quoteID)
	if storeID == "" || quoteID == "" {
		return domain.CommittedOrder{}, errors.New("order store: store id and quote id are required")
	}

	settings, err := s.settings.Get(ctx, storeID)
	if err != nil {
		return domain.CommittedOrder{}, fmt.Errorf("order store: read increment prefix: %w", err)
	}
	prefix := strings.TrimSpace(settings.IncrementPrefix)

	// The order id is chosen once so every transaction attempt writes the same document.
	orderID := s.newID()
	var committed domain.CommittedOrder

	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		quoteDoc, err := s.quotes.GetTx(ctx, tx, quoteID)
		if err != nil {
			return err
		}
		quote := quoteDoc.Data
		if quote.StoreID != storeID {
			return pfirestore.NotFound("quotes.get", "quote %s not found in store %s", quoteID, storeID)
		}
		if quote.Status != string(domain.QuoteStatusActive) {
			return domain.NewUserError("This order has already been placed.",
				fmt.Errorf("%w: %s", ErrQuoteAlreadyPlaced, quoteID))
		}

		sequence, err := s.nextSequence(ctx, tx, storeID)
		if err != nil {
			return err
		}

		now := s.now()
		incrementID := fmt.Sprintf("%s%0*d", prefix, incrementIDDigits, sequence)
		order := orderDocument{
			IncrementID:     incrementID,
			StoreID:         storeID,
			QuoteID:         quoteID,
			Status:          orderStatusPending,
			Line:            quote.Line,
			Customer:        quote.Customer,
			CustomerIsGuest: true,
			BillingAddress:  quote.BillingAddress,
			ShippingAddress: quote.ShippingAddress,
			Shipping:        quote.Shipping,
			Payment:         quote.Payment,
			Totals:          quote.Totals,
			PlacedAt:        now,
		}
		orderRef, err := s.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, order); err != nil {
			return err
		}

		quote.Status = string(domain.QuoteStatusConverted)
		quote.ReservedOrderID = incrementID
		quote.UpdatedAt = now
		if err := s.quotes.SetTx(ctx, tx, quoteID, quote); err != nil {
			return err
		}

		committed = domain.CommittedOrder{
			OrderID:     orderID,
			IncrementID: incrementID,
			StoreID:     storeID,
			QuoteID:     quoteID,
			Customer:    decodeCustomer(quote.Customer),
			Totals:      decodeTotals(quote.Totals),
			PlacedAt:    now,
		}
		return nil
	})
	if err != nil {
		var userErr *domain.UserError
		if errors.As(err, &userErr) {
			return domain.CommittedOrder{}, userErr
		}
		return domain.CommittedOrder{}, pfirestore.WrapError("orders.place", err)
	}
	return committed, nil
}

// nextSequence advances the per-store sequence inside the transaction. A missing document
// starts the sequence at its first step.
func (s *OrderStore) nextSequence(ctx context.Context, tx *firestore.Transaction, storeID string) (int64, error) {
	doc, err := s.sequences.GetTx(ctx, tx, storeID)
	if err != nil && !repositories.IsNotFound(err) {
		return 0, err
	}
	seq := doc.Data
	step := seq.Step
	if step <= 0 {
		step = 1
	}
	seq.CurrentValue += step
	seq.Step = step
	seq.UpdatedAt = s.now()
	if err := s.sequences.SetTx(ctx, tx, storeID, seq); err != nil {
		return 0, err
	}
	return seq.CurrentValue, nil
}

func encodeQuote(q domain.Quote) quoteDocument {
	return quoteDocument{
		StoreID: q.StoreID,
		Line: lineDocument{
			ProductID: q.Line.ProductID,
			SKU:       q.Line.SKU,
			Name:      q.Line.Name,
			UnitPrice: q.Line.UnitPrice,
			Quantity:  q.Line.Quantity,
			Weight:    q.Line.Weight,
		},
		Customer:        customerDocument{Name: q.Customer.Name, Email: q.Customer.Email, Phone: q.Customer.Phone},
		BillingAddress:  encodeAddress(q.BillingAddress),
		ShippingAddress: encodeAddress(q.ShippingAddress),
		Shipping: shippingDocument{
			Code:         q.ShippingMethod.Code,
			CarrierCode:  q.ShippingMethod.CarrierCode,
			MethodCode:   q.ShippingMethod.MethodCode,
			Title:        q.ShippingMethod.Title,
			CarrierTitle: q.ShippingMethod.CarrierTitle,
			Price:        q.ShippingMethod.Price,
			Cost:         q.ShippingMethod.Cost,
		},
		Payment: paymentDocument{Code: q.PaymentMethod.Code, Title: q.PaymentMethod.Title},
		Totals: totalsDocument{
			Currency:   q.Totals.Currency,
			Subtotal:   q.Totals.Subtotal,
			Shipping:   q.Totals.Shipping,
			GrandTotal: q.Totals.GrandTotal,
		},
		Status:          string(q.Status),
		ReservedOrderID: q.ReservedOrderID,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

func encodeAddress(a domain.Address) addressDocument {
	street := a.Street
	if street == nil {
		street = []string{}
	}
	return addressDocument{
		Name:      a.Name,
		Street:    street,
		City:      a.City,
		CountryID: a.CountryID,
		RegionID:  a.RegionID,
		Region:    a.Region,
		Postcode:  a.Postcode,
		Telephone: a.Telephone,
		Email:     a.Email,
	}
}

func decodeCustomer(c customerDocument) domain.GuestCustomer {
	return domain.GuestCustomer{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func decodeTotals(t totalsDocument) domain.OrderTotals {
	return domain.OrderTotals{
		Currency:   t.Currency,
		Subtotal:   t.Subtotal,
		Shipping:   t.Shipping,
		GrandTotal: t.GrandTotal,
	}
}
