package repositories

import (
	"context"
	"errors"

	domain "github.com/easyorder/quickorder/internal/domain"
)

// ProductCatalog looks products up by their numeric identifier.
// Implementations return an error satisfying IsNotFound for unknown products.
type ProductCatalog interface {
	FindByID(ctx context.Context, productID int64) (domain.Product, error)
}

// StoreSettingsReader reads the store scoped configuration. It is consulted on every request and
// must not be cached by callers so that disabled methods take effect immediately.
type StoreSettingsReader interface {
	Get(ctx context.Context, storeID string) (domain.StoreSettings, error)
}

// RegionLookup lists the region reference data of a country in a stable order.
type RegionLookup interface {
	ListByCountry(ctx context.Context, countryID string) ([]domain.Region, error)
}

// OrderStore persists purchase contexts and turns them into orders.
// PlaceOrder is atomic: either the order exists and the quote is converted, or nothing changed.
type OrderStore interface {
	SaveQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error)
	PlaceOrder(ctx context.Context, storeID, quoteID string) (domain.CommittedOrder, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// RepositoryError exposes classification helpers for storage failures.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err, or any error it wraps, is a not-found repository error.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsUnavailable reports whether err, or any error it wraps, is a transient storage outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
