//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/easyorder/quickorder/internal/domain"
	pconfig "github.com/easyorder/quickorder/internal/platform/config"
	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
	"github.com/easyorder/quickorder/internal/repositories"
)

func emulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "quickorder-test", EmulatorHost: host})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
}

func seed(t *testing.T, provider *pfirestore.Provider, collection, id string, data map[string]any) {
	t.Helper()
	client, err := provider.Client(context.Background())
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}
	if _, err := client.Collection(collection).Doc(id).Set(context.Background(), data); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}

func TestProductRepositoryIntegration(t *testing.T) {
	provider := emulatorProvider(t)
	repo, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	seed(t, provider, productsCollection, "77", map[string]any{
		"sku": "MUG-77", "name": "Mug", "price": int64(25000), "currency": "egp", "enabled": true, "inStock": true,
	})

	product, err := repo.FindByID(context.Background(), 77)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if product.ID != 77 || product.Price != 25000 || product.Currency != "EGP" || !product.Purchasable() {
		t.Fatalf("unexpected product %+v", product)
	}

	if _, err := repo.FindByID(context.Background(), 999999); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegionRepositoryIntegration(t *testing.T) {
	provider := emulatorProvider(t)
	repo, err := NewRegionRepository(provider)
	if err != nil {
		t.Fatalf("new region repository: %v", err)
	}
	country := "Z" + ulid.Make().String()[20:]
	seed(t, provider, regionsCollection, country+"-2", map[string]any{"countryId": country, "defaultName": "Giza", "sortOrder": 2})
	seed(t, provider, regionsCollection, country+"-1", map[string]any{
		"countryId": country, "defaultName": "Cairo", "sortOrder": 1, "names": map[string]any{"ar-EG": "القاهرة"},
	})

	regions, err := repo.ListByCountry(context.Background(), country)
	if err != nil {
		t.Fatalf("list regions: %v", err)
	}
	if len(regions) != 2 || regions[0].DefaultName != "Cairo" || regions[1].DefaultName != "Giza" {
		t.Fatalf("unexpected regions %+v", regions)
	}
	if regions[0].LocalizedName("ar-EG") != "القاهرة" {
		t.Fatalf("expected localized name, got %q", regions[0].LocalizedName("ar-EG"))
	}
}

func TestStoreSettingsRepositoryFallsBackToDefaults(t *testing.T) {
	provider := emulatorProvider(t)
	defaults := domain.StoreSettings{StoreID: "default", Enabled: true, Currency: "EGP", Locale: "ar-EG", CallingCode: "20"}
	repo, err := NewStoreSettingsRepository(provider, defaults)
	if err != nil {
		t.Fatalf("new settings repository: %v", err)
	}

	missing := "store-" + ulid.Make().String()
	settings, err := repo.Get(context.Background(), missing)
	if err != nil {
		t.Fatalf("get defaults: %v", err)
	}
	if settings.StoreID != missing || !settings.Enabled || settings.Currency != "EGP" {
		t.Fatalf("expected defaults, got %+v", settings)
	}

	stored := "store-" + ulid.Make().String()
	seed(t, provider, storesCollection, stored, map[string]any{
		"enabled": false,
		"carriers": []any{
			map[string]any{"code": "flatrate", "active": true, "methods": []any{map[string]any{"code": "flatrate", "price": int64(5000)}}},
		},
	})
	settings, err = repo.Get(context.Background(), stored)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if settings.Enabled || settings.Currency != "EGP" || len(settings.Carriers) != 1 {
		t.Fatalf("unexpected merged settings %+v", settings)
	}
	if settings.Carriers[0].Type != domain.CarrierTypeFlatRate {
		t.Fatalf("expected carrier type from code, got %q", settings.Carriers[0].Type)
	}
}

func TestOrderStorePlaceOrderIntegration(t *testing.T) {
	provider := emulatorProvider(t)
	storeID := "store-" + ulid.Make().String()
	settingsRepo, err := NewStoreSettingsRepository(provider, domain.StoreSettings{})
	if err != nil {
		t.Fatalf("new settings repository: %v", err)
	}
	seed(t, provider, storesCollection, storeID, map[string]any{"enabled": true, "incrementPrefix": "EG-"})

	store, err := NewOrderStore(provider, settingsRepo)
	if err != nil {
		t.Fatalf("new order store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	saveQuote := func(id string) {
		t.Helper()
		_, err := store.SaveQuote(ctx, domain.Quote{
			ID:       id,
			StoreID:  storeID,
			Line:     domain.PricingLine{ProductID: 5, Name: "Mug", UnitPrice: 25000, Quantity: 2},
			Customer: domain.GuestCustomer{Name: "Mona", Phone: "+201012345678"},
			Totals:   domain.OrderTotals{Currency: "EGP", Subtotal: 50000, Shipping: 5000, GrandTotal: 55000},
		})
		if err != nil {
			t.Fatalf("save quote %s: %v", id, err)
		}
	}

	saveQuote("qte_first")
	order, err := store.PlaceOrder(ctx, storeID, "qte_first")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.IncrementID != "EG-000000001" || order.Totals.GrandTotal != 55000 || order.OrderID == "" {
		t.Fatalf("unexpected order %+v", order)
	}

	_, err = store.PlaceOrder(ctx, storeID, "qte_first")
	var userErr *domain.UserError
	if !errors.As(err, &userErr) || !errors.Is(err, ErrQuoteAlreadyPlaced) {
		t.Fatalf("expected already placed user error, got %v", err)
	}

	if _, err := store.PlaceOrder(ctx, "other-store", "qte_first"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found for foreign store, got %v", err)
	}

	const workers = 6
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		quoteID := "qte_concurrent_" + ulid.Make().String()
		saveQuote(quoteID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			placed, err := store.PlaceOrder(ctx, storeID, quoteID)
			if err != nil {
				t.Errorf("place %s: %v", quoteID, err)
				return
			}
			ids <- placed.IncrementID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{"EG-000000001": true}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate increment id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != workers+1 {
		t.Fatalf("expected %d distinct increment ids, got %d", workers+1, len(seen))
	}
}
