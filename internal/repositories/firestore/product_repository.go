package firestore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
)

const productsCollection = "products"

type productDocument struct {
	SKU       string    `firestore:"sku"`
	Name      string    `firestore:"name"`
	Price     int64     `firestore:"price"`
	Currency  string    `firestore:"currency"`
	Weight    float64   `firestore:"weight"`
	Enabled   bool      `firestore:"enabled"`
	InStock   bool      `firestore:"inStock"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// ProductRepository implements repositories.ProductCatalog over the products collection.
// Documents are keyed by the decimal product id and prices are stored in minor units.
type ProductRepository struct {
	products *pfirestore.Collection[productDocument]
}

// NewProductRepository constructs a Firestore-backed product catalog.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		products: pfirestore.NewCollection[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

// FindByID loads the product. Unknown ids yield a not-found error.
func (r *ProductRepository) FindByID(ctx context.Context, productID int64) (domain.Product, error) {
	if productID <= 0 {
		return domain.Product{}, pfirestore.NotFound("products.get", "product id %d is invalid", productID)
	}
	doc, err := r.products.Get(ctx, strconv.FormatInt(productID, 10))
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:        productID,
		SKU:       strings.TrimSpace(doc.Data.SKU),
		Name:      strings.TrimSpace(doc.Data.Name),
		Price:     doc.Data.Price,
		Currency:  strings.ToUpper(strings.TrimSpace(doc.Data.Currency)),
		Weight:    doc.Data.Weight,
		Enabled:   doc.Data.Enabled,
		InStock:   doc.Data.InStock,
		UpdatedAt: doc.Data.UpdatedAt,
	}, nil
}
