package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/easyorder/quickorder/internal/domain"
	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
	"github.com/easyorder/quickorder/internal/repositories"
)

const storesCollection = "stores"

type storeSettingsDocument struct {
	Enabled               bool                    `firestore:"enabled"`
	FormTitle             string                  `firestore:"formTitle"`
	SuccessMessage        string                  `firestore:"successMessage"`
	DefaultCountry        string                  `firestore:"defaultCountry"`
	CallingCode           string                  `firestore:"callingCode"`
	Currency              string                  `firestore:"currency"`
	Locale                string                  `firestore:"locale"`
	SendEmailNotification bool                    `firestore:"sendEmailNotification"`
	AutoGenerateEmail     bool                    `firestore:"autoGenerateEmail"`
	GuestEmailDomain      string                  `firestore:"guestEmailDomain"`
	PhoneValidation       bool                    `firestore:"phoneValidation"`
	RequireEmail          bool                    `firestore:"requireEmail"`
	RequirePostcode       bool                    `firestore:"requirePostcode"`
	ForceFallbackShipping bool                    `firestore:"forceFallbackShipping"`
	FallbackShippingTitle string                  `firestore:"fallbackShippingTitle"`
	DefaultShippingPrice  int64                   `firestore:"defaultShippingPrice"`
	FreeShippingThreshold int64                   `firestore:"freeShippingThreshold"`
	IncrementPrefix       string                  `firestore:"incrementPrefix"`
	Carriers              []carrierDocument       `firestore:"carriers"`
	PaymentMethods        []paymentMethodDocument `firestore:"paymentMethods"`
	UpdatedAt             time.Time               `firestore:"updatedAt"`
}

type carrierDocument struct {
	Code                 string             `firestore:"code"`
	Type                 string             `firestore:"type"`
	Title                string             `firestore:"title"`
	Active               bool               `firestore:"active"`
	SortOrder            int                `firestore:"sortOrder"`
	SpecificCountries    []string           `firestore:"specificCountries"`
	Methods              []methodDocument   `firestore:"methods"`
	HandlingFee          int64              `firestore:"handlingFee"`
	FreeShippingSubtotal int64              `firestore:"freeShippingSubtotal"`
	TableRates           []tableRowDocument `firestore:"tableRates"`
}

type methodDocument struct {
	Code    string `firestore:"code"`
	Name    string `firestore:"name"`
	Price   int64  `firestore:"price"`
	PerItem bool   `firestore:"perItem"`
}

type tableRowDocument struct {
	CountryID   string `firestore:"countryId"`
	Region      string `firestore:"region"`
	Postcode    string `firestore:"postcode"`
	MinSubtotal int64  `firestore:"minSubtotal"`
	Price       int64  `firestore:"price"`
}

type paymentMethodDocument struct {
	Code      string `firestore:"code"`
	Title     string `firestore:"title"`
	Active    bool   `firestore:"active"`
	SortOrder int    `firestore:"sortOrder"`
}

// StoreSettingsRepository implements repositories.StoreSettingsReader over stores/{storeId}.
// Stores without a document run on the configured defaults; empty text fields of a stored
// document are filled from the same defaults.
type StoreSettingsRepository struct {
	stores   *pfirestore.Collection[storeSettingsDocument]
	defaults domain.StoreSettings
}

// NewStoreSettingsRepository constructs the settings reader.
func NewStoreSettingsRepository(provider *pfirestore.Provider, defaults domain.StoreSettings) (*StoreSettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("store settings repository requires firestore provider")
	}
	return &StoreSettingsRepository{
		stores:   pfirestore.NewCollection[storeSettingsDocument](provider, storesCollection, nil, nil),
		defaults: defaults,
	}, nil
}

// Get reads the settings of the store. The document is read on every call.
func (r *StoreSettingsRepository) Get(ctx context.Context, storeID string) (domain.StoreSettings, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		storeID = r.defaults.StoreID
	}
	doc, err := r.stores.Get(ctx, storeID)
	if err != nil {
		if repositories.IsNotFound(err) {
			settings := r.defaults
			settings.StoreID = storeID
			return settings, nil
		}
		return domain.StoreSettings{}, err
	}
	settings := mergeStoreSettings(doc.Data, r.defaults)
	settings.StoreID = storeID
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = doc.UpdateTime
	}
	return settings, nil
}

func mergeStoreSettings(doc storeSettingsDocument, defaults domain.StoreSettings) domain.StoreSettings {
	settings := domain.StoreSettings{
		Enabled:               doc.Enabled,
		FormTitle:             orDefault(doc.FormTitle, defaults.FormTitle),
		SuccessMessage:        orDefault(doc.SuccessMessage, defaults.SuccessMessage),
		DefaultCountry:        strings.ToUpper(orDefault(doc.DefaultCountry, defaults.DefaultCountry)),
		CallingCode:           strings.TrimPrefix(orDefault(doc.CallingCode, defaults.CallingCode), "+"),
		Currency:              strings.ToUpper(orDefault(doc.Currency, defaults.Currency)),
		Locale:                orDefault(doc.Locale, defaults.Locale),
		SendEmailNotification: doc.SendEmailNotification,
		AutoGenerateEmail:     doc.AutoGenerateEmail,
		GuestEmailDomain:      orDefault(doc.GuestEmailDomain, defaults.GuestEmailDomain),
		PhoneValidation:       doc.PhoneValidation,
		RequireEmail:          doc.RequireEmail,
		RequirePostcode:       doc.RequirePostcode,
		ForceFallbackShipping: doc.ForceFallbackShipping,
		FallbackShippingTitle: orDefault(doc.FallbackShippingTitle, defaults.FallbackShippingTitle),
		DefaultShippingPrice:  doc.DefaultShippingPrice,
		FreeShippingThreshold: doc.FreeShippingThreshold,
		IncrementPrefix:       strings.TrimSpace(doc.IncrementPrefix),
		UpdatedAt:             doc.UpdatedAt,
	}

	settings.Carriers = make([]domain.CarrierSettings, 0, len(doc.Carriers))
	for _, c := range doc.Carriers {
		carrier := domain.CarrierSettings{
			Code:                 strings.TrimSpace(c.Code),
			Type:                 domain.CarrierType(strings.ToLower(orDefault(c.Type, c.Code))),
			Title:                strings.TrimSpace(c.Title),
			Active:               c.Active,
			SortOrder:            c.SortOrder,
			SpecificCountries:    c.SpecificCountries,
			HandlingFee:          c.HandlingFee,
			FreeShippingSubtotal: c.FreeShippingSubtotal,
		}
		for _, m := range c.Methods {
			carrier.Methods = append(carrier.Methods, domain.CarrierMethod{
				Code:    strings.TrimSpace(m.Code),
				Name:    strings.TrimSpace(m.Name),
				Price:   m.Price,
				PerItem: m.PerItem,
			})
		}
		for _, row := range c.TableRates {
			carrier.TableRates = append(carrier.TableRates, domain.TableRateRow{
				CountryID:   strings.TrimSpace(row.CountryID),
				Region:      strings.TrimSpace(row.Region),
				Postcode:    strings.TrimSpace(row.Postcode),
				MinSubtotal: row.MinSubtotal,
				Price:       row.Price,
			})
		}
		settings.Carriers = append(settings.Carriers, carrier)
	}

	settings.PaymentMethods = make([]domain.PaymentMethodSettings, 0, len(doc.PaymentMethods))
	for _, p := range doc.PaymentMethods {
		settings.PaymentMethods = append(settings.PaymentMethods, domain.PaymentMethodSettings{
			Code:      strings.TrimSpace(p.Code),
			Title:     strings.TrimSpace(p.Title),
			Active:    p.Active,
			SortOrder: p.SortOrder,
		})
	}
	// A stored document without its own methods keeps the configured ones.
	if len(settings.Carriers) == 0 {
		settings.Carriers = defaults.Carriers
	}
	if len(settings.PaymentMethods) == 0 {
		settings.PaymentMethods = defaults.PaymentMethods
	}
	return settings
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(fallback)
}
