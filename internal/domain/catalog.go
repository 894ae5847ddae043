package domain

import "time"

// Product is the catalog view needed to quote and place a single-line order.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Price     int64
	Currency  string
	Weight    float64
	Enabled   bool
	InStock   bool
	UpdatedAt time.Time
}

// Purchasable reports whether the product can be added to a guest order.
func (p Product) Purchasable() bool {
	return p.ID > 0 && p.Enabled && p.InStock
}

// Region is a country subdivision from the region reference data.
type Region struct {
	ID          string
	CountryID   string
	Code        string
	DefaultName string
	Names       map[string]string
}

// LocalizedName returns the name configured for the locale, falling back to the default name.
func (r Region) LocalizedName(locale string) string {
	if name, ok := r.Names[locale]; ok && name != "" {
		return name
	}
	return r.DefaultName
}

// Matches reports an exact, case-sensitive match against the default or localized name.
func (r Region) Matches(name, locale string) bool {
	if name == "" {
		return false
	}
	if r.DefaultName == name {
		return true
	}
	if localized, ok := r.Names[locale]; ok && localized == name {
		return true
	}
	return false
}
