package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/platform/textutil"
)

const minPhoneDigits = 8

var nationalPhonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+20[0-9]{10}$`),
	regexp.MustCompile(`^20[0-9]{10}$`),
	regexp.MustCompile(`^0[0-9]{10}$`),
	regexp.MustCompile(`^[0-9]{11}$`),
}

// ValidationError reports the first rule an order request failed. Message is shown to the shopper verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return "validation: " + e.Field + ": " + e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// OrderIntent is a validated and normalised order request. Only OrderIntentValidator builds one.
type OrderIntent struct {
	storeID        string
	productID      int64
	quantity       int
	customerName   string
	customerPhone  string
	customerEmail  string
	street         []string
	city           string
	countryID      string
	regionID       string
	regionText     string
	postcode       string
	shippingMethod string
	paymentMethod  string
}

func (i OrderIntent) StoreID() string        { return i.storeID }
func (i OrderIntent) ProductID() int64       { return i.productID }
func (i OrderIntent) Quantity() int          { return i.quantity }
func (i OrderIntent) CustomerName() string   { return i.customerName }
func (i OrderIntent) CustomerPhone() string  { return i.customerPhone }
func (i OrderIntent) CustomerEmail() string  { return i.customerEmail }
func (i OrderIntent) Street() []string       { return append([]string(nil), i.street...) }
func (i OrderIntent) City() string           { return i.city }
func (i OrderIntent) CountryID() string      { return i.countryID }
func (i OrderIntent) RegionID() string       { return i.regionID }
func (i OrderIntent) RegionText() string     { return i.regionText }
func (i OrderIntent) Postcode() string       { return i.postcode }
func (i OrderIntent) ShippingMethod() string { return i.shippingMethod }
func (i OrderIntent) PaymentMethod() string  { return i.paymentMethod }

type orderIntentValidator struct {
	normalizer AddressNormalizer
	validate   *validator.Validate
}

// NewOrderIntentValidator returns the rule chain validator. A nil normalizer selects the default one.
func NewOrderIntentValidator(normalizer AddressNormalizer) OrderIntentValidator {
	if normalizer == nil {
		normalizer = NewAddressNormalizer()
	}
	return &orderIntentValidator{normalizer: normalizer, validate: validator.New()}
}

// Validate applies the rules in order and stops at the first failure. Text fields are sanitised
// before they are checked, the phone and street are normalised into the intent.
func (v *orderIntentValidator) Validate(settings StoreSettings, req OrderRequest) (OrderIntent, error) {
	var (
		productID = strings.TrimSpace(req.ProductID)
		name      = textutil.Clean(req.CustomerName)
		rawPhone  = strings.TrimSpace(req.CustomerPhone)
		email     = strings.TrimSpace(req.CustomerEmail)
		city      = textutil.Clean(req.City)
		countryID = strings.ToUpper(strings.TrimSpace(req.CountryID))
		regionID  = strings.TrimSpace(req.RegionID)
		region    = textutil.Clean(req.Region)
		postcode  = textutil.Clean(req.Postcode)
		shipping  = strings.TrimSpace(req.ShippingMethod)
		payment   = strings.TrimSpace(req.PaymentMethod)
	)

	required := []struct {
		field, label, value string
	}{
		{"product_id", "Product ID", productID},
		{"customer_name", "Customer Name", name},
		{"customer_phone", "Customer Phone", rawPhone},
		{"city", "City", city},
		{"country_id", "Country", countryID},
		{"shipping_method", "Shipping Method", shipping},
		{"payment_method", "Payment Method", payment},
	}
	for _, r := range required {
		if blank(r.value) {
			return OrderIntent{}, invalid(r.field, fmt.Sprintf("%s is required.", r.label))
		}
	}

	street := v.normalizer.NormalizeStreet(textutil.CleanAll(req.Street))
	if len(street) == 0 {
		return OrderIntent{}, invalid("street", "Street address is required.")
	}

	id, err := strconv.ParseInt(productID, 10, 64)
	if err != nil || id <= 0 {
		return OrderIntent{}, invalid("product_id", "Invalid product ID.")
	}

	qty := 1
	if raw := strings.TrimSpace(req.Quantity); raw != "" {
		qty, err = strconv.Atoi(raw)
		if err != nil || qty <= 0 || qty > domain.MaxLineQuantity {
			return OrderIntent{}, invalid("qty", "Invalid quantity.")
		}
	}

	if len(textutil.Digits(rawPhone)) < minPhoneDigits {
		return OrderIntent{}, invalid("customer_phone", "Phone number must be at least 8 digits.")
	}

	if email != "" && v.validate.Var(email, "required,email") != nil {
		return OrderIntent{}, invalid("customer_email", "Invalid email address.")
	}

	if blank(regionID) && blank(region) {
		return OrderIntent{}, invalid("region", "Region is required.")
	}

	if settings.RequireEmail && email == "" && !settings.AutoGenerateEmail {
		return OrderIntent{}, invalid("customer_email", "Email is required.")
	}
	if settings.RequirePostcode && postcode == "" {
		return OrderIntent{}, invalid("postcode", "Postcode is required.")
	}
	if settings.PhoneValidation && !matchesNationalPattern(cleanPhone(rawPhone)) {
		return OrderIntent{}, invalid("customer_phone", "Please enter a valid phone number.")
	}

	return OrderIntent{
		storeID:        settings.StoreID,
		productID:      id,
		quantity:       qty,
		customerName:   name,
		customerPhone:  v.normalizer.NormalizePhone(rawPhone, settings.CallingCode),
		customerEmail:  email,
		street:         street,
		city:           city,
		countryID:      countryID,
		regionID:       regionID,
		regionText:     region,
		postcode:       postcode,
		shippingMethod: shipping,
		paymentMethod:  payment,
	}, nil
}

// blank reports a missing value. "0" counts as missing.
func blank(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "0"
}

func matchesNationalPattern(phone string) bool {
	for _, pattern := range nationalPhonePatterns {
		if pattern.MatchString(phone) {
			return true
		}
	}
	return false
}
