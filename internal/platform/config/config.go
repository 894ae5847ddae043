package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/easyorder/quickorder/internal/domain"
	"github.com/easyorder/quickorder/internal/platform/money"
)

const (
	envPrefix = "QUICKORDER_"

	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 20 * time.Second
	defaultMaxBodyBytes         = 64 << 10
	defaultOrderRateLimit       = 30
	defaultStoreID              = "default"
	defaultFormTitle            = "Quick Order"
	defaultSuccessMessage       = "Thank you! Your order has been placed."
	defaultCountry              = "EG"
	defaultCallingCode          = "20"
	defaultCurrency             = "EGP"
	defaultLocale               = "ar-EG"
	defaultGuestEmailDomain     = "easypay.com"
	defaultFallbackTitle        = "Standard Shipping"
	defaultPaymentMethods       = "cashondelivery"
	defaultFormKeyTTL           = 2 * time.Hour
	minFormKeySecretLength      = 16
	defaultNotificationDriver   = "none"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyLease     = time.Minute
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultIdempotencyStore     = "memory"
	defaultSecretsEnvironment   = "local"
	defaultSecretsFallbackFile  = ".secrets.local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firestore     FirestoreConfig
	Storefront    StorefrontConfig
	FormKey       FormKeyConfig
	Notifications NotificationConfig
	Idempotency   IdempotencyConfig
	Secrets       SecretsConfig
	Build         BuildConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// OrderRateLimit caps order submissions per client and store each minute. Zero disables it.
	OrderRateLimit int
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	DatabaseID   string
}

// StorefrontConfig holds the store defaults used when a store has no settings document or leaves a
// field blank. Prices are minor units.
type StorefrontConfig struct {
	DefaultStore          string
	Enabled               bool
	FormTitle             string
	SuccessMessage        string
	DefaultCountry        string
	CallingCode           string
	Currency              string
	Locale                string
	SendEmailNotification bool
	AutoGenerateEmail     bool
	GuestEmailDomain      string
	PhoneValidation       bool
	RequireEmail          bool
	RequirePostcode       bool
	ForceFallbackShipping bool
	FallbackShippingTitle string
	DefaultShippingPrice  int64
	FreeShippingThreshold int64
	FlatRatePrice         int64
	IncrementPrefix       string
	PaymentMethods        []string
}

// FormKeyConfig configures the anti-forgery key embedded in the storefront form.
type FormKeyConfig struct {
	Secret string
	TTL    time.Duration
}

// NotificationConfig selects where order placed events go. Driver is none, pubsub or kafka.
type NotificationConfig struct {
	Driver       string
	ProjectID    string
	Topic        string
	KafkaBrokers []string
}

// IdempotencyConfig configures idempotency middleware behaviour. Store is memory or firestore.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	PendingTTL       time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
	Store            string
}

// SecretsConfig configures the Secret Manager fetcher.
type SecretsConfig struct {
	Environment     string
	DefaultProject  string
	FallbackFile    string
	CredentialsFile string
	ProjectMap      map[string]string
	VersionPins     map[string]string
}

// BuildConfig is the build metadata reported by the health endpoints.
type BuildConfig struct {
	Version   string
	CommitSHA string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns a copy of the redacted secret identifiers.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers use it to build the secret fetcher
// before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(dotEnvValues))
	for key, value := range dotEnvValues {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				continue
			}
			values[key] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers match the config field names recorded by the loader (e.g. "FormKey.Secret").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	if options.secret == nil {
		options.secret = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		})
	}

	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		value, ok := values[envPrefix+key]
		return strings.TrimSpace(value), ok
	}

	var invalid []string
	price := func(key, field string, fallback int64) int64 {
		raw, ok := lookup(key)
		if !ok || raw == "" {
			return fallback
		}
		minor, err := money.ParseMinor(raw)
		if err != nil {
			invalid = append(invalid, field)
			return fallback
		}
		return minor
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			MaxBodyBytes:   int64(intWithDefault(lookup, "SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
			OrderRateLimit: intWithDefault(lookup, "SERVER_ORDER_RATE_LIMIT", defaultOrderRateLimit),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
			DatabaseID:   stringWithDefault(lookup, "FIRESTORE_DATABASE_ID", ""),
		},
		Storefront: StorefrontConfig{
			DefaultStore:          stringWithDefault(lookup, "STORE_DEFAULT_ID", defaultStoreID),
			Enabled:               boolWithDefault(lookup, "STORE_ENABLED", true),
			FormTitle:             stringWithDefault(lookup, "STORE_FORM_TITLE", defaultFormTitle),
			SuccessMessage:        stringWithDefault(lookup, "STORE_SUCCESS_MESSAGE", defaultSuccessMessage),
			DefaultCountry:        strings.ToUpper(stringWithDefault(lookup, "STORE_DEFAULT_COUNTRY", defaultCountry)),
			CallingCode:           strings.TrimPrefix(stringWithDefault(lookup, "STORE_CALLING_CODE", defaultCallingCode), "+"),
			Currency:              strings.ToUpper(stringWithDefault(lookup, "STORE_CURRENCY", defaultCurrency)),
			Locale:                stringWithDefault(lookup, "STORE_LOCALE", defaultLocale),
			SendEmailNotification: boolWithDefault(lookup, "STORE_SEND_EMAIL_NOTIFICATION", true),
			AutoGenerateEmail:     boolWithDefault(lookup, "STORE_AUTO_GENERATE_EMAIL", true),
			GuestEmailDomain:      stringWithDefault(lookup, "STORE_GUEST_EMAIL_DOMAIN", defaultGuestEmailDomain),
			PhoneValidation:       boolWithDefault(lookup, "STORE_PHONE_VALIDATION", true),
			RequireEmail:          boolWithDefault(lookup, "STORE_REQUIRE_EMAIL", false),
			RequirePostcode:       boolWithDefault(lookup, "STORE_REQUIRE_POSTCODE", false),
			ForceFallbackShipping: boolWithDefault(lookup, "STORE_FORCE_FALLBACK_SHIPPING", false),
			FallbackShippingTitle: stringWithDefault(lookup, "STORE_FALLBACK_SHIPPING_TITLE", defaultFallbackTitle),
			DefaultShippingPrice:  price("STORE_DEFAULT_SHIPPING_PRICE", "Storefront.DefaultShippingPrice", 0),
			FreeShippingThreshold: price("STORE_FREE_SHIPPING_THRESHOLD", "Storefront.FreeShippingThreshold", 0),
			FlatRatePrice:         price("STORE_FLAT_RATE_PRICE", "Storefront.FlatRatePrice", 0),
			IncrementPrefix:       stringWithDefault(lookup, "STORE_INCREMENT_PREFIX", ""),
			PaymentMethods:        csvWithDefault(lookup, "STORE_PAYMENT_METHODS", defaultPaymentMethods),
		},
		FormKey: FormKeyConfig{
			Secret: stringWithDefault(lookup, "FORM_KEY_SECRET", ""),
			TTL:    durationWithDefault(lookup, "FORM_KEY_TTL", defaultFormKeyTTL),
		},
		Notifications: NotificationConfig{
			Driver:       strings.ToLower(stringWithDefault(lookup, "NOTIFICATIONS_DRIVER", defaultNotificationDriver)),
			ProjectID:    stringWithDefault(lookup, "NOTIFICATIONS_PROJECT_ID", ""),
			Topic:        stringWithDefault(lookup, "NOTIFICATIONS_TOPIC", ""),
			KafkaBrokers: csvWithDefault(lookup, "NOTIFICATIONS_KAFKA_BROKERS", ""),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			PendingTTL:       durationWithDefault(lookup, "IDEMPOTENCY_PENDING_TTL", defaultIdempotencyLease),
			CleanupInterval:  durationWithDefault(lookup, "IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "IDEMPOTENCY_CLEANUP_BATCH_SIZE", defaultIdempotencyBatchSize),
			Store:            strings.ToLower(stringWithDefault(lookup, "IDEMPOTENCY_STORE", defaultIdempotencyStore)),
		},
		Secrets: SecretsFromEnv(values),
		Build: BuildConfig{
			Version:   stringWithDefault(lookup, "BUILD_VERSION", "dev"),
			CommitSHA: stringWithDefault(lookup, "BUILD_COMMIT_SHA", ""),
		},
	}
	if cfg.Notifications.ProjectID == "" {
		cfg.Notifications.ProjectID = cfg.Firestore.ProjectID
	}

	resolvedSecrets := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"FormKey.Secret", &cfg.FormKey.Secret},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve %s: %w", target.name, err)
		}
		*target.field = resolved
		resolvedSecrets[target.name] = resolved
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SecretsFromEnv reads the Secret Manager settings from an environment map produced by
// EnvironmentValues.
func SecretsFromEnv(values map[string]string) SecretsConfig {
	lookup := func(key string) (string, bool) {
		value, ok := values[envPrefix+key]
		return strings.TrimSpace(value), ok
	}
	cfg := SecretsConfig{
		Environment:     strings.ToLower(stringWithDefault(lookup, "SECRETS_ENVIRONMENT", defaultSecretsEnvironment)),
		DefaultProject:  stringWithDefault(lookup, "SECRETS_DEFAULT_PROJECT_ID", ""),
		FallbackFile:    stringWithDefault(lookup, "SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		CredentialsFile: stringWithDefault(lookup, "SECRETS_CREDENTIALS_FILE", ""),
		ProjectMap:      mapWithDefault(lookup, "SECRETS_PROJECT_IDS"),
		VersionPins:     mapWithDefault(lookup, "SECRETS_VERSION_PINS"),
	}
	if cfg.DefaultProject == "" {
		cfg.DefaultProject = stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", "")
	}
	return cfg
}

// StoreDefaults converts the storefront defaults into the settings used for stores without a
// settings document. The flat rate carrier is always offered and the free shipping carrier joins it
// when a threshold is configured.
func (c Config) StoreDefaults() domain.StoreSettings {
	sf := c.Storefront
	carriers := []domain.CarrierSettings{{
		Code:      string(domain.CarrierTypeFlatRate),
		Type:      domain.CarrierTypeFlatRate,
		Title:     "Flat Rate",
		Active:    true,
		SortOrder: 10,
		Methods:   []domain.CarrierMethod{{Code: "flatrate", Name: "Fixed", Price: sf.FlatRatePrice}},
	}}
	if sf.FreeShippingThreshold > 0 {
		carriers = append(carriers, domain.CarrierSettings{
			Code:                 string(domain.CarrierTypeFreeShipping),
			Type:                 domain.CarrierTypeFreeShipping,
			Title:                "Free Shipping",
			Active:               true,
			SortOrder:            20,
			FreeShippingSubtotal: sf.FreeShippingThreshold,
		})
	}

	methods := make([]domain.PaymentMethodSettings, 0, len(sf.PaymentMethods))
	for i, code := range sf.PaymentMethods {
		methods = append(methods, domain.PaymentMethodSettings{
			Code:      code,
			Title:     paymentTitle(code),
			Active:    true,
			SortOrder: (i + 1) * 10,
		})
	}

	return domain.StoreSettings{
		StoreID:               sf.DefaultStore,
		Enabled:               sf.Enabled,
		FormTitle:             sf.FormTitle,
		SuccessMessage:        sf.SuccessMessage,
		DefaultCountry:        sf.DefaultCountry,
		CallingCode:           sf.CallingCode,
		Currency:              sf.Currency,
		Locale:                sf.Locale,
		SendEmailNotification: sf.SendEmailNotification,
		AutoGenerateEmail:     sf.AutoGenerateEmail,
		GuestEmailDomain:      sf.GuestEmailDomain,
		PhoneValidation:       sf.PhoneValidation,
		RequireEmail:          sf.RequireEmail,
		RequirePostcode:       sf.RequirePostcode,
		ForceFallbackShipping: sf.ForceFallbackShipping,
		FallbackShippingTitle: sf.FallbackShippingTitle,
		DefaultShippingPrice:  sf.DefaultShippingPrice,
		FreeShippingThreshold: sf.FreeShippingThreshold,
		IncrementPrefix:       sf.IncrementPrefix,
		Carriers:              carriers,
		PaymentMethods:        methods,
	}
}

var paymentTitles = map[string]string{
	"cashondelivery": "Cash On Delivery",
	"checkmo":        "Check / Money order",
	"banktransfer":   "Bank Transfer Payment",
	"free":           "No Payment Information Required",
}

func paymentTitle(code string) string {
	if title, ok := paymentTitles[strings.ToLower(code)]; ok {
		return title
	}
	return code
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		missing = append(missing, "Server.MaxBodyBytes")
	}
	if cfg.Server.OrderRateLimit < 0 {
		missing = append(missing, "Server.OrderRateLimit")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.Storefront.DefaultStore) == "" {
		missing = append(missing, "Storefront.DefaultStore")
	}
	if len(cfg.Storefront.Currency) != 3 {
		missing = append(missing, "Storefront.Currency")
	}
	if len(cfg.Storefront.PaymentMethods) == 0 {
		missing = append(missing, "Storefront.PaymentMethods")
	}
	if len(cfg.FormKey.Secret) < minFormKeySecretLength {
		missing = append(missing, "FormKey.Secret")
	}
	if cfg.FormKey.TTL <= 0 {
		missing = append(missing, "FormKey.TTL")
	}
	switch cfg.Notifications.Driver {
	case "none":
	case "pubsub":
		if cfg.Notifications.Topic == "" {
			missing = append(missing, "Notifications.Topic")
		}
	case "kafka":
		if cfg.Notifications.Topic == "" {
			missing = append(missing, "Notifications.Topic")
		}
		if len(cfg.Notifications.KafkaBrokers) == 0 {
			missing = append(missing, "Notifications.KafkaBrokers")
		}
	default:
		missing = append(missing, "Notifications.Driver")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.PendingTTL <= 0 {
		missing = append(missing, "Idempotency.PendingTTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}
	if cfg.Idempotency.Store != "memory" && cfg.Idempotency.Store != "firestore" {
		missing = append(missing, "Idempotency.Store")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

// loadDotEnv reads the .env file. A missing file is not an error.
func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key, fallback string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}
