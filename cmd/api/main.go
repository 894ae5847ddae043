package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/easyorder/quickorder/internal/handlers"
	"github.com/easyorder/quickorder/internal/platform/auth"
	"github.com/easyorder/quickorder/internal/platform/config"
	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
	"github.com/easyorder/quickorder/internal/platform/idempotency"
	"github.com/easyorder/quickorder/internal/platform/jobs"
	"github.com/easyorder/quickorder/internal/platform/observability"
	"github.com/easyorder/quickorder/internal/platform/secrets"
	"github.com/easyorder/quickorder/internal/repositories"
	firestoreRepo "github.com/easyorder/quickorder/internal/repositories/firestore"
	"github.com/easyorder/quickorder/internal/services"
	"github.com/easyorder/quickorder/internal/shipping"
)

const secretHealthReference = "secret://system/healthz"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, config.SecretsFromEnv(envValues))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets("FormKey.Secret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := services.BuildInfo{
		Version:     cfg.Build.Version,
		CommitSHA:   cfg.Build.CommitSHA,
		Environment: cfg.Secrets.Environment,
		StartedAt:   startedAt,
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	regionRepo, err := firestoreRepo.NewRegionRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise region repository", zap.Error(err))
	}
	settingsRepo, err := firestoreRepo.NewStoreSettingsRepository(firestoreProvider, cfg.StoreDefaults())
	if err != nil {
		logger.Fatal("failed to initialise store settings repository", zap.Error(err))
	}
	orderStore, err := firestoreRepo.NewOrderStore(firestoreProvider, settingsRepo)
	if err != nil {
		logger.Fatal("failed to initialise order store", zap.Error(err))
	}

	notifier, closeNotifier, err := newOrderNotifier(ctx, cfg.Notifications)
	if err != nil {
		logger.Fatal("failed to initialise order notifier", zap.Error(err))
	}
	defer closeNotifier()

	quoteLog := observability.EventLogger(logger.Named("quote"))
	orderLog := observability.EventLogger(logger.Named("order"))

	normalizer := services.NewAddressNormalizer()
	regionResolver, err := services.NewRegionResolver(services.RegionResolverDeps{Regions: regionRepo, Logger: quoteLog})
	if err != nil {
		logger.Fatal("failed to initialise region resolver", zap.Error(err))
	}
	quoteEngine, err := services.NewShippingQuoteEngine(services.ShippingQuoteEngineDeps{
		Settings: settingsRepo,
		Products: productRepo,
		Rates:    shipping.NewEngine(),
		Logger:   quoteLog,
	})
	if err != nil {
		logger.Fatal("failed to initialise shipping quote engine", zap.Error(err))
	}
	paymentProvider, err := services.NewPaymentMethodProvider(services.PaymentMethodProviderDeps{Settings: settingsRepo, Logger: quoteLog})
	if err != nil {
		logger.Fatal("failed to initialise payment method provider", zap.Error(err))
	}
	priceCalculator, err := services.NewPriceCalculator(services.PriceCalculatorDeps{
		Settings: settingsRepo,
		Products: productRepo,
		Quotes:   quoteEngine,
		Logger:   quoteLog,
	})
	if err != nil {
		logger.Fatal("failed to initialise price calculator", zap.Error(err))
	}
	formKeys, err := auth.NewFormKeySigner(cfg.FormKey.Secret, auth.WithFormKeyTTL(cfg.FormKey.TTL))
	if err != nil {
		logger.Fatal("failed to initialise form key signer", zap.Error(err))
	}
	storefrontService, err := services.NewStorefrontService(services.StorefrontServiceDeps{
		Settings: settingsRepo,
		Products: productRepo,
		FormKeys: formKeys,
		Logger:   quoteLog,
	})
	if err != nil {
		logger.Fatal("failed to initialise storefront service", zap.Error(err))
	}

	orderAssembler, err := services.NewOrderAssembler(services.OrderAssemblerDeps{
		Settings:    settingsRepo,
		Products:    productRepo,
		Orders:      orderStore,
		Regions:     regionResolver,
		Quotes:      quoteEngine,
		Payments:    paymentProvider,
		FormKeys:    storefrontService,
		Validator:   services.NewOrderIntentValidator(normalizer),
		Normalizer:  normalizer,
		Notifier:    notifier,
		Clock:       time.Now,
		IDGenerator: func() string { return ulid.Make().String() },
		Logger:      orderLog,
	})
	if err != nil {
		logger.Fatal("failed to initialise order assembler", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreProvider, fetcher, settingsRepo, cfg.Storefront.DefaultStore, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore, err := newIdempotencyStore(cfg.Idempotency, firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithPendingTTL(cfg.Idempotency.PendingTTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		idempotency.RunCleanup(cleanupCtx, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
	}()

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		handlers.StoreScopeMiddleware(cfg.Storefront.DefaultStore),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)
	quickOrderHandlers := handlers.NewQuickOrderHandlers(handlers.QuickOrderHandlersDeps{
		Quotes:       quoteEngine,
		Prices:       priceCalculator,
		Payments:     paymentProvider,
		Orders:       orderAssembler,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	storefrontHandlers := handlers.NewStorefrontHandlers(storefrontService,
		handlers.WithRegionResolver(regionResolver),
		handlers.WithDefaultLocale(cfg.Storefront.Locale),
	)

	router := handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithQuoteRoutes(quickOrderHandlers.Routes),
		handlers.WithOrderRoutes(quickOrderHandlers.OrderRoutes),
		handlers.WithOrderMiddlewares(
			handlers.OrderRateLimitMiddleware(cfg.Server.OrderRateLimit, time.Minute),
			idempotencyMiddleware,
		),
		handlers.WithStorefrontRoutes(storefrontHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("quick order api listening", zap.String("version", buildInfo.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, cfg config.SecretsConfig) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithEnvironment(cfg.Environment),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(cfg.FallbackFile),
		secrets.WithMeter(otel.Meter("github.com/easyorder/quickorder/secrets")),
	}
	if len(cfg.ProjectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(cfg.ProjectMap))
	}
	if cfg.DefaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(cfg.DefaultProject))
	}
	if len(cfg.VersionPins) > 0 {
		opts = append(opts, secrets.WithVersionPins(cfg.VersionPins))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(cfg.CredentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// newOrderNotifier returns the configured notifier and a close func. The "none" driver yields a nil
// notifier, which the order assembler treats as notifications being off.
func newOrderNotifier(ctx context.Context, cfg config.NotificationConfig) (services.OrderNotifier, func(), error) {
	switch cfg.Driver {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		topic := client.Topic(cfg.Topic)
		notifier, err := jobs.NewPubSubOrderNotifier(topic)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return notifier, func() {
			topic.Stop()
			_ = client.Close()
		}, nil
	case "kafka":
		notifier, err := jobs.NewKafkaOrderNotifier(cfg.KafkaBrokers, cfg.Topic)
		if err != nil {
			return nil, nil, err
		}
		return notifier, func() { _ = notifier.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func newIdempotencyStore(cfg config.IdempotencyConfig, provider *pfirestore.Provider) (idempotency.Store, error) {
	if cfg.Store == "firestore" {
		store, err := idempotency.NewFirestoreStore(provider)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return idempotency.NewMemoryStore(), nil
}

func newSystemService(provider *pfirestore.Provider, fetcher *secrets.Fetcher, settings repositories.StoreSettingsReader, defaultStore string, build services.BuildInfo) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:     "firestore",
			Critical: true,
			Timeout:  1500 * time.Millisecond,
			Check:    provider.Ping,
		},
	}
	if fetcher != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return fetcher.Check(ctx, secretHealthReference)
			},
		})
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Settings:         settings,
		Stores:           []string{defaultStore},
		Clock:            time.Now,
		Build:            build,
	})
}
