package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/votepay/backend/internal/audit"
	"github.com/votepay/backend/internal/config"
	"github.com/votepay/backend/internal/database"
	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/ledger"
	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/services"
	"github.com/votepay/backend/internal/webhook"
)

// app is the wired engine shared by serve and sweep
type app struct {
	db       *sql.DB
	redis    *redis.Client
	payments *config.PaymentsConfig
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	selector   *gateway.Selector
	keys       *webhook.Keyring
	repo       *ledger.Store
	results    *services.ResultsService
	confirmer  *services.ConfirmationService
	intents    *services.IntentService
	reconciler *services.Reconciler
	ingestor   *webhook.Ingestor
}

func newApp() (*app, error) {
	payments := config.LoadPaymentsConfig()
	if !payments.Sandbox {
		return nil, fmt.Errorf("live provider integrations are not available, set PAYMENTS_SANDBOX=true")
	}

	keys, err := webhook.NewKeyring(payments)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	auditLogger := audit.NewLogger()

	selector, err := newSelector(payments, keys, m)
	if err != nil {
		return nil, err
	}

	db := database.InitDatabase()
	redisClient := database.InitRedis()

	repo := ledger.NewStore(db)
	results := services.NewResultsService(repo, redisClient, payments.ResultsCacheTTL, m)
	confirmer := services.NewConfirmationService(repo, results, redisClient, auditLogger, m)

	return &app{
		db:         db,
		redis:      redisClient,
		payments:   payments,
		registry:   registry,
		metrics:    m,
		selector:   selector,
		keys:       keys,
		repo:       repo,
		results:    results,
		confirmer:  confirmer,
		intents:    services.NewIntentService(repo, selector, confirmer, auditLogger, m, payments.DefaultCurrency),
		reconciler: services.NewReconciler(repo, selector, confirmer, auditLogger, m, payments.SweepGrace, payments.SweepAbandonAfter, payments.SweepBatchSize),
		ingestor:   webhook.NewIngestor(keys, repo, confirmer, auditLogger, m),
	}, nil
}

// newSelector registers a sandbox adapter per enabled provider. Sandbox
// adapters deliver their notifications to our own webhook endpoint, signed
// with the provider's key.
func newSelector(payments *config.PaymentsConfig, keys *webhook.Keyring, m *metrics.Metrics) (*gateway.Selector, error) {
	callbackURL := strings.TrimRight(payments.CallbackBaseURL, "/") + "/webhooks/payment"
	notify := gateway.WithNotifier(gateway.NewHTTPNotifier(callbackURL, keys))

	var gateways []gateway.Gateway
	for _, id := range payments.EnabledProviders {
		cfg, ok := payments.Provider(id)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q in GATEWAY_ENABLED", id)
		}
		switch id {
		case config.ProviderCheckout:
			gateways = append(gateways, gateway.NewCheckout(cfg, payments.CheckoutBaseURL, notify))
		case config.ProviderMomo:
			gateways = append(gateways, gateway.NewMomo(cfg, notify))
		case config.ProviderUSSD:
			gateways = append(gateways, gateway.NewUSSD(cfg, payments.USSDDialPrefix, payments.USSDDialSuffix, payments.USSDCodeLength, notify))
		}
		if !keys.Has(id) {
			log.Printf("Warning: provider %s has no webhook secret, its payments can only settle through the sweep", id)
		}
	}
	if len(gateways) == 0 {
		return nil, fmt.Errorf("no payment providers enabled")
	}

	selector := gateway.NewSelector(payments.SelectionPolicy, payments.DefaultProvider, gateways...)
	selector.OnHealthChange(m.SetProviderUp)
	for _, g := range gateways {
		m.SetProviderUp(g.ID(), true)
	}
	return selector, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
