package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider identifiers understood by the gateway and webhook layers
const (
	ProviderCheckout = "checkout"
	ProviderMomo     = "momo"
	ProviderUSSD     = "ussd"
)

// Selection policies for choosing among healthy providers
const (
	SelectPrimary    = "primary"
	SelectRoundRobin = "round_robin"
)

type ProviderConfig struct {
	ID            string
	WebhookSecret string
	SuccessRate   float64
	AbandonRate   float64
	MinLatency    time.Duration
	MaxLatency    time.Duration
	SessionTTL    time.Duration
}

type PaymentsConfig struct {
	Sandbox          bool
	WebhookSecret    string
	CallbackBaseURL  string
	CheckoutBaseURL  string
	DefaultCurrency  string
	EnabledProviders []string
	DefaultProvider  string
	SelectionPolicy  string
	HealthInterval   time.Duration
	Providers        map[string]ProviderConfig
	USSDDialPrefix   string
	USSDDialSuffix   string
	USSDCodeLength   int
	ResultsCacheTTL  time.Duration
	SweepInterval    time.Duration
	SweepGrace       time.Duration
	// SweepAbandonAfter is how long an expired transaction its provider cannot
	// verify stays PENDING before the sweep times it out
	SweepAbandonAfter time.Duration
	SweepBatchSize    int
}

func LoadPaymentsConfig() *PaymentsConfig {
	cfg := &PaymentsConfig{
		Sandbox:           getEnvAsBool("PAYMENTS_SANDBOX", true),
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		CallbackBaseURL:   getEnv("CALLBACK_BASE_URL", "http://localhost:8080/api/v1"),
		CheckoutBaseURL:   getEnv("CHECKOUT_BASE_URL", "http://localhost:8080/sandbox/checkout"),
		DefaultCurrency:   getEnv("DEFAULT_CURRENCY", "GHS"),
		EnabledProviders:  getEnvAsList("GATEWAY_ENABLED", []string{ProviderCheckout, ProviderMomo, ProviderUSSD}),
		DefaultProvider:   getEnv("GATEWAY_DEFAULT", ProviderCheckout),
		SelectionPolicy:   getEnv("GATEWAY_SELECTION", SelectPrimary),
		HealthInterval:    getEnvAsDuration("GATEWAY_HEALTH_INTERVAL", 30*time.Second),
		USSDDialPrefix:    getEnv("USSD_DIAL_PREFIX", "*713*"),
		USSDDialSuffix:    getEnv("USSD_DIAL_SUFFIX", "#"),
		USSDCodeLength:    getEnvAsInt("USSD_CODE_LENGTH", 6),
		ResultsCacheTTL:   getEnvAsDuration("RESULTS_CACHE_TTL", 15*time.Second),
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 30*time.Second),
		SweepGrace:        getEnvAsDuration("SWEEP_GRACE", 30*time.Second),
		SweepAbandonAfter: getEnvAsDuration("SWEEP_ABANDON_AFTER", time.Hour),
		SweepBatchSize:    getEnvAsInt("SWEEP_BATCH_SIZE", 100),
		Providers:         map[string]ProviderConfig{},
	}

	defaults := map[string]time.Duration{
		ProviderCheckout: 30 * time.Minute,
		ProviderMomo:     2 * time.Minute,
		ProviderUSSD:     getEnvAsDuration("USSD_SESSION_TTL", 60*time.Second),
	}

	for _, id := range []string{ProviderCheckout, ProviderMomo, ProviderUSSD} {
		prefix := "SANDBOX_" + strings.ToUpper(id) + "_"
		cfg.Providers[id] = ProviderConfig{
			ID:            id,
			WebhookSecret: getEnv("WEBHOOK_SECRET_"+strings.ToUpper(id), ""),
			SuccessRate:   getEnvAsFloat(prefix+"SUCCESS_RATE", 0.9),
			AbandonRate:   getEnvAsFloat(prefix+"ABANDON_RATE", 0.05),
			MinLatency:    getEnvAsDuration(prefix+"MIN_LATENCY", 2*time.Second),
			MaxLatency:    getEnvAsDuration(prefix+"MAX_LATENCY", 8*time.Second),
			SessionTTL:    getEnvAsDuration(prefix+"SESSION_TTL", defaults[id]),
		}
	}

	return cfg
}

// Provider returns the settings for id, or false if id is unknown
func (c *PaymentsConfig) Provider(id string) (ProviderConfig, bool) {
	p, ok := c.Providers[id]
	return p, ok
}

// IsEnabled reports whether id appears in the enabled provider list
func (c *PaymentsConfig) IsEnabled(id string) bool {
	for _, p := range c.EnabledProviders {
		if p == id {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
