package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCheckoutConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	Payment   PaymentConfig
	Scheduler SchedulerConfig

	MetricsExport MetricsExportConfig

	AMQPURL              string
	BootstrapAdminUserID string
}

// CheckoutConfig controls hold lifetimes. HoldDuration is the only value the
// inventory engine reads; CheckoutTimer is what clients display.
type CheckoutConfig struct {
	HoldDuration    time.Duration `mapstructure:"holdDuration"`
	CheckoutTimer   time.Duration `mapstructure:"checkoutTimer"`
	MaxHoldQuantity int32         `mapstructure:"maxHoldQuantity"`
}

type RateLimitConfig struct {
	Enabled      bool
	RedisAddr    string
	RedisDB      int
	HoldRate     float64
	HoldBurst    int
	SweepLockTTL time.Duration
}

type PaymentConfig struct {
	StripeWebhookSecret string
}

// MetricsExportConfig controls the periodic inventory snapshot push.
type MetricsExportConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	LogLevel           string
	LogFormat          string
	OtelEnabled        bool
	OtelProtocol       string
	SamplingRatio      float64
	SlowQueryThreshold time.Duration
}

type SchedulerConfig struct {
	Interval            time.Duration
	ExpireHoldsBatch    int
	ReconcileBatch      int
	HotScoreBatch       int
	JobTimeout          time.Duration
	EnabledJobs         []string
	SingletonLockPrefix string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "boxoffice"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Observability: ObservabilityConfig{
			LogLevel:           strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:          strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:        getenvBool("OTEL_ENABLED", true),
			OtelProtocol:       strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio:      getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			SlowQueryThreshold: time.Duration(getenvInt64("DATABASE_SLOW_QUERY_MS", 200)) * time.Millisecond,
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "boxoffice"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Checkout: CheckoutConfig{
			HoldDuration:    time.Duration(getenvInt64("HOLD_DURATION_SECONDS", 540)) * time.Second,
			CheckoutTimer:   time.Duration(getenvInt64("CHECKOUT_TIMER_SECONDS", 600)) * time.Second,
			MaxHoldQuantity: int32(getenvInt("MAX_HOLD_QUANTITY", 10)),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
			RedisDB:      getenvInt("REDIS_DB", 0),
			HoldRate:     getenvFloat("HOLD_RATE_PER_SECOND", 1),
			HoldBurst:    getenvInt("HOLD_RATE_BURST", 5),
			SweepLockTTL: time.Duration(getenvInt64("SCHEDULER_LOCK_TTL_SECONDS", 60)) * time.Second,
		},
		Payment: PaymentConfig{
			StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		},
		Scheduler: SchedulerConfig{
			Interval:            time.Duration(getenvInt64("SCHEDULER_INTERVAL_SECONDS", 30)) * time.Second,
			ExpireHoldsBatch:    getenvInt("SCHEDULER_EXPIRE_HOLDS_BATCH", 500),
			ReconcileBatch:      getenvInt("SCHEDULER_RECONCILE_BATCH", 200),
			HotScoreBatch:       getenvInt("SCHEDULER_HOT_SCORE_BATCH", 500),
			JobTimeout:          time.Duration(getenvInt64("SCHEDULER_JOB_TIMEOUT_SECONDS", 20)) * time.Second,
			EnabledJobs:         parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			SingletonLockPrefix: getenv("SCHEDULER_LOCK_PREFIX", "boxoffice:scheduler"),
		},
		MetricsExport: MetricsExportConfig{
			Enabled:   getenvBool("METRICS_EXPORT_ENABLED", false),
			Exporter:  strings.TrimSpace(getenv("METRICS_EXPORT_EXPORTER", "prometheus_remote_write")),
			Endpoint:  strings.TrimSpace(getenv("METRICS_EXPORT_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_EXPORT_AUTH_TOKEN", "")),
			Interval:  time.Duration(getenvInt64("METRICS_EXPORT_INTERVAL_SECONDS", 300)) * time.Second,
		},

		AMQPURL:              strings.TrimSpace(getenv("AMQP_URL", "")),
		BootstrapAdminUserID: strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_USER_ID", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
