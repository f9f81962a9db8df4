package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
	Report       ReportConfig
	Storage      StorageConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"TECH4LOOP_APP_ENV" required:"true"`
	Port          string `envconfig:"TECH4LOOP_APP_PORT" default:"8080"`
	LogLevel      string `envconfig:"TECH4LOOP_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"TECH4LOOP_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string `envconfig:"TECH4LOOP_PUBLIC_BASE_URL" default:"http://localhost:8080"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"TECH4LOOP_DB_DSN"`
	Driver string `envconfig:"TECH4LOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TECH4LOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"TECH4LOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TECH4LOOP_DB_USER"`
	LegacyPassword string `envconfig:"TECH4LOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"TECH4LOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"TECH4LOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TECH4LOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TECH4LOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TECH4LOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TECH4LOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TECH4LOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TECH4LOOP_REDIS_ADDR"`
	Password     string        `envconfig:"TECH4LOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"TECH4LOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TECH4LOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TECH4LOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TECH4LOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TECH4LOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TECH4LOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the identity provider; this service never issues them.
type JWTConfig struct {
	Secret string `envconfig:"TECH4LOOP_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"TECH4LOOP_JWT_ISSUER" required:"true"`
}

type GatewayConfig struct {
	AccessToken         string        `envconfig:"TECH4LOOP_GATEWAY_ACCESS_TOKEN" required:"true"`
	Env                 string        `envconfig:"TECH4LOOP_GATEWAY_ENV" default:"sandbox"`
	BaseURL             string        `envconfig:"TECH4LOOP_GATEWAY_BASE_URL" default:"https://api.mercadopago.com"`
	Timeout             time.Duration `envconfig:"TECH4LOOP_GATEWAY_TIMEOUT" default:"15s"`
	StatementDescriptor string        `envconfig:"TECH4LOOP_GATEWAY_STATEMENT_DESCRIPTOR" default:"TECH4LOOP"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CheckoutConfig struct {
	HoldTTL         time.Duration `envconfig:"TECH4LOOP_CHECKOUT_HOLD_TTL" default:"30m"`
	// DeferredHoldTTL covers pix and boleto payments, which settle long
	// after the buyer leaves the hosted checkout.
	DeferredHoldTTL time.Duration `envconfig:"TECH4LOOP_CHECKOUT_DEFERRED_HOLD_TTL" default:"72h"`
	Currency        string        `envconfig:"TECH4LOOP_CHECKOUT_CURRENCY" default:"BRL"`
	SuccessURL      string        `envconfig:"TECH4LOOP_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/checkout/sucesso"`
	FailureURL      string        `envconfig:"TECH4LOOP_CHECKOUT_FAILURE_URL" default:"http://localhost:3000/checkout/falha"`
	PendingURL      string        `envconfig:"TECH4LOOP_CHECKOUT_PENDING_URL"`
}

func (c CheckoutConfig) validate() error {
	if c.HoldTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutHoldTTL)
	}
	if c.DeferredHoldTTL < c.HoldTTL {
		return fmt.Errorf("%s must not be shorter than %s", EnvCheckoutDeferredTTL, EnvCheckoutHoldTTL)
	}
	for env, raw := range map[string]string{EnvCheckoutSuccess: c.SuccessURL, EnvCheckoutFailure: c.FailureURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%s must be an absolute url: %w", env, err)
		}
	}
	return nil
}

type WebhookConfig struct {
	SecretToken    string        `envconfig:"TECH4LOOP_WEBHOOK_SECRET_TOKEN"`
	IdempotencyTTL time.Duration `envconfig:"TECH4LOOP_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type ReportConfig struct {
	Concurrency  int `envconfig:"TECH4LOOP_REPORT_CONCURRENCY" default:"8"`
	MaxRangeDays int `envconfig:"TECH4LOOP_REPORT_MAX_RANGE_DAYS" default:"366"`
}

type StorageConfig struct {
	Bucket     string `envconfig:"TECH4LOOP_STORAGE_BUCKET" default:"tech4loop-public"`
	PublicBase string `envconfig:"TECH4LOOP_STORAGE_PUBLIC_BASE" default:"https://storage.googleapis.com"`
}

type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"TECH4LOOP_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"TECH4LOOP_RATE_LIMIT_CHECKOUT_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TECH4LOOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TECH4LOOP_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"TECH4LOOP_CRON_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TECH4LOOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TECH4LOOP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TECH4LOOP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TECH4LOOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TECH4LOOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"TECH4LOOP_PUBSUB_ORDERS_TOPIC" default:"t4l-order-events"`
	StockTopic  string `envconfig:"TECH4LOOP_PUBSUB_STOCK_TOPIC" default:"t4l-stock-events"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"TECH4LOOP_BIGQUERY_DATASET"`
	ReconciliationTable string `envconfig:"TECH4LOOP_BIGQUERY_RECONCILIATION_TABLE" default:"reconciliation_rows"`
}

// Enabled reports whether the reconciliation export has somewhere to write.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TECH4LOOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TECH4LOOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TECH4LOOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
