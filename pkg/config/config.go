package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "meridian"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "MERIDIAN_DB_DSN"
	EnvDBHost = "MERIDIAN_DB_HOST"
	EnvDBUser = "MERIDIAN_DB_USER"
	EnvDBName = "MERIDIAN_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Webhook      WebhookConfig
	Disbursement DisbursementConfig
	Pricing      PricingConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"MERIDIAN_APP_ENV" required:"true"`
	Port         string        `envconfig:"MERIDIAN_APP_PORT" default:"8080"`
	LogLevel     string        `envconfig:"MERIDIAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool          `envconfig:"MERIDIAN_LOG_WARN_STACK" default:"false"`
	CronInterval time.Duration `envconfig:"MERIDIAN_CRON_INTERVAL" default:"10m"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERIDIAN_DB_DSN"`
	Driver string `envconfig:"MERIDIAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERIDIAN_DB_HOST"`
	LegacyPort     int    `envconfig:"MERIDIAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERIDIAN_DB_USER"`
	LegacyPassword string `envconfig:"MERIDIAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERIDIAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERIDIAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERIDIAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERIDIAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERIDIAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERIDIAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERIDIAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MERIDIAN_REDIS_ADDR"`
	Password     string        `envconfig:"MERIDIAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERIDIAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERIDIAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERIDIAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERIDIAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERIDIAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERIDIAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig tunes the outbound payment rail adapter.
type GatewayConfig struct {
	Kind           string        `envconfig:"MERIDIAN_GATEWAY_KIND" default:"sandbox"`
	BaseURL        string        `envconfig:"MERIDIAN_GATEWAY_BASE_URL"`
	APIKey         string        `envconfig:"MERIDIAN_GATEWAY_API_KEY"`
	SubmitTimeout  time.Duration `envconfig:"MERIDIAN_GATEWAY_SUBMIT_TIMEOUT" default:"30s"`
	StatusTimeout  time.Duration `envconfig:"MERIDIAN_GATEWAY_STATUS_TIMEOUT" default:"10s"`
	SandboxFailure string        `envconfig:"MERIDIAN_GATEWAY_SANDBOX_FAILURE"`
}

// WebhookConfig tunes outbound event delivery.
type WebhookConfig struct {
	AttemptTimeout  time.Duration `envconfig:"MERIDIAN_WEBHOOK_ATTEMPT_TIMEOUT" default:"60s"`
	MaxAttempts     int           `envconfig:"MERIDIAN_WEBHOOK_MAX_ATTEMPTS" default:"5"`
	BackoffBaseMins int           `envconfig:"MERIDIAN_WEBHOOK_BACKOFF_BASE_MINUTES" default:"5"`
	BackoffCapMins  int           `envconfig:"MERIDIAN_WEBHOOK_BACKOFF_CAP_MINUTES" default:"60"`
	DispatchBatch   int           `envconfig:"MERIDIAN_WEBHOOK_DISPATCH_BATCH" default:"25"`
	PollInterval    time.Duration `envconfig:"MERIDIAN_WEBHOOK_POLL_INTERVAL" default:"5s"`
}

// DisbursementConfig tunes the settlement processor.
type DisbursementConfig struct {
	RunTimeout    time.Duration   `envconfig:"MERIDIAN_DISBURSEMENT_RUN_TIMEOUT" default:"300s"`
	MaxAttempts   int             `envconfig:"MERIDIAN_DISBURSEMENT_MAX_ATTEMPTS" default:"3"`
	Backoff       []time.Duration `envconfig:"MERIDIAN_DISBURSEMENT_BACKOFF" default:"30s,60s,120s"`
	ClaimBatch    int             `envconfig:"MERIDIAN_DISBURSEMENT_CLAIM_BATCH" default:"20"`
	PollInterval  time.Duration   `envconfig:"MERIDIAN_DISBURSEMENT_POLL_INTERVAL" default:"5s"`
	StaleAfter    time.Duration   `envconfig:"MERIDIAN_DISBURSEMENT_STALE_AFTER" default:"15m"`
	WalletRetries int             `envconfig:"MERIDIAN_DISBURSEMENT_WALLET_RETRIES" default:"3"`
}

// PricingConfig carries the default fee schedule. Rates are expressed as decimal
// strings so no float ever reaches a money calculation.
type PricingConfig struct {
	ProcessingRate    string `envconfig:"MERIDIAN_PRICING_PROCESSING_RATE" default:"0.029"`
	ProcessingFixed   int64  `envconfig:"MERIDIAN_PRICING_PROCESSING_FIXED" default:"30"`
	MinFee            int64  `envconfig:"MERIDIAN_PRICING_MIN_FEE" default:"50"`
	MaxFee            int64  `envconfig:"MERIDIAN_PRICING_MAX_FEE" default:"0"`
	ApplicationRate   string `envconfig:"MERIDIAN_PRICING_APPLICATION_RATE" default:"0.01"`
	ApplicationFixed  int64  `envconfig:"MERIDIAN_PRICING_APPLICATION_FIXED" default:"0"`
	ActualGatewayCost int64  `envconfig:"MERIDIAN_PRICING_ACTUAL_GATEWAY_COST" default:"0"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MERIDIAN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MERIDIAN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MERIDIAN_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MERIDIAN_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MERIDIAN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MERIDIAN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"MERIDIAN_PUBSUB_DOMAIN_TOPIC" default:"meridian-domain-events"`
	DomainSubscription string `envconfig:"MERIDIAN_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERIDIAN_AUTO_MIGRATE" default:"false"`
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
