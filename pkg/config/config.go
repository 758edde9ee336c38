package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SETTLD_DB_DSN"
	EnvDBHost = "SETTLD_DB_HOST"
	EnvDBUser = "SETTLD_DB_USER"
	EnvDBName = "SETTLD_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       JWTConfig
	Settlement SettlementConfig
	Cron       CronConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
	RateLimit  RateLimitConfig
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
	Env          string `envconfig:"SETTLD_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SETTLD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SETTLD_DB_DSN"`

	LegacyHost     string `envconfig:"SETTLD_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLD_DB_USER"`
	LegacyPassword string `envconfig:"SETTLD_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLD_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLD_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"SETTLD_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SETTLD_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLD_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the platform auth service.
// Minting here is limited to dev tooling and tests.
type JWTConfig struct {
	Secret            string `envconfig:"SETTLD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SETTLD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SETTLD_JWT_EXP_MINS" default:"60"`
}

// SettlementConfig carries the monetary policy knobs.
type SettlementConfig struct {
	// Holding period between payment confirmation and clearance for
	// prepaid orders. Cash-on-delivery entries clear on the delivery
	// milestone instead.
	PrepaidClearancePeriod time.Duration `envconfig:"SETTLD_CLEARANCE_PREPAID" default:"72h"`
	// Default minimum withdrawal for wallets without an explicit override.
	MinWithdrawalCents int64 `envconfig:"SETTLD_MIN_WITHDRAWAL_CENTS" default:"10000"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SETTLD_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"SETTLD_CRON_LOCK_TTL" default:"20m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SETTLD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SETTLD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SETTLD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic          string `envconfig:"SETTLD_PUBSUB_SETTLEMENT_TOPIC" default:"settlement-events"`
	NotificationSubscription string `envconfig:"SETTLD_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type RateLimitConfig struct {
	PayoutWindow      time.Duration `envconfig:"SETTLD_RL_PAYOUT_WINDOW" default:"1m"`
	PayoutIPLimit     int           `envconfig:"SETTLD_RL_PAYOUT_IP_LIMIT" default:"30"`
	PayoutVendorLimit int           `envconfig:"SETTLD_RL_PAYOUT_VENDOR_LIMIT" default:"10"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SETTLD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SETTLD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SETTLD_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
