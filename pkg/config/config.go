package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	AbacatePay   AbacatePayConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BELEZAVIVA_APP_ENV" default:"dev"`
	Port         string `envconfig:"BELEZAVIVA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BELEZAVIVA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BELEZAVIVA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BELEZAVIVA_DB_DSN"`
	Driver string `envconfig:"BELEZAVIVA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BELEZAVIVA_DB_HOST"`
	Port     int    `envconfig:"BELEZAVIVA_DB_PORT" default:"5432"`
	User     string `envconfig:"BELEZAVIVA_DB_USER"`
	Password string `envconfig:"BELEZAVIVA_DB_PASSWORD"`
	Name     string `envconfig:"BELEZAVIVA_DB_NAME"`
	SSLMode  string `envconfig:"BELEZAVIVA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BELEZAVIVA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BELEZAVIVA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BELEZAVIVA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BELEZAVIVA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BELEZAVIVA_REDIS_URL"`
	Address      string        `envconfig:"BELEZAVIVA_REDIS_ADDR"`
	Password     string        `envconfig:"BELEZAVIVA_REDIS_PASSWORD"`
	DB           int           `envconfig:"BELEZAVIVA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BELEZAVIVA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BELEZAVIVA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BELEZAVIVA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BELEZAVIVA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BELEZAVIVA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AbacatePayConfig carries the provider credentials and webhook wiring.
// The env names are fixed by the deployment contract, hence no app prefix.
type AbacatePayConfig struct {
	APIKey         string        `envconfig:"ABACATEPAY_API_KEY"`
	APIURL         string        `envconfig:"ABACATEPAY_API_URL" default:"https://api.abacatepay.com"`
	WebhookSecret  string        `envconfig:"ABACATEPAY_WEBHOOK_SECRET"`
	WebhookBaseURL string        `envconfig:"WEBHOOK_BASE_URL"`
	Timeout        time.Duration `envconfig:"ABACATEPAY_TIMEOUT" default:"30s"`
}

// WebhookURL builds the callback URL registered with each charge. The shared
// secret travels as a query parameter so inbound deliveries can be
// authenticated without a signature scheme.
func (a AbacatePayConfig) WebhookURL() string {
	base := strings.TrimRight(strings.TrimSpace(a.WebhookBaseURL), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/webhook/abacatepay?webhookSecret=%s", base, url.QueryEscape(a.WebhookSecret))
}

type CheckoutConfig struct {
	PixExpiry     time.Duration `envconfig:"BELEZAVIVA_CHECKOUT_PIX_EXPIRY" default:"15m"`
	PollInterval  time.Duration `envconfig:"BELEZAVIVA_CHECKOUT_POLL_INTERVAL" default:"5s"`
	CountdownTick time.Duration `envconfig:"BELEZAVIVA_CHECKOUT_COUNTDOWN_TICK" default:"1s"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"BELEZAVIVA_CRON_INTERVAL" default:"1m"`
	LockTTL               time.Duration `envconfig:"BELEZAVIVA_CRON_LOCK_TTL" default:"5m"`
	WebhookIdempotencyTTL time.Duration `envconfig:"BELEZAVIVA_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BELEZAVIVA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for envName, value := range map[string]string{
		"BELEZAVIVA_DB_HOST": db.Host,
		"BELEZAVIVA_DB_USER": db.User,
		"BELEZAVIVA_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, envName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either BELEZAVIVA_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
