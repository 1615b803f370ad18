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
	Finalizer    FinalizerConfig
	Pinning      PinningConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"MINTARO_APP_ENV" required:"true"`
	Port         string `envconfig:"MINTARO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MINTARO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MINTARO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MINTARO_DB_DSN"`
	Driver string `envconfig:"MINTARO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MINTARO_DB_HOST"`
	LegacyPort     int    `envconfig:"MINTARO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MINTARO_DB_USER"`
	LegacyPassword string `envconfig:"MINTARO_DB_PASSWORD"`
	LegacyName     string `envconfig:"MINTARO_DB_NAME"`
	LegacySSLMode  string `envconfig:"MINTARO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MINTARO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MINTARO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MINTARO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MINTARO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MINTARO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MINTARO_REDIS_ADDR"`
	Password     string        `envconfig:"MINTARO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MINTARO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MINTARO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MINTARO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MINTARO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MINTARO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MINTARO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// FinalizerConfig drives the auction finalization engine.
type FinalizerConfig struct {
	Interval    time.Duration `envconfig:"MINTARO_FINALIZER_INTERVAL" default:"1m"`
	ItemTimeout time.Duration `envconfig:"MINTARO_FINALIZER_ITEM_TIMEOUT" default:"10s"`
	Concurrency int           `envconfig:"MINTARO_FINALIZER_CONCURRENCY" default:"8"`
	LockTTL     time.Duration `envconfig:"MINTARO_FINALIZER_LOCK_TTL" default:"5m"`
}

// PinningConfig points at the content-addressed upload gateway.
type PinningConfig struct {
	BaseURL     string        `envconfig:"MINTARO_PINNING_BASE_URL"`
	APIKey      string        `envconfig:"MINTARO_PINNING_API_KEY"`
	APISecret   string        `envconfig:"MINTARO_PINNING_API_SECRET"`
	GatewayURL  string        `envconfig:"MINTARO_PINNING_GATEWAY_URL" default:"https://gateway.pinata.cloud/ipfs"`
	Timeout     time.Duration `envconfig:"MINTARO_PINNING_TIMEOUT" default:"30s"`
	MaxUploadMB int           `envconfig:"MINTARO_PINNING_MAX_UPLOAD_MB" default:"50"`
}

// RateLimitConfig throttles mutating API traffic per client IP.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"MINTARO_RATELIMIT_WINDOW" default:"1m"`
	PerIP  int           `envconfig:"MINTARO_RATELIMIT_PER_IP" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MINTARO_AUTO_MIGRATE" default:"false"`
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
