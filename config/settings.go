package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Settings struct {
	Port      string
	Env       string
	LogLevel  string
	Database  DatabaseSettings
	Redis     RedisSettings
	Inventory InventorySettings
	HTTP      HTTPSettings
}

type DatabaseSettings struct {
	Driver             string
	URL                string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SkipMigrations     bool
	StoreDriver        string
	SlowQueryThreshold time.Duration
}

type RedisSettings struct {
	Address       string
	Password      string
	DB            int
	CacheLifespan time.Duration
}

type InventorySettings struct {
	LockBackend          string
	LockTTL              time.Duration
	AllowNegativeStock   bool
	VerifyLedgerOnIngest bool
}

type HTTPSettings struct {
	CorsAllowedOrigins   []string
	PrometheusEnabled    bool
	ShutdownTimeout      time.Duration
	RateLimitEnabled     bool
	RateLimitMaxRequests int64
	RateLimitWindow      time.Duration
}

var (
	settings     *Settings
	settingsOnce sync.Once
)

// GetSettings loads settings once per process.
func GetSettings() *Settings {
	settingsOnce.Do(func() {
		settings = LoadSettings()
	})
	return settings
}

// LoadSettings reads .env (if present) and the process environment.
func LoadSettings() *Settings {
	// Load env from .env
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Settings{
		Port:     v.GetString("PORT"),
		Env:      strings.ToLower(strings.TrimSpace(v.GetString("GO_ENV"))),
		LogLevel: v.GetString("LOG_LEVEL"),
		Database: DatabaseSettings{
			Driver:             strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			URL:                strings.TrimSpace(v.GetString("DATABASE_URL")),
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSLMODE"),
			MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime:    time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_SECONDS")) * time.Second,
			ConnMaxIdleTime:    time.Duration(v.GetInt("DB_CONN_MAX_IDLE_TIME_SECONDS")) * time.Second,
			SkipMigrations:     v.GetBool("SKIP_MIGRATIONS"),
			StoreDriver:        strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			SlowQueryThreshold: time.Duration(v.GetInt("DB_SLOW_QUERY_MS")) * time.Millisecond,
		},
		Redis: RedisSettings{
			Address:       v.GetString("REDIS_ADDRESS"),
			Password:      v.GetString("REDIS_PASSWORD"),
			DB:            v.GetInt("REDIS_DB"),
			CacheLifespan: time.Duration(v.GetInt("CACHE_LIFESPAN_MINUTES")) * time.Minute,
		},
		Inventory: InventorySettings{
			LockBackend:          strings.ToLower(strings.TrimSpace(v.GetString("LOCK_BACKEND"))),
			LockTTL:              time.Duration(v.GetInt("LOCK_TTL_SECONDS")) * time.Second,
			AllowNegativeStock:   v.GetBool("ALLOW_NEGATIVE_STOCK"),
			VerifyLedgerOnIngest: v.GetBool("VERIFY_LEDGER_ON_INGEST"),
		},
		HTTP: HTTPSettings{
			CorsAllowedOrigins:   splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
			PrometheusEnabled:    v.GetBool("PROMETHEUS_ENABLED"),
			ShutdownTimeout:      time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
			RateLimitEnabled:     v.GetBool("RATE_LIMIT_ENABLED"),
			RateLimitMaxRequests: v.GetInt64("RATE_LIMIT_MAX_REQUESTS"),
			RateLimitWindow:      time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME_SECONDS", 300)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)
	v.SetDefault("DB_SLOW_QUERY_MS", 1000)
	v.SetDefault("SKIP_MIGRATIONS", false)
	v.SetDefault("STORE_DRIVER", "gorm")

	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_LIFESPAN_MINUTES", 60)

	v.SetDefault("LOCK_BACKEND", "redis")
	v.SetDefault("LOCK_TTL_SECONDS", 30)
	v.SetDefault("ALLOW_NEGATIVE_STOCK", false)
	v.SetDefault("VERIFY_LEDGER_ON_INGEST", false)

	v.SetDefault("PROMETHEUS_ENABLED", false)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 30)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 600)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
}

func (s *Settings) IsProduction() bool {
	return s.Env == "production"
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
