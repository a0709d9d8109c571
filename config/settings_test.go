package config

import (
	"testing"
	"time"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOCK_BACKEND", "")

	s := LoadSettings()
	if s.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", s.Port)
	}
	if s.Inventory.LockTTL != 30*time.Second {
		t.Fatalf("expected lock ttl 30s, got %s", s.Inventory.LockTTL)
	}
	if s.Inventory.AllowNegativeStock {
		t.Fatalf("negative stock must be disabled by default")
	}
	if s.Redis.CacheLifespan != time.Hour {
		t.Fatalf("expected cache lifespan 1h, got %s", s.Redis.CacheLifespan)
	}
}

func TestLoadSettings_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GO_ENV", " Production ")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("LOCK_BACKEND", "local")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("VERIFY_LEDGER_ON_INGEST", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	s := LoadSettings()
	if s.Port != "9090" {
		t.Fatalf("port: got %q", s.Port)
	}
	if !s.IsProduction() {
		t.Fatalf("expected production env, got %q", s.Env)
	}
	if s.Database.Driver != "mysql" || s.Database.MaxOpenConns != 7 {
		t.Fatalf("database settings: %+v", s.Database)
	}
	if s.Inventory.LockBackend != "local" || !s.Inventory.AllowNegativeStock || !s.Inventory.VerifyLedgerOnIngest {
		t.Fatalf("inventory settings: %+v", s.Inventory)
	}
	if len(s.HTTP.CorsAllowedOrigins) != 2 || s.HTTP.CorsAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins: %v", s.HTTP.CorsAllowedOrigins)
	}
}

func TestDSNs(t *testing.T) {
	pg := postgresDSN(DatabaseSettings{Host: "db", Port: "5432", User: "u", Password: "p", Name: "erp"})
	if pg != "host=db port=5432 user=u password=p dbname=erp sslmode=disable" {
		t.Fatalf("postgres dsn: %s", pg)
	}
	if got := postgresDSN(DatabaseSettings{URL: "postgres://x@y/z"}); got != "postgres://x@y/z" {
		t.Fatalf("postgres url dsn: %s", got)
	}
	my := mysqlDSN(DatabaseSettings{Host: "/cloudsql/p:r:i", User: "u", Password: "p", Name: "erp"})
	if my != "u:p@unix(/cloudsql/p:r:i)/erp?multiStatements=true&parseTime=true" {
		t.Fatalf("mysql dsn: %s", my)
	}
	if _, err := dialectorFor(DatabaseSettings{Driver: "oracle"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
