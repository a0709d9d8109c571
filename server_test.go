package main

import (
	"context"
	"testing"

	"github.com/matcon/erp_backend/config"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/workflow"
	"github.com/sirupsen/logrus"
)

func TestCorsConfig(t *testing.T) {
	dev := &config.Settings{Env: "development"}
	if cfg := corsConfig(dev); !cfg.AllowAllOrigins {
		t.Fatalf("expected all origins outside production")
	}

	prod := &config.Settings{Env: "production"}
	cfg := corsConfig(prod)
	if cfg.AllowAllOrigins || cfg.AllowOrigins == nil || len(cfg.AllowOrigins) != 0 {
		t.Fatalf("expected deny-all in production without allowlist, got %+v", cfg.AllowOrigins)
	}

	prod.HTTP.CorsAllowedOrigins = []string{"https://erp.example.com"}
	if cfg := corsConfig(prod); len(cfg.AllowOrigins) != 1 {
		t.Fatalf("expected allowlist to be used, got %+v", cfg.AllowOrigins)
	}
}

func TestItemLockerSelection(t *testing.T) {
	s := &config.Settings{}
	s.Inventory.LockBackend = "local"
	locker, err := itemLocker(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := locker.(*workflow.LocalItemLocker); !ok {
		t.Fatalf("expected local locker, got %T", locker)
	}

	s.Inventory.LockBackend = "zookeeper"
	if _, err := itemLocker(s); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNeedsRedis(t *testing.T) {
	s := &config.Settings{}
	s.Database.StoreDriver = "memory"
	s.Inventory.LockBackend = "local"
	if needsRedis(s) {
		t.Fatalf("memory store with local locks should not need redis")
	}
	s.HTTP.RateLimitEnabled = true
	if !needsRedis(s) {
		t.Fatalf("rate limiting needs redis")
	}
}

func TestOpenMemoryStore(t *testing.T) {
	s := &config.Settings{}
	s.Database.StoreDriver = "memory"
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, release, err := openStore(context.Background(), s, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release()
	if _, ok := store.(*models.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	s.Database.StoreDriver = "cassandra"
	if _, _, err := openStore(context.Background(), s, logger); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
