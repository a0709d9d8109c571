package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// ConnectDatabaseWithRetry connects and sets the global DB. It keeps retrying
// with exponential backoff (capped at 30s) until it succeeds or ctx is done.
func ConnectDatabaseWithRetry(ctx context.Context, s DatabaseSettings) error {
	dialector, err := dialectorFor(s)
	if err != nil {
		return err
	}

	var attempt int
	for {
		attempt++
		conn, err := gorm.Open(dialector, initConfig(s))
		if err == nil {
			if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
				if s.MaxOpenConns > 0 {
					sqlDB.SetMaxOpenConns(s.MaxOpenConns)
				}
				if s.MaxIdleConns >= 0 {
					sqlDB.SetMaxIdleConns(s.MaxIdleConns)
				}
				if s.ConnMaxLifetime > 0 {
					sqlDB.SetConnMaxLifetime(s.ConnMaxLifetime)
				}
				if s.ConnMaxIdleTime > 0 {
					sqlDB.SetConnMaxIdleTime(s.ConnMaxIdleTime)
				}
			}

			if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			db = conn
			log.Printf("connected to database (driver=%s attempt=%d)", s.Driver, attempt)
			return nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func dialectorFor(s DatabaseSettings) (gorm.Dialector, error) {
	switch s.Driver {
	case "", "postgres", "postgresql":
		return postgres.New(postgres.Config{
			DriverName:           "postgres",
			DSN:                  postgresDSN(s),
			PreferSimpleProtocol: true,
		}), nil
	case "mysql":
		return mysql.Open(mysqlDSN(s)), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", s.Driver)
	}
}

// postgresDSN prefers DATABASE_URL (the hosted Supabase connection string).
func postgresDSN(s DatabaseSettings) string {
	if s.URL != "" {
		return s.URL
	}
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Name, sslMode)
}

func mysqlDSN(s DatabaseSettings) string {
	if s.URL != "" {
		return strings.TrimPrefix(s.URL, "mysql://")
	}
	network := "tcp"
	address := fmt.Sprintf("%s:%s", s.Host, s.Port)
	if strings.HasPrefix(s.Host, "/cloudsql/") {
		network = "unix"
		address = s.Host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		s.User, s.Password, network, address, s.Name)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig(s DatabaseSettings) *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(s.SlowQueryThreshold),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog(slow time.Duration) logger.Interface {
	if slow <= 0 {
		slow = time.Second
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: slow,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
