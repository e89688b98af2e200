package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openAttempts bounds connection retries on startup.
const openAttempts = 3

// Open connects to PostgreSQL or SQLite based on the DSN shape.
// DSNs starting with "file:" (or ending in .db) use SQLite, everything else PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	var dialector gorm.Dialector
	if isSQLiteDSN(dsn) {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = postgres.Open(dsn)
	}
	conn, errOpen := gorm.Open(dialector, cfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open: %w", errOpen)
	}
	if IsSQLite(conn) {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return conn, nil
}

// OpenWithRetry opens the database and pings it, retrying with exponential backoff.
func OpenWithRetry(ctx context.Context, dsn string) (*gorm.DB, error) {
	var conn *gorm.DB
	backoff := retry.WithMaxRetries(openAttempts, retry.NewExponential(500*time.Millisecond))
	errRetry := retry.Do(ctx, backoff, func(ctx context.Context) error {
		opened, errOpen := Open(dsn)
		if errOpen != nil {
			log.WithError(errOpen).Warn("db: open failed, retrying")
			return retry.RetryableError(errOpen)
		}
		if errPing := Ping(ctx, opened); errPing != nil {
			log.WithError(errPing).Warn("db: ping failed, retrying")
			Close(opened)
			return retry.RetryableError(errPing)
		}
		conn = opened
		return nil
	})
	if errRetry != nil {
		return nil, errRetry
	}
	return conn, nil
}

// Ping checks database connectivity.
func Ping(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return fmt.Errorf("db: underlying connection: %w", errDB)
	}
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		return fmt.Errorf("db: ping: %w", errPing)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}

func isSQLiteDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "file:") {
		return true
	}
	path := lower
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	return strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite")
}
