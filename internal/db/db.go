// internal/db/db.go
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/novelmovie/novelmovie/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes the connection.
type Options struct {
	Debug bool
}

// Open connects to databaseURL.
//
//	postgres://... or postgresql://...  -> Postgres
//	sqlite://path, file:..., :memory:   -> SQLite
func Open(databaseURL string, opts ...Options) (*gorm.DB, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	dialector, memory, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if o.Debug {
		level = logger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return conn, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), false, nil
	case databaseURL == ":memory:":
		return sqlite.Open("file::memory:?_foreign_keys=on"), true, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return nil, false, fmt.Errorf("sqlite url has no path: %q", databaseURL)
		}
		if path == ":memory:" {
			return sqlite.Open("file::memory:?_foreign_keys=on"), true, nil
		}
		return sqlite.Open(path + "?_foreign_keys=on&_busy_timeout=5000"), false, nil
	case strings.HasPrefix(databaseURL, "file:"):
		return sqlite.Open(databaseURL), strings.Contains(databaseURL, "memory"), nil
	default:
		return nil, false, fmt.Errorf("unsupported database url: %q", databaseURL)
	}
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	for _, model := range models.All() {
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return nil
}

// Ping checks the connection.
func Ping(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the pool.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenTest returns a migrated in-memory database.
func OpenTest() (*gorm.DB, error) {
	conn, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}
