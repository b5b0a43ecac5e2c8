// Package repo is the GORM persistence layer. Postgres (Supabase) backs
// production; the pure-Go SQLite driver backs local runs and tests.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// Open connects to the configured driver ("postgres" or "sqlite") and
// installs the OpenTelemetry GORM plugin.
func Open(driver, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "postgres":
		db, err = OpenPostgres(dsn)
	case "sqlite":
		db, err = OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}
	return db, nil
}

type pool struct {
	maxOpen, maxIdle  int
	idleTime, maxLife time.Duration
}

var (
	postgresPool = pool{maxOpen: 20, maxIdle: 10, idleTime: 5 * time.Minute, maxLife: 30 * time.Minute}
	sqlitePool   = pool{maxOpen: 10, maxIdle: 10, idleTime: 5 * time.Minute, maxLife: 30 * time.Minute}
)

func (p pool) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.maxLife)
	return nil
}

// OpenPostgres connects through pgx. Supabase poolers sit in front of the
// database, so the local pool stays small.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return db, postgresPool.apply(db)
}

// sqlitePragmas trade a little durability for concurrency; offers and pledges
// are re-verifiable against the processor. They go in the DSN so the driver
// applies them to every pooled connection, not just the first.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func sqliteDSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	return b.String()
}

// OpenSQLite opens or creates the database file. The parent directory must
// exist; the driver's own error for that case is misleading.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return db, sqlitePool.apply(db)
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Profile{},
		&domain.Offer{},
		&domain.CrowdfundingProject{},
		&domain.CrowdfundingPledge{},
		&domain.CrowdfundingNotification{},
		&domain.DirectMessage{},
		&domain.Post{},
		&domain.PaymentEvent{},
		&domain.Idempotency{},
	)
}
