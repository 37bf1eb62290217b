package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// dbType is the active backend, "postgres" or "sqlite"
var dbType string

// Connect establishes the connection using DB_TYPE semantics: postgres
// with a DSN, or a local sqlite file for development.
func Connect(typ, postgresDSN, sqlitePath string) error {
	switch typ {
	case "postgres":
		if postgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
		return Open("postgres", postgresDSN)
	case "sqlite", "":
		if dir := filepath.Dir(sqlitePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %v", err)
			}
		}
		return Open("sqlite3", sqlitePath)
	default:
		return fmt.Errorf("unknown DB_TYPE %q", typ)
	}
}

// Open connects with an explicit driver and DSN. Exposed so tests can run
// against sqlite :memory:.
func Open(driver, dsn string) error {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if driver == "sqlite3" {
		dbType = "sqlite"
		// Enable foreign keys
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %v", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		dbType = "postgres"
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	DB = db
	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// Type returns the active backend name
func Type() string {
	return dbType
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	// Тип автоинкремента зависит от базы
	idCol := "BIGSERIAL PRIMARY KEY"
	floatCol := "DOUBLE PRECISION"
	if dbType == "sqlite" {
		idCol = "INTEGER PRIMARY KEY AUTOINCREMENT"
		floatCol = "REAL"
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS attempts (
			id %s,
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			grade TEXT NOT NULL,
			correctness %s NOT NULL,
			confidence %s NOT NULL DEFAULT 0,
			idempotency_key TEXT NOT NULL,
			probability %s NOT NULL,
			status_bucket TEXT NOT NULL,
			interval_days INTEGER NOT NULL,
			next_review_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(idempotency_key)
		)`, idCol, floatCol, floatCol, floatCol),
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_item ON attempts(user_id, item_id)`,

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS mastery_edges (
			id %s,
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			probability %s NOT NULL DEFAULT 0,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, item_id)
		)`, idCol, floatCol),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS review_schedules (
			id %s,
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			interval_days INTEGER NOT NULL DEFAULT 1,
			ease_factor %s NOT NULL DEFAULT 2.5,
			last_grade TEXT NOT NULL DEFAULT '',
			next_review_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, item_id)
		)`, idCol, floatCol),
		`CREATE INDEX IF NOT EXISTS idx_schedules_user_due ON review_schedules(user_id, next_review_date)`,

		`CREATE TABLE IF NOT EXISTS notification_channels (
			user_id TEXT PRIMARY KEY,
			telegram_chat_id BIGINT NOT NULL,
			notify_hour INTEGER NOT NULL DEFAULT 9,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %v", err)
		}
	}
	return nil
}
