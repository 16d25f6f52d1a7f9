package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/event-capacity-reservation/internal/config"
)

// Open connects to the configured SQL store, verifies the connection and
// returns it together with the dialect repositories must use.
func Open(cfg config.DBConfig) (*sql.DB, Dialect, error) {
	var (
		driver string
		dsn    string
	)
	switch cfg.Driver {
	case DialectMySQL:
		auth := cfg.User
		if cfg.Pass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
		}
		port := cfg.Port
		if port == "" {
			port = "3306"
		}
		// loc=UTC keeps server-side defaults consistent; times are stored as unix millis.
		driver = "mysql"
		dsn = fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&loc=UTC", auth, cfg.Host, port, cfg.Name)
	case DialectPostgres:
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		driver = "pgx"
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, port, cfg.User, cfg.Pass, cfg.Name)
	case DialectSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, Dialect{}, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", driver, err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, Dialect{}, err
	}
	return db, Dialect{Name: cfg.Driver}, nil
}

// OpenSQLite opens a file-backed SQLite database.  SQLite allows one writer
// at a time, so the pool is pinned to a single connection; transactions then
// queue instead of failing with SQLITE_BUSY.
func OpenSQLite(path string) (*sql.DB, Dialect, error) {
	if path == "" {
		return nil, Dialect{}, fmt.Errorf("sqlite path is required")
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, Dialect{}, err
	}
	return db, Dialect{Name: DialectSQLite}, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}
