package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hedgeTracker/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.WorkspaceRepository and ports.PairRepository
// interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance and makes sure the
// schema exists.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/hedge_tracker.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Data directory checked/created", map[string]interface{}{"path": filepath.Dir(dbPath)})

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers; SQLite would otherwise return SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := NewWithDB(db, cfg.Logger)

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// NewWithDB wraps an already opened database. The schema is not touched.
func NewWithDB(db *sql.DB, logger ports.Logger) *Repository {
	return &Repository{db: db, logger: logger, now: time.Now}
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS workspaces (
		username TEXT PRIMARY KEY,
		monthly_volume_target REAL NOT NULL,
		starting_equity REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hedge_pairs (
		id TEXT NOT NULL,
		username TEXT NOT NULL,
		pair_date TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		a_external_id TEXT NOT NULL DEFAULT '',
		a_open_price REAL NOT NULL DEFAULT 0,
		a_close_price REAL NOT NULL DEFAULT 0,
		a_open_time TIMESTAMP NULL,
		a_close_time TIMESTAMP NULL,
		a_quantity REAL NOT NULL DEFAULT 0,
		a_coin TEXT NOT NULL DEFAULT '',
		a_fee REAL NOT NULL DEFAULT 0,
		a_pnl REAL NOT NULL DEFAULT 0,
		a_leverage REAL NOT NULL DEFAULT 0,
		b_external_id TEXT NOT NULL DEFAULT '',
		b_open_price REAL NOT NULL DEFAULT 0,
		b_close_price REAL NOT NULL DEFAULT 0,
		b_open_time TIMESTAMP NULL,
		b_close_time TIMESTAMP NULL,
		b_quantity REAL NOT NULL DEFAULT 0,
		b_coin TEXT NOT NULL DEFAULT '',
		b_fee REAL NOT NULL DEFAULT 0,
		b_pnl REAL NOT NULL DEFAULT 0,
		b_leverage REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (username, id)
	);
	CREATE INDEX IF NOT EXISTS idx_hedge_pairs_username_date ON hedge_pairs (username, pair_date);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
