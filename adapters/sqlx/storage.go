package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ratekit/core"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `json:"auto_migrate" yaml:"auto_migrate"`
}

// DefaultConfig returns defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	if driver == DriverSQLite {
		cfg.DSN = "file:ratekit.db?_pragma=journal_mode(WAL)"
		// sqlite serialises writers; one connection avoids SQLITE_BUSY
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Table holds one row per key with a typed value column.
const Table = "ratekit_prefs"

const schema = `CREATE TABLE IF NOT EXISTS ratekit_prefs (
	pref_key VARCHAR(191) NOT NULL PRIMARY KEY,
	int_value BIGINT NULL,
	bool_value BOOLEAN NULL,
	updated_at TIMESTAMP NOT NULL
)`

// Store implements engine.Store on a SQL table via sqlx.
type Store struct {
	db     *sqlx.DB
	driver Driver
	now    func() time.Time
}

// New opens a connection pool and, when configured, creates the table.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sql config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// Migrate creates the preferences table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create %s: %w", Table, err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	var v sql.NullInt64
	q := s.db.Rebind(`SELECT int_value FROM ratekit_prefs WHERE pref_key = ?`)
	if err := s.db.GetContext(ctx, &v, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v.Int64, v.Valid, nil
}

func (s *Store) GetBool(ctx context.Context, key string) (bool, bool, error) {
	var v sql.NullBool
	q := s.db.Rebind(`SELECT bool_value FROM ratekit_prefs WHERE pref_key = ?`)
	if err := s.db.GetContext(ctx, &v, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v.Bool, v.Valid, nil
}

// Commit applies the batch in one transaction.
func (s *Store) Commit(ctx context.Context, batch *core.Batch) error {
	muts := batch.Mutations()
	if len(muts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	for _, m := range muts {
		if err := s.apply(ctx, tx, m, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sqlx.Tx, m core.Mutation, now time.Time) error {
	if m.Remove {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ratekit_prefs WHERE pref_key = ?`), m.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", m.Key, err)
		}
		return nil
	}

	var intVal sql.NullInt64
	var boolVal sql.NullBool
	switch v := m.Value.(type) {
	case int64:
		intVal = sql.NullInt64{Int64: v, Valid: true}
	case bool:
		boolVal = sql.NullBool{Bool: v, Valid: true}
	default:
		return fmt.Errorf("unsupported value type %T for key %q", m.Value, m.Key)
	}

	// portable upsert: dialects disagree on ON CONFLICT syntax
	var exists bool
	q := tx.Rebind(`SELECT EXISTS(SELECT 1 FROM ratekit_prefs WHERE pref_key = ?)`)
	if err := tx.GetContext(ctx, &exists, q, m.Key); err != nil {
		return fmt.Errorf("failed to check %s: %w", m.Key, err)
	}
	if exists {
		q = tx.Rebind(`UPDATE ratekit_prefs SET int_value = ?, bool_value = ?, updated_at = ? WHERE pref_key = ?`)
		if _, err := tx.ExecContext(ctx, q, intVal, boolVal, now, m.Key); err != nil {
			return fmt.Errorf("failed to update %s: %w", m.Key, err)
		}
		return nil
	}
	q = tx.Rebind(`INSERT INTO ratekit_prefs (pref_key, int_value, bool_value, updated_at) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, q, m.Key, intVal, boolVal, now); err != nil {
		return fmt.Errorf("failed to insert %s: %w", m.Key, err)
	}
	return nil
}
