package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"travelkit/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	// DriverPgx talks to PostgreSQL through pgx's database/sql shim.
	DriverPgx   Driver = "pgx"
	DriverMySQL Driver = "mysql"
)

// Drivers lists every driver New accepts.
var Drivers = []Driver{DriverPostgres, DriverPgx, DriverMySQL}

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"TRAVELKIT_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" yaml:"dsn" env:"TRAVELKIT_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"TRAVELKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"TRAVELKIT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// AutoMigrate creates the tables on connect when they do not exist.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" env:"TRAVELKIT_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns pool defaults for driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Store implements engine.Storage on PostgreSQL (lib/pq or pgx) or MySQL.
// Tables:
// - traveler_stats (user_id, stat, value, updated_at)
// - traveler_visits (user_id, destination_id, visited_at)
// - traveler_profiles (user_id, verified, budget_range, favorite_types, updated_at)
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New connects, applies pool settings and optionally migrates.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if !slices.Contains(Drivers, cfg.Driver) {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS traveler_stats (
		user_id VARCHAR(191) NOT NULL,
		stat VARCHAR(64) NOT NULL,
		value BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, stat)
	)`,
	`CREATE TABLE IF NOT EXISTS traveler_visits (
		user_id VARCHAR(191) NOT NULL,
		destination_id VARCHAR(191) NOT NULL,
		visited_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, destination_id)
	)`,
	`CREATE TABLE IF NOT EXISTS traveler_profiles (
		user_id VARCHAR(191) NOT NULL PRIMARY KEY,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		budget_range VARCHAR(16) NOT NULL DEFAULT '',
		favorite_types TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// Migrate creates the tables. The DDL is valid for both supported drivers.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type statRow struct {
	Stat  string `db:"stat"`
	Value int64  `db:"value"`
}

type profileRow struct {
	Verified      bool   `db:"verified"`
	BudgetRange   string `db:"budget_range"`
	FavoriteTypes string `db:"favorite_types"`
}

func (s *Store) GetSnapshot(ctx context.Context, user core.UserID) (core.ActivitySnapshot, error) {
	snap := core.NewSnapshot(user)

	var stats []statRow
	if err := s.db.SelectContext(ctx, &stats, s.db.Rebind(`SELECT stat, value FROM traveler_stats WHERE user_id = ?`), user); err != nil {
		return core.ActivitySnapshot{}, fmt.Errorf("select stats: %w", err)
	}
	for _, r := range stats {
		snap.Stats.Set(core.Stat(r.Stat), r.Value)
	}

	var visits []string
	if err := s.db.SelectContext(ctx, &visits, s.db.Rebind(`SELECT destination_id FROM traveler_visits WHERE user_id = ? ORDER BY visited_at, destination_id`), user); err != nil {
		return core.ActivitySnapshot{}, fmt.Errorf("select visits: %w", err)
	}
	snap.VisitedDestinationIDs = append(snap.VisitedDestinationIDs, visits...)

	var prof profileRow
	err := s.db.GetContext(ctx, &prof, s.db.Rebind(`SELECT verified, budget_range, favorite_types FROM traveler_profiles WHERE user_id = ?`), user)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return core.ActivitySnapshot{}, fmt.Errorf("select profile: %w", err)
	default:
		snap.Verified = prof.Verified
		snap.Preferences.BudgetRange = core.BudgetRange(prof.BudgetRange)
		if prof.FavoriteTypes != "" {
			if err := json.Unmarshal([]byte(prof.FavoriteTypes), &snap.Preferences.FavoriteTypes); err != nil {
				return core.ActivitySnapshot{}, fmt.Errorf("decode favorite types: %w", err)
			}
		}
	}
	return snap, nil
}

// IncrementStat adds delta in a single upsert, so concurrent first writes for a
// counter sum instead of colliding on the primary key.
func (s *Store) IncrementStat(ctx context.Context, user core.UserID, stat core.Stat, delta int64) (int64, error) {
	upsert := `INSERT INTO traveler_stats (user_id, stat, value, updated_at) VALUES (?, ?, ?, ?)` +
		s.onConflict("user_id, stat",
			"value = traveler_stats.value + "+s.excluded("value"),
			"updated_at = "+s.excluded("updated_at"))
	now := time.Now().UTC()

	var total int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if s.driver != DriverMySQL {
			return tx.GetContext(ctx, &total, tx.Rebind(upsert+` RETURNING value`), user, stat, delta, now)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(upsert), user, stat, delta, now); err != nil {
			return err
		}
		return tx.GetContext(ctx, &total, tx.Rebind(`SELECT value FROM traveler_stats WHERE user_id = ? AND stat = ?`), user, stat)
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", stat, err)
	}
	return total, nil
}

// AddVisit inserts the visit unless it is already recorded; added reports whether a
// row was written.
func (s *Store) AddVisit(ctx context.Context, user core.UserID, destinationID string) (bool, error) {
	insert := `INSERT INTO traveler_visits (user_id, destination_id, visited_at) VALUES (?, ?, ?)`
	if s.driver == DriverMySQL {
		insert += ` ON DUPLICATE KEY UPDATE user_id = user_id`
	} else {
		insert += ` ON CONFLICT (user_id, destination_id) DO NOTHING`
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(insert), user, destinationID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("add visit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add visit: %w", err)
	}
	return n == 1, nil
}

func (s *Store) SetVerified(ctx context.Context, user core.UserID, verified bool) error {
	return s.upsertProfile(ctx, user, profileRow{Verified: verified, FavoriteTypes: "[]"}, "verified")
}

func (s *Store) SetPreferences(ctx context.Context, user core.UserID, prefs core.Preferences) error {
	types, err := encodeTypes(prefs.FavoriteTypes)
	if err != nil {
		return err
	}
	return s.upsertProfile(ctx, user,
		profileRow{BudgetRange: string(prefs.BudgetRange), FavoriteTypes: types},
		"budget_range", "favorite_types")
}

// upsertProfile inserts p as a new profile row, or overwrites only cols (and
// updated_at) when the row exists.
func (s *Store) upsertProfile(ctx context.Context, user core.UserID, p profileRow, cols ...string) error {
	set := make([]string, 0, len(cols)+1)
	for _, c := range append(cols, "updated_at") {
		set = append(set, c+" = "+s.excluded(c))
	}
	stmt := `INSERT INTO traveler_profiles (user_id, verified, budget_range, favorite_types, updated_at) VALUES (?, ?, ?, ?, ?)` +
		s.onConflict("user_id", set...)
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(stmt), user, p.Verified, p.BudgetRange, p.FavoriteTypes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// onConflict renders the dialect's upsert clause for a conflict on keys.
func (s *Store) onConflict(keys string, set ...string) string {
	if s.driver == DriverMySQL {
		return ` ON DUPLICATE KEY UPDATE ` + strings.Join(set, ", ")
	}
	return ` ON CONFLICT (` + keys + `) DO UPDATE SET ` + strings.Join(set, ", ")
}

// excluded refers to the value the conflicting insert proposed for col.
func (s *Store) excluded(col string) string {
	if s.driver == DriverMySQL {
		return `VALUES(` + col + `)`
	}
	return `EXCLUDED.` + col
}

// SaveSnapshot replaces all rows of the user in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap core.ActivitySnapshot) error {
	user := snap.UserID
	types, err := encodeTypes(snap.Preferences.FavoriteTypes)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"traveler_stats", "traveler_visits", "traveler_profiles"} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE user_id = ?`), user); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		for _, st := range core.AllStats {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO traveler_stats (user_id, stat, value, updated_at) VALUES (?, ?, ?, ?)`), user, st, snap.Stats.Get(st), now); err != nil {
				return err
			}
		}
		for _, id := range snap.VisitedDestinationIDs {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO traveler_visits (user_id, destination_id, visited_at) VALUES (?, ?, ?)`), user, id, now); err != nil {
				return err
			}
		}
		return insertProfile(ctx, tx, user, profileRow{
			Verified:      snap.Verified,
			BudgetRange:   string(snap.Preferences.BudgetRange),
			FavoriteTypes: types,
		}, now)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func insertProfile(ctx context.Context, tx *sqlx.Tx, user core.UserID, p profileRow, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO traveler_profiles (user_id, verified, budget_range, favorite_types, updated_at) VALUES (?, ?, ?, ?, ?)`),
		user, p.Verified, p.BudgetRange, p.FavoriteTypes, now)
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func encodeTypes(types []string) (string, error) {
	if types == nil {
		types = []string{}
	}
	b, err := json.Marshal(types)
	if err != nil {
		return "", fmt.Errorf("encode favorite types: %w", err)
	}
	return string(b), nil
}
