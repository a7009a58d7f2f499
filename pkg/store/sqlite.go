package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bortok/ixvscripts/pkg/snapshot"
	"github.com/bortok/ixvscripts/pkg/util"
)

//go:embed schema.sql
var schemaSQL string

const sqliteSchemaVersion = 1

// SQLite keeps one row per host in a local database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting schema version: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(ctx context.Context, host string, snap *snapshot.Snapshot) error {
	enc, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (host, compact, pretty, objects, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			compact = excluded.compact,
			pretty = excluded.pretty,
			objects = excluded.objects,
			saved_at = excluded.saved_at`,
		util.SanitizeHost(host), enc.compact, enc.pretty, snap.Len(),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", host, err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, host string) (*snapshot.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT compact FROM snapshots WHERE host = ?`, util.SanitizeHost(host)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(host)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", host, err)
	}
	return decode(host, data)
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host FROM snapshots ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// SavedAt reports when a host's snapshot was last written.
func (s *SQLite) SavedAt(ctx context.Context, host string) (time.Time, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT saved_at FROM snapshots WHERE host = ?`, util.SanitizeHost(host)).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, notFound(host)
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, ts)
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
