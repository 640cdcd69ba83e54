// Package store persists import batches in a single SQLite file.
package store

import (
	"context"
	"embed"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "sqlite"

// ErrNotFound indicates the store file does not exist.
var ErrNotFound = errors.New("store not found")

// Store is a handle on the SQLite file.
type Store struct {
	db   *sqlx.DB
	path string
	log  logrus.FieldLogger
}

// Open opens (creating if needed) the store at path for writing and applies
// the reference-table migrations.
func Open(ctx context.Context, path string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create store directory")
		}
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")

	db, err := sqlx.Open(driverName, "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	s := &Store{db: db, path: path, log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	// A single writer connection; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)
	return s, nil
}

// OpenReadOnly opens an existing store without write access.
func OpenReadOnly(ctx context.Context, path string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, path)
		}
		return nil, err
	}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")

	db, err := sqlx.Open(driverName, "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	return &Store{db: db, path: path, log: log}, nil
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db.DB, fsys)
	if err != nil {
		return errors.Wrap(err, "migrations")
	}
	results, err := p.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	for _, r := range results {
		s.log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("applied migration")
	}
	return nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying connection for read-only queries.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the connection.
func (s *Store) Close() error { return s.db.Close() }

// TableExists reports whether table is present.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err != nil {
		return false, errors.Wrapf(err, "lookup table %s", table)
	}
	return n > 0, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+quote(table)); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}

// Codes returns the career codes stored in carreras.
func (s *Store) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := s.db.SelectContext(ctx, &codes, `SELECT codigo FROM carreras WHERE codigo IS NOT NULL ORDER BY codigo`); err != nil {
		return nil, errors.Wrap(err, "load career codes")
	}
	return codes, nil
}
