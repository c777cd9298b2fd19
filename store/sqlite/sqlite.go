// Package sqlite is a keyword store backed by SQLite. Keywords are encrypted
// at rest; rows are keyed by an HMAC fingerprint so lookups never need the
// plaintext.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jtarchie/scrub/store"
	_ "modernc.org/sqlite"
)

// Sqlite stores encrypted keyword sets.
type Sqlite struct {
	db        *sql.DB
	encryptor *store.Encryptor
	logger    *slog.Logger
}

func init() {
	store.Register("sqlite", New)
}

// New creates a new Sqlite keyword store.
// The DSN format is: "sqlite://<path>?key=<encryption-passphrase>"
// For in-memory: "sqlite://:memory:?key=<encryption-passphrase>"
func New(dsn string, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.WithGroup("store.sqlite")

	dbPath, passphrase, err := parseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid store DSN: %w", err)
	}

	encryptor, err := store.NewEncryptor(passphrase)
	if err != nil {
		return nil, fmt.Errorf("could not create encryptor: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open keyword database: %w", err)
	}

	//nolint: noctx
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS keywords (
			set_name TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			encrypted_keyword BLOB NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (set_name, fingerprint)
		) STRICT;
	`)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("could not create keywords table: %w", err)
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	logger.Info("store.sqlite.initialized", "db", dbPath)

	return &Sqlite{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
	}, nil
}

func (s *Sqlite) Add(ctx context.Context, set string, keyword string) error {
	if keyword == "" {
		return store.ErrEmptyKeyword
	}

	set = store.SetName(set)

	encrypted, err := s.encryptor.Encrypt([]byte(keyword))
	if err != nil {
		return fmt.Errorf("could not encrypt keyword: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO keywords (set_name, fingerprint, encrypted_keyword, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(set_name, fingerprint) DO NOTHING
	`, set, s.encryptor.Fingerprint(keyword), encrypted, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("could not store keyword: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check insert result: %w", err)
	}

	s.logger.Info("keyword.added", "set", set, "new", rows > 0)

	return nil
}

func (s *Sqlite) Remove(ctx context.Context, set string, keyword string) error {
	set = store.SetName(set)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM keywords WHERE set_name = ? AND fingerprint = ?
	`, set, s.encryptor.Fingerprint(keyword))
	if err != nil {
		return fmt.Errorf("could not delete keyword: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check delete result: %w", err)
	}

	if rows == 0 {
		return store.ErrNotFound
	}

	s.logger.Info("keyword.removed", "set", set)

	return nil
}

func (s *Sqlite) List(ctx context.Context, set string) ([]string, error) {
	set = store.SetName(set)

	rows, err := s.db.QueryContext(ctx, `
		SELECT encrypted_keyword FROM keywords WHERE set_name = ?
	`, set)
	if err != nil {
		return nil, fmt.Errorf("could not query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []string

	for rows.Next() {
		var encrypted []byte

		err := rows.Scan(&encrypted)
		if err != nil {
			return nil, fmt.Errorf("could not scan keyword: %w", err)
		}

		plaintext, err := s.encryptor.Decrypt(encrypted)
		if err != nil {
			return nil, fmt.Errorf("could not decrypt keyword in set %q: %w", set, err)
		}

		keywords = append(keywords, string(plaintext))
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("could not iterate keywords: %w", err)
	}

	slices.Sort(keywords)

	return keywords, nil
}

func (s *Sqlite) Sets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT set_name FROM keywords ORDER BY set_name
	`)
	if err != nil {
		return nil, fmt.Errorf("could not query sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sets []string

	for rows.Next() {
		var name string

		err := rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("could not scan set: %w", err)
		}

		sets = append(sets, name)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("could not iterate sets: %w", err)
	}

	return sets, nil
}

func (s *Sqlite) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("could not close keyword database: %w", err)
	}

	return nil
}

var errMissingKey = errors.New("DSN must contain '?key=<passphrase>'")

// parseDSN parses a store DSN string.
// Format: "sqlite://<db-path>?key=<passphrase>"
func parseDSN(dsn string) (dbPath string, passphrase string, err error) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	parts := strings.SplitN(dsn, "?key=", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: got %q", errMissingKey, dsn)
	}

	dbPath = parts[0]
	if dbPath == "" {
		dbPath = ":memory:"
	}

	return dbPath, parts[1], nil
}
