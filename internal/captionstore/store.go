package captionstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Artifacts are
// throwaway, so a mismatched database is simply rebuilt.
const schemaVersion = 1

var (
	// ErrNotFound reports an artifact ID that is not (or no longer) stored.
	ErrNotFound = errors.New("caption artifact not found")
	// ErrLocked reports a store file held by another process.
	ErrLocked = errors.New("caption store is locked by another process")
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Artifact is one stored WebVTT document.
type Artifact struct {
	ID        string
	SegmentID string
	Language  string
	Body      string
	Cues      int
	CreatedAt time.Time
}

// URL is the opaque reference handed to clip metadata.
func (a Artifact) URL() string {
	return "captions:" + a.ID + ".vtt"
}

// IDFromURL extracts the artifact ID from a URL produced by Artifact.URL.
func IDFromURL(url string) (string, bool) {
	id, ok := strings.CutPrefix(url, "captions:")
	if !ok {
		return "", false
	}
	id, ok = strings.CutSuffix(id, ".vtt")
	return id, ok && id != ""
}

// Store persists caption artifacts.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
	now  func() time.Time
}

// Open connects to the store at path, or to a private in-memory database
// when path is empty.
func Open(ctx context.Context, path string) (*Store, error) {
	ctx = ensureContext(ctx)
	store := &Store{path: path, now: time.Now}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		store.lock = flock.New(path + ".lock")
		ok, err := store.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire store lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		store.unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store.db = db
	if path == "" {
		// Every connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := store.initSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := store.execWithoutResultRetry(ctx, "DELETE FROM artifacts"); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("purge stale artifacts: %w", err)
	}
	return store, nil
}

// Path returns the database file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the file lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	s.unlock()
	return err
}

func (s *Store) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

// Put stores a new artifact for segmentID.
func (s *Store) Put(ctx context.Context, segmentID, language, body string, cues int) (Artifact, error) {
	art := Artifact{
		ID:        uuid.NewString(),
		SegmentID: segmentID,
		Language:  language,
		Body:      body,
		Cues:      cues,
		CreatedAt: s.now().UTC(),
	}
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO artifacts (id, segment_id, language, body, cues, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		art.ID, art.SegmentID, art.Language, art.Body, art.Cues, art.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("insert artifact: %w", err)
	}
	return art, nil
}

// Get loads an artifact by ID.
func (s *Store) Get(ctx context.Context, id string) (Artifact, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, segment_id, language, body, cues, created_at FROM artifacts WHERE id = ?`, id)
	art, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("get artifact: %w", err)
	}
	return art, nil
}

// Release deletes an artifact.
func (s *Store) Release(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns all stored artifacts, oldest first.
func (s *Store) List(ctx context.Context) ([]Artifact, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, segment_id, language, body, cues, created_at FROM artifacts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		art, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, art)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (Artifact, error) {
	var (
		art     Artifact
		created string
	)
	if err := row.Scan(&art.ID, &art.SegmentID, &art.Language, &art.Body, &art.Cues, &created); err != nil {
		return Artifact{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		art.CreatedAt = ts
	}
	return art, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists > 0 {
		var version int
		if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err == nil && version == schemaVersion {
			return nil
		}
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS artifacts; DROP TABLE IF EXISTS schema_version;"); err != nil {
			return fmt.Errorf("drop outdated schema: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	_, err := s.execWithRetry(ctx, query, args...)
	return err
}
