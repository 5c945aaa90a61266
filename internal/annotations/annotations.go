// Package annotations persists reviewer notes attached to workspace files.
// Notes survive across sessions in a SQLite database under .lingua/ and are
// surfaced to the editor as diagnostics and hover content.
package annotations

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Severity mirrors diagnostic severities so annotations map onto them 1:1.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
	SeverityHint    Severity = 4
)

// Annotation is one persisted note on a file location. Path is always
// workspace-relative with forward slashes; Line is zero-based.
type Annotation struct {
	ID        string
	Path      string
	Line      int
	Severity  Severity
	Message   string
	Author    string
	CreatedAt time.Time
}

// Store wraps the annotation database.
type Store struct {
	db *sql.DB
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrations are applied in order starting from version 0.
// IMPORTANT: Never modify existing migrations, only add new ones.
var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func migrateV0(tx *sql.Tx) error {
	schema := `
CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    line INTEGER NOT NULL,
    severity INTEGER NOT NULL DEFAULT 3,
    message TEXT NOT NULL,
    author TEXT DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_annotations_path ON annotations(path);
`
	_, err := tx.ExecContext(context.Background(), schema)
	return err
}

// Open opens (or creates) the annotation database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open annotation db: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store (used by tests).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open annotation db: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initDB(db *sql.DB) error {
	if _, err := db.ExecContext(context.Background(), schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for i := currentVersion + 1; i < len(migrations); i++ {
		if err := runMigration(db, i); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := migrations[version](tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(context.Background(), "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add inserts an annotation, assigning an id and timestamp when absent.
func (s *Store) Add(ctx context.Context, a Annotation) (Annotation, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Severity == 0 {
		a.Severity = SeverityInfo
	}
	a.Path = filepath.ToSlash(a.Path)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO annotations (id, path, line, severity, message, author, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.Path, a.Line, int(a.Severity), a.Message, a.Author, a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return Annotation{}, fmt.Errorf("insert annotation: %w", err)
	}
	return a, nil
}

// ForPath returns the annotations on one file, ordered by line.
func (s *Store) ForPath(ctx context.Context, path string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, path, line, severity, message, author, created_at FROM annotations WHERE path = ? ORDER BY line, created_at",
		filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

// All returns every annotation grouped by file path.
func (s *Store) All(ctx context.Context) (map[string][]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, path, line, severity, message, author, created_at FROM annotations ORDER BY path, line, created_at")
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	list, err := scanAnnotations(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Annotation)
	for _, a := range list {
		out[a.Path] = append(out[a.Path], a)
	}
	return out, nil
}

// Remove deletes an annotation by id. Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM annotations WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	return nil
}

// ClearPath deletes every annotation on one file.
func (s *Store) ClearPath(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM annotations WHERE path = ?", filepath.ToSlash(path)); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	return nil
}

func scanAnnotations(rows *sql.Rows) ([]Annotation, error) {
	var out []Annotation
	for rows.Next() {
		var a Annotation
		var severity int
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Path, &a.Line, &severity, &a.Message, &a.Author, &createdAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.Severity = Severity(severity)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
