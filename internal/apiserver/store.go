package apiserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/a3tai/mcp-template-mapper/internal/template"
)

// ErrNotFound is returned when no template has the requested id
var ErrNotFound = errors.New("template not found")

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	file_url       TEXT,
	field_mappings TEXT NOT NULL DEFAULT '[]',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	file_data      BLOB
);
CREATE INDEX IF NOT EXISTS idx_templates_created_at ON templates(created_at);
`

// StoreConfig holds database configuration
type StoreConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// Store persists templates in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens or creates the database and applies the schema
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is empty")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	memory := cfg.Path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// Create inserts a template and returns its id and creation time
func (s *Store) Create(ctx context.Context, name, fileName, fileURL string,
	mappings []template.FieldMapping, file []byte) (int64, string, error) {
	encoded, err := encodeMappings(mappings)
	if err != nil {
		return 0, "", err
	}

	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (name, file_name, file_url, field_mappings, created_at, updated_at, file_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, fileName, nullString(fileURL), encoded, now, now, file)
	if err != nil {
		return 0, "", fmt.Errorf("insert template: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", fmt.Errorf("insert template: %w", err)
	}
	return id, now, nil
}

// Update replaces name, file name, url and mappings of a template. The file is
// replaced only when file is non-empty.
func (s *Store) Update(ctx context.Context, id int64, name, fileName, fileURL string,
	mappings []template.FieldMapping, file []byte) (string, error) {
	encoded, err := encodeMappings(mappings)
	if err != nil {
		return "", err
	}

	now := s.timestamp()
	var res sql.Result
	if len(file) > 0 {
		res, err = s.db.ExecContext(ctx, `
			UPDATE templates SET name = ?, file_name = ?, file_url = ?, field_mappings = ?, file_data = ?, updated_at = ?
			WHERE id = ?`,
			name, fileName, nullString(fileURL), encoded, file, now, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE templates SET name = ?, file_name = ?, file_url = ?, field_mappings = ?, updated_at = ?
			WHERE id = ?`,
			name, fileName, nullString(fileURL), encoded, now, id)
	}
	if err != nil {
		return "", fmt.Errorf("update template %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("update template %d: %w", id, err)
	}
	if n == 0 {
		return "", ErrNotFound
	}
	return now, nil
}

// Get returns a template with its file
func (s *Store) Get(ctx context.Context, id int64) (*template.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, file_name, file_url, field_mappings, created_at, updated_at, file_data
		FROM templates WHERE id = ?`, id)

	var (
		rec      template.Record
		fileURL  sql.NullString
		mappings string
		file     []byte
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.FileName, &fileURL, &mappings, &rec.CreatedAt, &rec.UpdatedAt, &file)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %d: %w", id, err)
	}

	rec.FileURL = fileURL.String
	if rec.FieldMappings, err = decodeMappings(mappings); err != nil {
		return nil, fmt.Errorf("get template %d: %w", id, err)
	}
	if len(file) > 0 {
		rec.FileData = template.EncodeFile(file)
	}
	return &rec, nil
}

// List returns all templates without files, newest first
func (s *Store) List(ctx context.Context) ([]template.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, file_name, file_url, field_mappings, created_at, updated_at
		FROM templates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := make([]template.Summary, 0)
	for rows.Next() {
		var (
			sum      template.Summary
			fileURL  sql.NullString
			mappings string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.FileName, &fileURL, &mappings, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		sum.FileURL = fileURL.String
		if sum.FieldMappings, err = decodeMappings(mappings); err != nil {
			return nil, fmt.Errorf("list templates: template %d: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

// Delete removes a template
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeMappings(mappings []template.FieldMapping) (string, error) {
	if mappings == nil {
		mappings = []template.FieldMapping{}
	}
	data, err := json.Marshal(mappings)
	if err != nil {
		return "", fmt.Errorf("encode field mappings: %w", err)
	}
	return string(data), nil
}

func decodeMappings(raw string) ([]template.FieldMapping, error) {
	mappings := make([]template.FieldMapping, 0)
	if raw == "" {
		return mappings, nil
	}
	if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
		return nil, fmt.Errorf("decode field mappings: %w", err)
	}
	return mappings, nil
}
