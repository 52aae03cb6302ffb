// Package sqlite implements a SQLite-backed submission store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/storage"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store persists submissions in SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = &Store{}

// New opens the database named by the configuration.
func New(cfg config.Storage) (storage.Store, error) {
	return Open(cfg.Path)
}

// Open opens a SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add implements storage.Store.
func (s *Store) Add(sub *storage.Submission) (string, error) {
	ctx := context.Background()
	created := sub.Created
	if created.IsZero() {
		created = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (form, created_at) VALUES (?, ?)`,
		sub.Form, created.UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert submission: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	for _, f := range sub.Fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submission_fields (submission_id, name, value, rank) VALUES (?, ?, ?, ?)`,
			rowID, f.Name, f.Value, f.Rank); err != nil {
			return "", fmt.Errorf("insert field %q: %w", f.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	sub.ID = strconv.FormatInt(rowID, 10)
	return sub.ID, nil
}

// Get implements storage.Store.
func (s *Store) Get(id string) (*storage.Submission, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, storage.ErrNotExist
	}
	sub := &storage.Submission{ID: id}
	var created int64
	err = s.db.QueryRow(`SELECT form, created_at FROM submissions WHERE id = ?`, rowID).
		Scan(&sub.Form, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	sub.Created = time.UnixMilli(created).UTC()
	if sub.Fields, err = s.fields(rowID); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListForm implements storage.Store.
func (s *Store) ListForm(formName string) ([]*storage.Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at FROM submissions WHERE form = ? ORDER BY id`, formName)
	if err != nil {
		return nil, err
	}
	var subs []*storage.Submission
	var ids []int64
	for rows.Next() {
		var rowID, created int64
		if err := rows.Scan(&rowID, &created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, rowID)
		subs = append(subs, &storage.Submission{
			ID:      strconv.FormatInt(rowID, 10),
			Form:    formName,
			Created: time.UnixMilli(created).UTC(),
		})
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, rowID := range ids {
		if subs[i].Fields, err = s.fields(rowID); err != nil {
			return nil, err
		}
	}
	if subs == nil {
		subs = []*storage.Submission{}
	}
	return subs, nil
}

// Remove implements storage.Store.
func (s *Store) Remove(id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return storage.ErrNotExist
	}
	res, err := s.db.Exec(`DELETE FROM submissions WHERE id = ?`, rowID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotExist
	}
	return nil
}

func (s *Store) fields(rowID int64) ([]storage.Field, error) {
	rows, err := s.db.Query(
		`SELECT name, value, rank FROM submission_fields WHERE submission_id = ? ORDER BY rank`,
		rowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fields []storage.Field
	for rows.Next() {
		var f storage.Field
		if err := rows.Scan(&f.Name, &f.Value, &f.Rank); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
