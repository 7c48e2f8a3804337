package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	appLog "teamcal/internal/log"
	"teamcal/internal/model"
)

// SQLite keeps every collection as JSON documents in a single table.
type SQLite struct {
	db  *sql.DB
	hub hub
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// Writers are serialized on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	appLog.Info("store: sqlite opened", "path", path)
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        collection TEXT NOT NULL,
        id TEXT NOT NULL,
        body TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (collection, id)
    );
    `
	_, err := db.Exec(schema)
	return err
}

func (s *SQLite) Subscribe(collection, orderBy string, fn Listener) (func(), error) {
	return s.hub.subscribe(collection, orderBy, fn, s.List)
}

func (s *SQLite) Create(ctx context.Context, collection string, fields model.Fields) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	id, body := splitID(fields)
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", collection, err)
	}

	query := `
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		return "", fmt.Errorf("create %s record: %w", collection, err)
	}

	s.hub.notify(ctx, collection, s.List)
	return id, nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, fields model.Fields) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	doc, err := decodeBody(raw)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	_, body := splitID(fields)
	for k, v := range body {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?`,
		string(merged), collection, id,
	); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.hub.notify(ctx, collection, s.List)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}

	s.hub.notify(ctx, collection, s.List)
	return nil
}

func (s *SQLite) List(ctx context.Context, collection, orderBy string) ([]Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		doc, err := decodeBody(raw)
		if err != nil {
			appLog.Warn("store: skipping unreadable document", "collection", collection, "id", id, "reason", err.Error())
			continue
		}
		recs = append(recs, Record{ID: id, Fields: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	sortRecords(recs, orderBy)
	return recs, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// decodeBody keeps numbers as json.Number so integer ids and epoch millis
// survive the round trip.
func decodeBody(raw string) (model.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	doc := model.Fields{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
