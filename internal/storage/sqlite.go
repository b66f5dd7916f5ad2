package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiori/internal/models"
)

// SQLitePayloadStore implements PayloadStore with a single SQLite file.
type SQLitePayloadStore struct {
	db *sql.DB
}

// CreateSQLitePayloadStore creates (or opens) a writable store at dbPath, creating parent directories.
// The default rollback journal keeps the store a single file once closed.
func CreateSQLitePayloadStore(dbPath string) (*SQLitePayloadStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create payload directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLitePayloadStore{db: db}, nil
}

// OpenSQLitePayloadStore opens an existing store read-only. A missing file is an error.
func OpenSQLitePayloadStore(dbPath string) (*SQLitePayloadStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("payload database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open payload database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open payload database: %w", err)
	}
	return &SQLitePayloadStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS payloads (
		position INTEGER PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// WritePayloads replaces all rows in one transaction.
func (s *SQLitePayloadStore) WritePayloads(ctx context.Context, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payloads`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO payloads (position, content, metadata) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		meta := chunk.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metadataJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata of payload %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, chunk.Content, string(metadataJSON)); err != nil {
			return fmt.Errorf("insert payload %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ReadPayloads returns all payloads ordered by position. A gap in positions is reported as corruption.
func (s *SQLitePayloadStore) ReadPayloads(ctx context.Context) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position, content, metadata FROM payloads ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			pos          int
			content      string
			metadataJSON string
		)
		if err := rows.Scan(&pos, &content, &metadataJSON); err != nil {
			return nil, err
		}
		if pos != len(chunks) {
			return nil, fmt.Errorf("payload positions not contiguous: expected %d, found %d", len(chunks), pos)
		}
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
			return nil, fmt.Errorf("unmarshal metadata of payload %d: %w", pos, err)
		}
		chunks = append(chunks, models.Chunk{Content: content, Metadata: meta})
	}
	return chunks, rows.Err()
}

// CountPayloads returns the number of stored payloads.
func (s *SQLitePayloadStore) CountPayloads(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payloads`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLitePayloadStore) Close() error {
	return s.db.Close()
}
