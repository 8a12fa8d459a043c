package selection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/KaramelBytes/parish-explorer/internal/utils"
)

// PostgresStore keeps session selections in a parish_selections table.
type PostgresStore struct {
	db     *sql.DB
	schema utils.InitOnce
}

// NewPostgresStore opens dsn with the pgx driver and verifies connectivity.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	return s.schema.Do(func() error {
		_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS parish_selections (
  session_id TEXT PRIMARY KEY,
  parishes JSONB NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);`)
		return err
	})
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]string, error) {
	id, err := checkSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	var raw []byte
	err = s.db.QueryRowContext(ctx, `SELECT parishes FROM parish_selections WHERE session_id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, parishes []string) error {
	id, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if len(parishes) == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM parish_selections WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("clear selection: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(parishes)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO parish_selections (session_id, parishes, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id)
DO UPDATE SET parishes = EXCLUDED.parishes, updated_at = NOW()`, id, string(raw))
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}
