package exportsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crewsheet/internal/csvexport"
)

// Postgres keeps the latest export of each kind per session.
type Postgres struct {
	db     *sql.DB
	schema execer

	mu       sync.Mutex
	migrated bool
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const schemaTimeout = 10 * time.Second

const schemaDDL = `
CREATE TABLE IF NOT EXISTS timesheet_exports (
    id SERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    row_count INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(session_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_timesheet_exports_session ON timesheet_exports(session_id);
`

// OpenPostgres opens dsn with the pgx driver.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, schema: db}
}

// ensureSchema creates the table once. A failed attempt is retried on the
// next call. The DDL does not inherit the caller's cancellation, so a
// dropped request cannot leave the table half-checked.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	if p == nil || p.schema == nil {
		return fmt.Errorf("db is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.migrated {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaTimeout)
	defer cancel()
	if _, err := p.schema.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	p.migrated = true
	return nil
}

func (p *Postgres) Write(ctx context.Context, sessionID string, doc csvexport.Document) (string, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return "", &IOError{Sink: "postgres", Kind: doc.Kind, Err: err}
	}
	sessionID = strings.TrimSpace(sessionID)
	_, err := p.db.ExecContext(ctx, `
INSERT INTO timesheet_exports (session_id, kind, content, row_count, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, kind)
DO UPDATE SET content=EXCLUDED.content, row_count=EXCLUDED.row_count, updated_at=EXCLUDED.updated_at
`, sessionID, string(doc.Kind), doc.Text, doc.Rows, time.Now())
	if err != nil {
		return "", &IOError{Sink: "postgres", Kind: doc.Kind, Err: err}
	}
	return "postgres:timesheet_exports/" + objectKey(sessionID, doc.Kind), nil
}

func (p *Postgres) Read(ctx context.Context, sessionID string, kind csvexport.Kind) (string, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return "", err
	}
	var content string
	err := p.db.QueryRowContext(ctx,
		`SELECT content FROM timesheet_exports WHERE session_id = $1 AND kind = $2`,
		strings.TrimSpace(sessionID), string(kind),
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
