package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Archive persists every committed callback payload to Postgres as a
// deployment audit trail. Delivery correctness never depends on it: archive
// failures are logged by the dispatcher and otherwise ignored.
type Archive struct {
	pool *pgxpool.Pool
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS callback_reports (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT        NOT NULL,
	total_messages INT        NOT NULL,
	intelligence  JSONB       NOT NULL,
	agent_notes   TEXT        NOT NULL,
	reported_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewArchive connects to databaseURL and ensures the reports table exists.
func NewArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect report archive: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure callback_reports table: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// Insert stores one payload row.
func (a *Archive) Insert(ctx context.Context, p Payload) error {
	intelJSON, err := json.Marshal(p.ExtractedIntelligence)
	if err != nil {
		return fmt.Errorf("encode intelligence: %w", err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO callback_reports (session_id, total_messages, intelligence, agent_notes)
		 VALUES ($1, $2, $3, $4)`,
		p.SessionID, p.TotalMessagesExchanged, intelJSON, p.AgentNotes,
	)
	if err != nil {
		return fmt.Errorf("insert callback report: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	if a != nil && a.pool != nil {
		a.pool.Close()
	}
}
