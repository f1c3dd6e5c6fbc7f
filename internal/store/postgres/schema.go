// Package postgres provides a PostgreSQL-backed implementation of
// [store.Store] using a single [pgxpool.Pool].
//
// [Migrate] is idempotent and safe to call on every application start.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveCorrection(ctx, store.NewCorrectionRecord(res))
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id          BIGSERIAL    PRIMARY KEY,
    text        TEXT         NOT NULL,
    language    TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL DEFAULT '',
    duration    DOUBLE PRECISION NOT NULL DEFAULT 0,
    segments    JSONB        NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at
    ON transcripts (created_at);

CREATE INDEX IF NOT EXISTS idx_transcripts_language
    ON transcripts (language);
`

const ddlCorrections = `
CREATE TABLE IF NOT EXISTS corrections (
    id              BIGSERIAL    PRIMARY KEY,
    original_text   TEXT         NOT NULL,
    corrected_text  TEXT         NOT NULL,
    language        TEXT         NOT NULL DEFAULT '',
    method          TEXT         NOT NULL DEFAULT '',
    confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
    changes         JSONB        NOT NULL DEFAULT '[]',
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_corrections_created_at
    ON corrections (created_at);

CREATE INDEX IF NOT EXISTS idx_corrections_language
    ON corrections (language);
`

// Migrate creates or ensures all required database tables exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlTranscripts,
		ddlCorrections,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
