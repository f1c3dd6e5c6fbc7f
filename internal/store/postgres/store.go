package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/store"
	"github.com/pulox/pulox/pkg/provider/asr"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [store.Store]. It holds a single
// [pgxpool.Pool]. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs [Migrate] to ensure all required
// tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveTranscript implements [store.Store].
func (s *Store) SaveTranscript(ctx context.Context, rec *store.TranscriptRecord) error {
	const q = `
		INSERT INTO transcripts (text, language, source, duration, segments)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	// A nil slice would serialize as JSON null rather than an empty array.
	segments := rec.Segments
	if segments == nil {
		segments = []asr.Segment{}
	}

	err := s.pool.QueryRow(ctx, q, rec.Text, rec.Language, rec.Source, rec.Duration, segments).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres store: save transcript: %w", err)
	}
	return nil
}

// GetTranscript implements [store.Store].
func (s *Store) GetTranscript(ctx context.Context, id int64) (*store.TranscriptRecord, error) {
	const q = `
		SELECT id, text, language, source, duration, segments, created_at
		FROM   transcripts
		WHERE  id = $1`

	var rec store.TranscriptRecord
	err := s.pool.QueryRow(ctx, q, id).
		Scan(&rec.ID, &rec.Text, &rec.Language, &rec.Source, &rec.Duration, &rec.Segments, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get transcript: %w", err)
	}
	return &rec, nil
}

// ListTranscripts implements [store.Store].
func (s *Store) ListTranscripts(ctx context.Context, opts store.ListOpts) ([]store.TranscriptRecord, error) {
	q, args := listQuery(
		"SELECT id, text, language, source, duration, segments, created_at\nFROM   transcripts",
		opts,
	)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcripts: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.TranscriptRecord, error) {
		var rec store.TranscriptRecord
		err := row.Scan(&rec.ID, &rec.Text, &rec.Language, &rec.Source, &rec.Duration, &rec.Segments, &rec.CreatedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan transcripts: %w", err)
	}
	if records == nil {
		records = []store.TranscriptRecord{}
	}
	return records, nil
}

// SaveCorrection implements [store.Store]. The change list is stored as JSONB.
func (s *Store) SaveCorrection(ctx context.Context, rec *store.CorrectionRecord) error {
	const q = `
		INSERT INTO corrections
		    (original_text, corrected_text, language, method, confidence, changes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	// A nil slice would serialize as JSON null rather than an empty array.
	changes := rec.Changes
	if changes == nil {
		changes = []correction.Change{}
	}

	err := s.pool.QueryRow(ctx, q,
		rec.OriginalText,
		rec.CorrectedText,
		rec.Language,
		rec.Method,
		rec.Confidence,
		changes,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres store: save correction: %w", err)
	}
	return nil
}

// GetCorrection implements [store.Store].
func (s *Store) GetCorrection(ctx context.Context, id int64) (*store.CorrectionRecord, error) {
	const q = `
		SELECT id, original_text, corrected_text, language, method, confidence, changes, created_at
		FROM   corrections
		WHERE  id = $1`

	var rec store.CorrectionRecord
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&rec.ID,
		&rec.OriginalText,
		&rec.CorrectedText,
		&rec.Language,
		&rec.Method,
		&rec.Confidence,
		&rec.Changes,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get correction: %w", err)
	}
	return &rec, nil
}

// ListCorrections implements [store.Store].
func (s *Store) ListCorrections(ctx context.Context, opts store.ListOpts) ([]store.CorrectionRecord, error) {
	q, args := listQuery(
		"SELECT id, original_text, corrected_text, language, method, confidence, changes, created_at\nFROM   corrections",
		opts,
	)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list corrections: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.CorrectionRecord, error) {
		var rec store.CorrectionRecord
		err := row.Scan(
			&rec.ID,
			&rec.OriginalText,
			&rec.CorrectedText,
			&rec.Language,
			&rec.Method,
			&rec.Confidence,
			&rec.Changes,
			&rec.CreatedAt,
		)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan corrections: %w", err)
	}
	if records == nil {
		records = []store.CorrectionRecord{}
	}
	return records, nil
}

// listQuery builds a listing query from the shared SELECT prefix and opts.
func listQuery(selectStmt string, opts store.ListOpts) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Language != "" {
		conditions = append(conditions, "language = "+next(opts.Language))
	}

	q := selectStmt
	if len(conditions) > 0 {
		q += "\nWHERE  " + strings.Join(conditions, "\n  AND  ")
	}
	q += "\nORDER  BY created_at DESC, id DESC"
	q += fmt.Sprintf("\nLIMIT %s OFFSET %s", next(opts.EffectiveLimit()), next(opts.Offset))
	return q, args
}
