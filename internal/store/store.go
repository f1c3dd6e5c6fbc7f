// Package store defines persistence for transcripts and correction records.
//
// The [Store] interface is public so that alternative storage backends
// (Postgres, in-memory, …) can be supplied without depending on server
// internals. Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/pkg/provider/asr"
)

// ErrNotFound is returned when a record with the requested ID does not exist.
var ErrNotFound = errors.New("record not found")

// TranscriptRecord is a stored ASR transcription result.
type TranscriptRecord struct {
	// ID is assigned by the store on save.
	ID int64 `json:"id"`

	// Text is the transcribed utterance.
	Text string `json:"text"`

	// Language is the detected or requested language label.
	Language correction.Language `json:"language"`

	// Source identifies where the audio came from (filename or upload id).
	Source string `json:"source,omitempty"`

	// Duration is the audio length in seconds, when the recognizer
	// reported one.
	Duration float64 `json:"duration,omitempty"`

	// Segments holds per-segment timestamps, when the recognizer reported
	// them. Stored as JSONB in Postgres.
	Segments []asr.Segment `json:"segments,omitempty"`

	// CreatedAt is assigned by the store on save.
	CreatedAt time.Time `json:"created_at"`
}

// CorrectionRecord is a stored correction result, flattened from a
// [correction.Result] for persistence.
type CorrectionRecord struct {
	// ID is assigned by the store on save.
	ID int64 `json:"id"`

	// OriginalText is the input exactly as received.
	OriginalText string `json:"original_text"`

	// CorrectedText is the pipeline output.
	CorrectedText string `json:"corrected_text"`

	// Language is the resolved language label.
	Language correction.Language `json:"language"`

	// Method identifies which correction sources contributed.
	Method correction.Method `json:"method"`

	// Confidence is the result's aggregate confidence score.
	Confidence float64 `json:"confidence"`

	// Changes is the ordered edit list. Stored as JSONB in Postgres.
	Changes []correction.Change `json:"changes"`

	// CreatedAt is assigned by the store on save.
	CreatedAt time.Time `json:"created_at"`
}

// NewCorrectionRecord flattens a correction result into a storable record.
// The ID and CreatedAt fields are left zero for the store to assign.
func NewCorrectionRecord(res *correction.Result) *CorrectionRecord {
	changes := res.Changes
	if changes == nil {
		changes = []correction.Change{}
	}
	return &CorrectionRecord{
		OriginalText:  res.OriginalText,
		CorrectedText: res.CorrectedText,
		Language:      res.Language,
		Method:        res.Method,
		Confidence:    res.ConfidenceScore,
		Changes:       changes,
	}
}

// ListOpts narrows and pages a listing. All non-zero fields are applied as
// AND conditions. Results are always ordered newest first.
type ListOpts struct {
	// Language restricts results to a single language label.
	// An empty value matches all languages.
	Language correction.Language

	// Limit caps the number of results returned.
	// A value of 0 applies [DefaultListLimit].
	Limit int

	// Offset skips that many records from the top of the listing.
	Offset int
}

// DefaultListLimit is applied when [ListOpts.Limit] is zero.
const DefaultListLimit = 50

// EffectiveLimit returns the limit with the default applied.
func (o ListOpts) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Store persists transcripts and correction records.
type Store interface {
	// SaveTranscript stores rec, assigning its ID and CreatedAt.
	SaveTranscript(ctx context.Context, rec *TranscriptRecord) error

	// GetTranscript returns the transcript with the given ID, or
	// [ErrNotFound].
	GetTranscript(ctx context.Context, id int64) (*TranscriptRecord, error)

	// ListTranscripts returns stored transcripts, newest first.
	ListTranscripts(ctx context.Context, opts ListOpts) ([]TranscriptRecord, error)

	// SaveCorrection stores rec, assigning its ID and CreatedAt.
	SaveCorrection(ctx context.Context, rec *CorrectionRecord) error

	// GetCorrection returns the correction record with the given ID, or
	// [ErrNotFound].
	GetCorrection(ctx context.Context, id int64) (*CorrectionRecord, error)

	// ListCorrections returns stored correction records, newest first.
	ListCorrections(ctx context.Context, opts ListOpts) ([]CorrectionRecord, error)
}
