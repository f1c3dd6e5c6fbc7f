package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/store"
	"github.com/pulox/pulox/pkg/provider/asr"
)

func TestMemStore_TranscriptRoundTrip(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	rec := &store.TranscriptRecord{
		Text:     "Ano ba yung assignment natin",
		Language: correction.LanguageTagalog,
		Source:   "lecture-01.wav",
		Duration: 3.1,
		Segments: []asr.Segment{
			{Start: 0, End: 1.5, Text: "Ano ba"},
			{Start: 1.5, End: 3.1, Text: "yung assignment natin"},
		},
	}

	if err := st.SaveTranscript(t.Context(), rec); err != nil {
		t.Fatalf("SaveTranscript returned error: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected SaveTranscript to assign an ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected SaveTranscript to assign CreatedAt")
	}

	got, err := st.GetTranscript(t.Context(), rec.ID)
	if err != nil {
		t.Fatalf("GetTranscript returned error: %v", err)
	}
	if got.Text != rec.Text {
		t.Errorf("expected text %q, got %q", rec.Text, got.Text)
	}
	if got.Language != correction.LanguageTagalog {
		t.Errorf("expected language %q, got %q", correction.LanguageTagalog, got.Language)
	}
	if got.Source != "lecture-01.wav" {
		t.Errorf("expected source %q, got %q", "lecture-01.wav", got.Source)
	}
	if got.Duration != 3.1 {
		t.Errorf("expected duration 3.1, got %v", got.Duration)
	}
	if len(got.Segments) != 2 || got.Segments[0].Text != "Ano ba" {
		t.Errorf("expected segments round-tripped, got %+v", got.Segments)
	}
}

func TestMemStore_GetTranscript_NotFound(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	if _, err := st.GetTranscript(t.Context(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_CorrectionRoundTrip(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	res := &correction.Result{
		OriginalText:    "dis is gud",
		CorrectedText:   "This is good",
		Language:        correction.LanguageEnglish,
		Method:          correction.MethodRules,
		ConfidenceScore: 1.0,
		Changes: []correction.Change{
			{Original: "dis", Corrected: "This", Type: correction.ErrorSpelling, Confidence: 1.0},
			{Original: "gud", Corrected: "good", Type: correction.ErrorSpelling, Confidence: 1.0},
		},
	}

	rec := store.NewCorrectionRecord(res)
	if err := st.SaveCorrection(t.Context(), rec); err != nil {
		t.Fatalf("SaveCorrection returned error: %v", err)
	}

	got, err := st.GetCorrection(t.Context(), rec.ID)
	if err != nil {
		t.Fatalf("GetCorrection returned error: %v", err)
	}
	if got.CorrectedText != "This is good" {
		t.Errorf("expected corrected text %q, got %q", "This is good", got.CorrectedText)
	}
	if len(got.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got.Changes))
	}
	if got.Changes[0].Original != "dis" {
		t.Errorf("expected first change original %q, got %q", "dis", got.Changes[0].Original)
	}
	if got.Method != correction.MethodRules {
		t.Errorf("expected method %q, got %q", correction.MethodRules, got.Method)
	}
}

func TestMemStore_GetCorrection_NotFound(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	if _, err := st.GetCorrection(t.Context(), 7); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	for i := 0; i < 3; i++ {
		rec := &store.TranscriptRecord{Text: fmt.Sprintf("utterance %d", i)}
		if err := st.SaveTranscript(t.Context(), rec); err != nil {
			t.Fatalf("SaveTranscript returned error: %v", err)
		}
	}

	records, err := st.ListTranscripts(t.Context(), store.ListOpts{})
	if err != nil {
		t.Fatalf("ListTranscripts returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Text != "utterance 2" {
		t.Errorf("expected newest record first, got %q", records[0].Text)
	}
	if records[2].Text != "utterance 0" {
		t.Errorf("expected oldest record last, got %q", records[2].Text)
	}
}

func TestMemStore_ListLimitAndOffset(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	for i := 0; i < 5; i++ {
		rec := &store.TranscriptRecord{Text: fmt.Sprintf("utterance %d", i)}
		if err := st.SaveTranscript(t.Context(), rec); err != nil {
			t.Fatalf("SaveTranscript returned error: %v", err)
		}
	}

	records, err := st.ListTranscripts(t.Context(), store.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListTranscripts returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Text != "utterance 3" {
		t.Errorf("expected offset to skip newest record, got %q", records[0].Text)
	}

	empty, err := st.ListTranscripts(t.Context(), store.ListOpts{Offset: 50})
	if err != nil {
		t.Fatalf("ListTranscripts returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty result for out-of-range offset, got %d records", len(empty))
	}
}

func TestMemStore_ListFiltersByLanguage(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	languages := []correction.Language{
		correction.LanguageEnglish,
		correction.LanguageTagalog,
		correction.LanguageEnglish,
	}
	for i, lang := range languages {
		rec := &store.CorrectionRecord{
			OriginalText:  fmt.Sprintf("text %d", i),
			CorrectedText: fmt.Sprintf("text %d", i),
			Language:      lang,
			Changes:       []correction.Change{},
		}
		if err := st.SaveCorrection(t.Context(), rec); err != nil {
			t.Fatalf("SaveCorrection returned error: %v", err)
		}
	}

	records, err := st.ListCorrections(t.Context(), store.ListOpts{Language: correction.LanguageEnglish})
	if err != nil {
		t.Fatalf("ListCorrections returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 english records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Language != correction.LanguageEnglish {
			t.Errorf("expected only english records, got %q", rec.Language)
		}
	}
}

func TestNewCorrectionRecord_NilChanges(t *testing.T) {
	t.Parallel()

	rec := store.NewCorrectionRecord(&correction.Result{
		OriginalText:  "ok",
		CorrectedText: "ok",
	})
	if rec.Changes == nil {
		t.Error("expected non-nil change slice")
	}
	if len(rec.Changes) != 0 {
		t.Errorf("expected empty change slice, got %d", len(rec.Changes))
	}
}
