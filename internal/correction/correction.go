// Package correction implements the hybrid error-correction engine for
// Filipino-English code-switched classroom transcripts.
//
// Raw ASR output for Philippine classroom lectures carries a recognisable
// error profile: concatenated Tagalog particles ("commustaka" for "kumusta
// ka"), phonetic confusions driven by the Filipino accent (P/F, V/B, D/TH),
// and the usual punctuation and capitalization noise. The [Corrector] applies
// a layered correction strategy:
//
//  1. Deterministic rules ([RuleEngine]): word-splitting, lexical
//     substitution, and ordered pattern rules gated by the detected language.
//     Runs in-process with no network calls.
//
//  2. Generative rewrite ([Rewriter]): a text-to-text model proposes a full
//     rewrite which is merged only when its confidence clears the configured
//     threshold. Token-level diffing converts the rewrite into itemised
//     change records so nothing enters the output untracked.
//
// Every [Change] carries its error category, confidence, and a human-readable
// description, so callers can audit, display, or selectively roll back edits.
//
// The engine is stateless across calls: rule tables and lexicons are built
// once ([DefaultLexicon]) and shared read-only, so a single [Corrector] is
// safe for concurrent use.
package correction

import (
	"context"
	"encoding/json"
	"math"
	"time"
)

// Language is the coarse language label attached to a text segment.
type Language string

const (
	// LanguageEnglish marks predominantly English text.
	LanguageEnglish Language = "en"

	// LanguageTagalog marks predominantly Tagalog text.
	LanguageTagalog Language = "tl"

	// LanguageMixed marks code-switched text where neither language clearly
	// dominates. Mixed is the neutral default for empty or ambiguous input.
	LanguageMixed Language = "mixed"
)

// IsValid reports whether l is a recognised language label.
func (l Language) IsValid() bool {
	switch l {
	case LanguageEnglish, LanguageTagalog, LanguageMixed:
		return true
	}
	return false
}

// Applicability declares which detected language a pattern rule targets.
type Applicability string

const (
	AppliesEnglish Applicability = "en"
	AppliesTagalog Applicability = "tl"
	AppliesBoth    Applicability = "both"
)

// Level controls correction aggressiveness.
type Level string

const (
	// LevelLight fixes only obvious errors.
	LevelLight Level = "light"

	// LevelStandard is the balanced default.
	LevelStandard Level = "standard"

	// LevelAggressive fixes all errors and improves fluency.
	LevelAggressive Level = "aggressive"
)

// IsValid reports whether lv is a recognised correction level.
func (lv Level) IsValid() bool {
	switch lv {
	case LevelLight, LevelStandard, LevelAggressive:
		return true
	}
	return false
}

// Method identifies which correction sources contributed to a [Result].
type Method string

const (
	// MethodRules means only the deterministic rule engine contributed.
	MethodRules Method = "rules"

	// MethodGenerative means only the generative rewrite contributed.
	MethodGenerative Method = "generative"

	// MethodHybrid means both sources contributed edits.
	MethodHybrid Method = "hybrid"

	// MethodManual marks a correction submitted by a human reviewer rather
	// than produced by the pipeline.
	MethodManual Method = "manual"
)

// ErrorType categorises a single correction. Categories are assigned at the
// point each rule or lexicon entry is defined, never inferred afterwards from
// description text.
type ErrorType string

const (
	ErrorSpelling       ErrorType = "spelling"
	ErrorGrammar        ErrorType = "grammar"
	ErrorPunctuation    ErrorType = "punctuation"
	ErrorCapitalization ErrorType = "capitalization"
	ErrorWordChoice     ErrorType = "word_choice"
	ErrorPhonetic       ErrorType = "phonetic"
	ErrorCodeSwitch     ErrorType = "code_switch"
)

// Change records a single edit made during one correction pass.
// Original may be empty for insertions; Corrected may be empty for deletions.
// A Change is immutable once created.
type Change struct {
	// Original is the affected span as it appeared before the edit.
	Original string `json:"original"`

	// Corrected is the replacement span.
	Corrected string `json:"corrected"`

	// Type is the error category, tagged at rule definition time.
	Type ErrorType `json:"error_type"`

	// Confidence is the engine's confidence in this edit (0.0–1.0).
	// Deterministic rule edits carry 1.0; generative edits carry less.
	Confidence float64 `json:"confidence"`

	// Description is a human-readable account of the edit.
	Description string `json:"description"`
}

// Summary holds aggregate statistics over a result's change list.
type Summary struct {
	TotalChanges      int               `json:"total_changes"`
	ByType            map[ErrorType]int `json:"by_type"`
	AverageConfidence float64           `json:"average_confidence"`
}

// Result is the output of one [Corrector.Correct] call. It is never mutated
// after return and is safe to serialize and to share across goroutines.
type Result struct {
	// OriginalText is the input exactly as received.
	OriginalText string

	// CorrectedText is the terminal output of the full pipeline.
	CorrectedText string

	// Changes is the ordered list of edits applied to produce CorrectedText.
	// An empty (non-nil) slice means no corrections were necessary.
	Changes []Change

	// ConfidenceScore is the arithmetic mean of all change confidences, or
	// 1.0 when the output equals the input with no recorded changes.
	ConfidenceScore float64

	// Method identifies which correction sources actually contributed.
	Method Method

	// Language is the resolved language label for this text.
	Language Language

	// ProcessingTime is the wall-clock duration of the correction call.
	ProcessingTime time.Duration
}

// Summary computes aggregate statistics over the change list.
func (r *Result) Summary() Summary {
	if len(r.Changes) == 0 {
		return Summary{ByType: map[ErrorType]int{}, AverageConfidence: 1.0}
	}
	byType := make(map[ErrorType]int, len(r.Changes))
	var sum float64
	for _, c := range r.Changes {
		byType[c.Type]++
		sum += c.Confidence
	}
	return Summary{
		TotalChanges:      len(r.Changes),
		ByType:            byType,
		AverageConfidence: round3(sum / float64(len(r.Changes))),
	}
}

// resultJSON is the wire shape of a Result at persistence and API boundaries.
type resultJSON struct {
	OriginalText    string   `json:"original_text"`
	CorrectedText   string   `json:"corrected_text"`
	Changes         []Change `json:"changes"`
	ConfidenceScore float64  `json:"confidence_score"`
	Method          Method   `json:"method"`
	Language        Language `json:"language"`
	ProcessingTime  float64  `json:"processing_time"`
	Summary         Summary  `json:"summary"`
}

// MarshalJSON serializes the result with processing time in seconds and an
// embedded change summary.
func (r *Result) MarshalJSON() ([]byte, error) {
	changes := r.Changes
	if changes == nil {
		changes = []Change{}
	}
	return json.Marshal(resultJSON{
		OriginalText:    r.OriginalText,
		CorrectedText:   r.CorrectedText,
		Changes:         changes,
		ConfidenceScore: r.ConfidenceScore,
		Method:          r.Method,
		Language:        r.Language,
		ProcessingTime:  r.ProcessingTime.Seconds(),
		Summary:         r.Summary(),
	})
}

// UnmarshalJSON restores a Result from its wire shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var rj resultJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	*r = Result{
		OriginalText:    rj.OriginalText,
		CorrectedText:   rj.CorrectedText,
		Changes:         rj.Changes,
		ConfidenceScore: rj.ConfidenceScore,
		Method:          rj.Method,
		Language:        rj.Language,
		ProcessingTime:  time.Duration(rj.ProcessingTime * float64(time.Second)),
	}
	return nil
}

// DefaultMinGenerativeConfidence is the rewrite-merge threshold used when a
// [Config] does not set one.
const DefaultMinGenerativeConfidence = 0.7

// Config controls a single correction call. The zero value normalizes to the
// standard level with both sources enabled.
type Config struct {
	// Level selects correction aggressiveness. Unrecognised values fall back
	// to LevelStandard.
	Level Level

	// UseRules enables the deterministic rule engine.
	UseRules bool

	// UseGenerative enables the generative rewrite pass when a [Rewriter] is
	// configured on the corrector.
	UseGenerative bool

	// LanguageHint skips auto-detection when set to a valid label.
	// Unrecognised values fall back to auto-detection.
	LanguageHint Language

	// MinGenerativeConfidence is the confidence below which a generative
	// rewrite is discarded. Values outside (0, 1] fall back to
	// [DefaultMinGenerativeConfidence].
	MinGenerativeConfidence float64
}

// DefaultConfig returns the standard correction configuration: balanced
// level, rules and generative enabled, auto-detected language.
func DefaultConfig() Config {
	return Config{
		Level:                   LevelStandard,
		UseRules:                true,
		UseGenerative:           true,
		MinGenerativeConfidence: DefaultMinGenerativeConfidence,
	}
}

// Rewriter is the generative collaborator: a black-box text-to-text function
// that proposes a full rewrite of text together with a scalar confidence.
//
// hints lists tokens the caller flagged as likely mishearings; implementations
// may surface them to the model as candidate spans. Implementations must be
// safe for concurrent use and must respect context cancellation.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, lang Language, level Level, hints []string) (rewrite string, confidence float64, err error)
}

// round3 rounds v to three decimal places for stable serialized output.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
