// Package generative implements the [correction.Rewriter] interface on top
// of an [llm.Provider].
//
// The [Rewriter] sends the rule-corrected text to the model with a
// conservative system prompt tuned for Filipino-English classroom speech and
// expects a structured JSON response containing the full rewrite and the
// model's self-reported confidence. When the response cannot be parsed the
// rewrite is reported at zero confidence, which the orchestrator treats the
// same as a discarded rewrite — a malformed model reply must never corrupt
// the rule output.
package generative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulox/pulox/internal/correction"
	llm "github.com/pulox/pulox/pkg/provider/llm"
)

const defaultTemperature = 0.1

// systemPrompt instructs the model to behave as a constrained ASR
// post-editor rather than a free-form paraphraser.
const systemPrompt = `You are a post-editor for classroom speech transcripts produced by an automatic speech recognizer.

The speakers are Filipino teachers and students who code-switch between Tagalog and English within single sentences.

Rules:
- Fix recognition errors: misheard words, missing word boundaries, wrong particles, accent-driven confusions (P/F, B/V, D/TH).
- Do NOT paraphrase, summarize, or change the meaning.
- Do NOT translate between Tagalog and English; keep each word in its spoken language.
- Be conservative: when unsure whether a word is an error, leave it unchanged.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "corrected_text": "<full corrected text>",
  "confidence": <0.0-1.0>
}

If no corrections are needed, return corrected_text equal to the input with confidence 1.0.`

// modelResponse is the expected JSON structure returned by the model.
type modelResponse struct {
	CorrectedText string  `json:"corrected_text"`
	Confidence    float64 `json:"confidence"`
}

// Option is a functional option for configuring a [Rewriter].
type Option func(*Rewriter)

// WithTemperature sets the sampling temperature. Lower values produce more
// deterministic rewrites. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(r *Rewriter) { r.temperature = temp }
}

// Rewriter proposes full-text rewrites via an [llm.Provider]. It implements
// [correction.Rewriter] and is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: construct the
// [llm.Provider] with the desired model rather than overriding per request.
type Rewriter struct {
	llm         llm.Provider
	temperature float64
}

var _ correction.Rewriter = (*Rewriter)(nil)

// New returns a Rewriter backed by provider.
func New(provider llm.Provider, opts ...Option) *Rewriter {
	r := &Rewriter{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rewrite asks the model for a corrected version of text and returns it with
// the model's self-reported confidence.
//
// An unparseable response returns the original text at zero confidence with
// a nil error; transport errors and context cancellation are returned as
// non-nil errors for the caller's fallback path.
func (r *Rewriter) Rewrite(ctx context.Context, text string, lang correction.Language, level correction.Level, hints []string) (string, float64, error) {
	if strings.TrimSpace(text) == "" {
		return text, 1.0, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  r.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: buildUserMessage(text, lang, level, hints)},
		},
	}

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return text, 0, fmt.Errorf("generative rewrite: complete: %w", err)
	}

	parsed, parseErr := parseResponse(resp.Content)
	if parseErr != nil || parsed.CorrectedText == "" {
		return text, 0, nil
	}

	conf := parsed.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return parsed.CorrectedText, conf, nil
}

// buildUserMessage frames the text with its language and aggressiveness so
// the model scopes its edits accordingly.
func buildUserMessage(text string, lang correction.Language, level correction.Level, hints []string) string {
	var sb strings.Builder

	switch lang {
	case correction.LanguageTagalog:
		sb.WriteString("Correct the following Tagalog text")
	case correction.LanguageEnglish:
		sb.WriteString("Correct the following English text")
	default:
		sb.WriteString("Correct the following Filipino-English code-switched text")
	}

	switch level {
	case correction.LevelLight:
		sb.WriteString(" (fix only obvious errors)")
	case correction.LevelAggressive:
		sb.WriteString(" (fix all errors and improve fluency)")
	}
	sb.WriteString(":\n")
	sb.WriteString(text)

	if len(hints) > 0 {
		sb.WriteString("\n\nTokens that may be misrecognized: ")
		sb.WriteString(strings.Join(hints, ", "))
	}
	return sb.String()
}

// parseResponse unmarshals the model output, stripping optional markdown
// code fences some models wrap around JSON.
func parseResponse(content string) (modelResponse, error) {
	cleaned := stripMarkdown(content)

	var r modelResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return modelResponse{}, fmt.Errorf("generative rewrite: parse response: %w", err)
	}
	return r, nil
}

func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
