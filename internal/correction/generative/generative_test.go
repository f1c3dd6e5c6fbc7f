package generative_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/correction/generative"
	llm "github.com/pulox/pulox/pkg/provider/llm"
	"github.com/pulox/pulox/pkg/provider/llm/mock"
)

func TestRewriter_ParsesResponse(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "ito ang tamang sagot", "confidence": 0.92}`,
		},
	}
	r := generative.New(p)

	text, conf, err := r.Rewrite(context.Background(), "ito ang tamag sagot",
		correction.LanguageTagalog, correction.LevelStandard, nil)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if text != "ito ang tamang sagot" {
		t.Errorf("rewrite = %q", text)
	}
	if conf != 0.92 {
		t.Errorf("confidence = %v, want 0.92", conf)
	}
}

func TestRewriter_StripsCodeFences(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"corrected_text\": \"the answer is correct\", \"confidence\": 0.8}\n```",
		},
	}
	r := generative.New(p)

	text, conf, err := r.Rewrite(context.Background(), "da answer is correct",
		correction.LanguageEnglish, correction.LevelStandard, nil)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if text != "the answer is correct" || conf != 0.8 {
		t.Errorf("got (%q, %v)", text, conf)
	}
}

func TestRewriter_UnparseableResponse(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "sorry, I cannot do that"},
	}
	r := generative.New(p)

	text, conf, err := r.Rewrite(context.Background(), "ang input na ito",
		correction.LanguageTagalog, correction.LevelStandard, nil)
	if err != nil {
		t.Fatalf("Rewrite returned error for unparseable response: %v", err)
	}
	if text != "ang input na ito" {
		t.Errorf("text = %q, want original unchanged", text)
	}
	if conf != 0 {
		t.Errorf("confidence = %v, want 0 for unparseable response", conf)
	}
}

func TestRewriter_TransportError(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("connection refused")}
	r := generative.New(p)

	text, conf, err := r.Rewrite(context.Background(), "ang input",
		correction.LanguageMixed, correction.LevelStandard, nil)
	if err == nil {
		t.Fatal("Rewrite did not surface transport error")
	}
	if text != "ang input" || conf != 0 {
		t.Errorf("got (%q, %v), want original at zero confidence", text, conf)
	}
}

func TestRewriter_PromptShape(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "ok", "confidence": 1.0}`,
		},
	}
	r := generative.New(p, generative.WithTemperature(0.3))

	_, _, err := r.Rewrite(context.Background(), "ang teksto",
		correction.LanguageTagalog, correction.LevelAggressive, []string{"teksto"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", req.Temperature)
	}
	if req.SystemPrompt == "" {
		t.Error("system prompt missing")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v, want a single user message", req.Messages)
	}
	user := req.Messages[0].Content
	if !strings.Contains(user, "Tagalog text") {
		t.Errorf("user message %q does not name the language", user)
	}
	if !strings.Contains(user, "improve fluency") {
		t.Errorf("user message %q does not carry the aggressive qualifier", user)
	}
	if !strings.Contains(user, "teksto") {
		t.Errorf("user message %q does not carry the hint tokens", user)
	}
}

func TestRewriter_EmptyInput(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	r := generative.New(p)

	text, conf, err := r.Rewrite(context.Background(), "  ",
		correction.LanguageMixed, correction.LevelStandard, nil)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if text != "  " || conf != 1.0 {
		t.Errorf("got (%q, %v), want input at confidence 1.0", text, conf)
	}
	if len(p.CompleteCalls) != 0 {
		t.Errorf("Complete called %d times for empty input, want 0", len(p.CompleteCalls))
	}
}

func TestRewriter_ConfidenceClamped(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "ok", "confidence": 1.7}`,
		},
	}
	r := generative.New(p)

	_, conf, err := r.Rewrite(context.Background(), "input",
		correction.LanguageEnglish, correction.LevelLight, nil)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if conf != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", conf)
	}
}
