package correction_test

import (
	"testing"

	"github.com/pulox/pulox/internal/correction"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want correction.Language
	}{
		{
			name: "english sentence",
			text: "this is the lesson that we will discuss",
			want: correction.LanguageEnglish,
		},
		{
			name: "tagalog sentence",
			text: "kumusta po ang mga bata sa inyong klase",
			want: correction.LanguageTagalog,
		},
		{
			name: "tagalog with technical term is mixed",
			text: "magandang umaga po. ito ay tungkol sa punction",
			want: correction.LanguageMixed,
		},
		{
			name: "balanced marker counts",
			text: "ang lesson is the best at pero it was fun sa atin",
			want: correction.LanguageMixed,
		},
		{
			name: "empty text",
			text: "",
			want: correction.LanguageMixed,
		},
		{
			name: "whitespace only",
			text: "   \t  ",
			want: correction.LanguageMixed,
		},
		{
			name: "no markers at all",
			text: "photosynthesis chlorophyll mitochondria",
			want: correction.LanguageMixed,
		},
		{
			name: "markers survive trailing punctuation",
			text: "kumusta po, ano na ba?",
			want: correction.LanguageTagalog,
		},
		{
			name: "case folded",
			text: "THE LESSON IS OVER AND THAT WAS IT",
			want: correction.LanguageEnglish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := correction.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	text := "ano ba ang function ng mitochondria sa cell"
	first := correction.Classify(text)
	for i := 0; i < 10; i++ {
		if got := correction.Classify(text); got != first {
			t.Fatalf("call %d: Classify(%q) = %q, want stable %q", i, text, got, first)
		}
	}
}
