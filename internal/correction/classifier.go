package correction

import "strings"

// Marker word sets for coarse language detection. These are the highest
// frequency function words of each language; content words are deliberately
// excluded because classroom speech borrows English technical vocabulary
// freely into Tagalog sentences.
var (
	tagalogMarkers = tokenSet(
		"ang", "ng", "mga", "sa", "na", "ay", "at", "ka", "ko", "mo",
		"po", "nga", "ba", "lang", "naman", "kasi", "pero", "yung",
		"hindi", "ito", "yan", "dito", "para", "kung", "siya", "niya",
	)

	englishMarkers = tokenSet(
		"the", "is", "are", "was", "were", "have", "has", "been",
		"will", "would", "could", "should", "can", "and", "or", "but",
		"if", "then", "that", "this",
	)

	// English classroom vocabulary, including the accent-typical
	// mishearings the recognizer produces for it. A technical term inside
	// an otherwise Tagalog utterance marks code-switching, not an English
	// utterance.
	technicalMarkers = tokenSet(
		"function", "punction", "formula", "pormula", "value", "alue",
		"equation", "variable", "algorithm", "computer", "science",
		"experiment", "hypothesis", "fraction", "molecule", "lesson",
		"homework", "quiz", "project",
	)
)

// classifyRatio is the dominance ratio one language's marker count must
// exceed over the other's to win. 1.5 rather than 2: classroom
// code-switching commonly mixes 30–60% English technical vocabulary into
// Tagalog speech, and a higher bar mislabels genuinely mixed utterances
// as monolingual.
const classifyRatio = 1.5

// Classify returns the coarse language label for text by counting tokens
// that match fixed Tagalog and English marker sets. Empty text classifies
// as [LanguageMixed]. Tagalog function words alongside an English technical
// term classify as Mixed outright: that combination is the signature of
// code-switched classroom speech, and no marker ratio should override it.
//
// Classify is a pure function of its input and the static marker sets.
func Classify(text string) Language {
	var tl, en, tech int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if _, ok := tagalogMarkers[w]; ok {
			tl++
		}
		if _, ok := englishMarkers[w]; ok {
			en++
		}
		if _, ok := technicalMarkers[w]; ok {
			tech++
		}
	}

	if tl > 0 && tech > 0 {
		return LanguageMixed
	}

	switch {
	case float64(tl) > float64(en)*classifyRatio:
		return LanguageTagalog
	case float64(en) > float64(tl)*classifyRatio:
		return LanguageEnglish
	default:
		return LanguageMixed
	}
}

func tokenSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}
