package correction

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	sentenceBoundaryRE = regexp.MustCompile(`[.!?]+\s+`)
	whitespaceRunRE    = regexp.MustCompile(`\s+`)
	spaceBeforePunctRE = regexp.MustCompile(`\s+([.,!?;:])`)
	missingSpaceRE     = regexp.MustCompile(`([.,!?;:])([A-Za-z])`)
)

// RuleEngine applies the deterministic correction passes over a shared
// immutable [Lexicon]. The zero-cost construction and lack of internal state
// make a single engine safe for concurrent use.
type RuleEngine struct {
	lex *Lexicon
}

// NewRuleEngine returns an engine over lex, falling back to
// [DefaultLexicon] when lex is nil.
func NewRuleEngine(lex *Lexicon) *RuleEngine {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &RuleEngine{lex: lex}
}

// Apply runs the correction passes in fixed order and returns the rewritten
// text plus one [Change] per table entry or rule that fired. The order is
// load-bearing: word splits must run before substitutions so that split-out
// tokens are themselves eligible for substitution, and the pattern rules see
// the fully substituted text.
//
// Word splits and substitutions apply regardless of lang: their keys are
// specific enough that a match is an error in any language segment. Pattern
// rules are gated by lang; mixed text applies every rule because
// code-switched speech interleaves both languages within one utterance.
func (e *RuleEngine) Apply(text string, lang Language) (string, []Change) {
	corrected := text
	var changes []Change

	// Pass 1: word splits.
	for _, sp := range e.lex.splits {
		if !sp.re.MatchString(corrected) {
			continue
		}
		corrected = sp.re.ReplaceAllString(corrected, sp.phrase)
		changes = append(changes, Change{
			Original:    sp.key,
			Corrected:   sp.phrase,
			Type:        ErrorCodeSwitch,
			Confidence:  1.0,
			Description: fmt.Sprintf("Split: '%s' -> '%s'", sp.key, sp.phrase),
		})
	}

	// Pass 2: lexical substitutions.
	for _, sub := range e.lex.subs {
		if !sub.re.MatchString(corrected) {
			continue
		}
		corrected = sub.re.ReplaceAllString(corrected, sub.repl)
		changes = append(changes, Change{
			Original:    sub.key,
			Corrected:   sub.repl,
			Type:        sub.typ,
			Confidence:  1.0,
			Description: fmt.Sprintf("'%s' -> '%s'", sub.key, sub.repl),
		})
	}

	// Pass 3: ordered pattern rules. Each rule substitutes left to right
	// exactly once per call; it is never reapplied to its own output.
	for _, rule := range e.lex.rules {
		if !ruleApplies(rule.Applies, lang) {
			continue
		}
		rewritten := rule.re.ReplaceAllString(corrected, rule.replacement)
		if rewritten == corrected {
			continue
		}
		corrected = rewritten
		changes = append(changes, Change{
			Type:        rule.Type,
			Confidence:  1.0,
			Description: rule.Description,
		})
	}

	// Passes 4 and 5 are normalization, not correction: they emit no
	// change records.
	corrected = capitalizeSentences(corrected)
	corrected = normalizeWhitespace(corrected)

	return corrected, changes
}

func ruleApplies(applies Applicability, lang Language) bool {
	if applies == AppliesBoth || lang == LanguageMixed {
		return true
	}
	return string(applies) == string(lang)
}

// capitalizeSentences upper-cases the first letter of each sentence fragment.
// Fragments are delimited by terminal punctuation followed by whitespace;
// the delimiters themselves pass through unchanged.
func capitalizeSentences(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, loc := range sentenceBoundaryRE.FindAllStringIndex(text, -1) {
		b.WriteString(capitalizeFirst(text[prev:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(capitalizeFirst(text[prev:]))
	return b.String()
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	up := unicode.ToUpper(r)
	if up == r {
		return s
	}
	return string(up) + s[size:]
}

// normalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends.
func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRunRE.ReplaceAllString(text, " "))
}

// Cleanup idempotently normalizes whitespace and punctuation spacing. The
// orchestrator runs it as the terminal step so that merged generative
// rewrites come out with the same surface conventions as rule output.
func Cleanup(text string) string {
	text = spaceBeforePunctRE.ReplaceAllString(text, "$1")
	text = missingSpaceRE.ReplaceAllString(text, "$1 $2")
	return normalizeWhitespace(text)
}
