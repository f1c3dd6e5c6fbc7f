// Package spell implements a bilingual dictionary checker for
// Filipino-English classroom vocabulary using Double Metaphone phonetic
// encoding combined with Jaro-Winkler string similarity for ranked
// suggestion selection.
//
// The suggestion algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the query and compared against a precomputed code index over the
//     dictionary. Any dictionary word sharing a code becomes a candidate.
//
//  2. Jaro-Winkler ranking: candidates are ranked by Jaro-Winkler similarity
//     against the query (case-insensitive) and returned best first, cut off
//     at a configurable similarity floor. When no phonetic candidate exists,
//     a fallback pass ranks the whole dictionary by pure Jaro-Winkler with a
//     higher floor.
package spell

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticFloor = 0.70
	defaultFuzzyFloor    = 0.85
	defaultMaxSuggest    = 5
)

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithWords adds extra dictionary words, e.g. subject-specific vocabulary
// loaded from configuration.
func WithWords(words ...string) Option {
	return func(c *Checker) {
		c.extra = append(c.extra, words...)
	}
}

// WithPhoneticFloor sets the minimum Jaro-Winkler score for a phonetically
// matched suggestion. Default: 0.70.
func WithPhoneticFloor(floor float64) Option {
	return func(c *Checker) { c.phoneticFloor = floor }
}

// WithFuzzyFloor sets the minimum Jaro-Winkler score for fallback
// suggestions when no phonetic candidate exists. Default: 0.85.
func WithFuzzyFloor(floor float64) Option {
	return func(c *Checker) { c.fuzzyFloor = floor }
}

// Checker is a read-only bilingual dictionary with phonetic suggestion
// support. All methods are safe for concurrent use after construction.
type Checker struct {
	phoneticFloor float64
	fuzzyFloor    float64
	extra         []string

	words map[string]struct{}
	// byCode indexes dictionary words by their Double Metaphone codes.
	byCode map[string][]string
}

// New builds a Checker over the built-in Tagalog and English classroom
// vocabulary plus any words supplied via [WithWords].
func New(opts ...Option) *Checker {
	c := &Checker{
		phoneticFloor: defaultPhoneticFloor,
		fuzzyFloor:    defaultFuzzyFloor,
	}
	for _, o := range opts {
		o(c)
	}

	c.words = make(map[string]struct{}, len(tagalogWords)+len(englishWords)+len(c.extra))
	c.byCode = make(map[string][]string)
	for _, list := range [][]string{tagalogWords, englishWords, c.extra} {
		for _, w := range list {
			c.add(strings.ToLower(strings.TrimSpace(w)))
		}
	}
	return c
}

func (c *Checker) add(word string) {
	if word == "" {
		return
	}
	if _, dup := c.words[word]; dup {
		return
	}
	c.words[word] = struct{}{}
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		c.byCode[p] = append(c.byCode[p], word)
	}
	if s != "" && s != p {
		c.byCode[s] = append(c.byCode[s], word)
	}
}

// Known reports whether word is in the dictionary. Matching is
// case-insensitive and ignores surrounding punctuation.
func (c *Checker) Known(word string) bool {
	_, ok := c.words[normalize(word)]
	return ok
}

// Unknown returns the distinct tokens of text that the dictionary does not
// recognize, in order of first appearance. Purely numeric tokens and single
// letters are never reported.
func (c *Checker) Unknown(text string) []string {
	var unknown []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Fields(text) {
		w := normalize(raw)
		if len(w) < 2 || isNumeric(w) {
			continue
		}
		if _, ok := c.words[w]; ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		unknown = append(unknown, w)
	}
	return unknown
}

// Suggest returns up to max dictionary words similar to word, best first.
// A known word suggests itself. max <= 0 uses a default of 5.
func (c *Checker) Suggest(word string, max int) []string {
	if max <= 0 {
		max = defaultMaxSuggest
	}
	w := normalize(word)
	if w == "" {
		return nil
	}
	if _, ok := c.words[w]; ok {
		return []string{w}
	}

	type scored struct {
		word  string
		score float64
	}

	var candidates []scored
	seen := make(map[string]struct{})
	p, s := matchr.DoubleMetaphone(w)
	for _, code := range []string{p, s} {
		if code == "" {
			continue
		}
		for _, cand := range c.byCode[code] {
			if _, dup := seen[cand]; dup {
				continue
			}
			seen[cand] = struct{}{}
			if score := matchr.JaroWinkler(w, cand, false); score >= c.phoneticFloor {
				candidates = append(candidates, scored{word: cand, score: score})
			}
		}
	}

	// Fallback: no phonetic candidate, rank the whole dictionary with a
	// stricter similarity floor.
	if len(candidates) == 0 {
		for cand := range c.words {
			if score := matchr.JaroWinkler(w, cand, false); score >= c.fuzzyFloor {
				candidates = append(candidates, scored{word: cand, score: score})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].word < candidates[j].word
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, cand := range candidates {
		out[i] = cand.word
	}
	return out
}

func normalize(word string) string {
	return strings.Trim(strings.ToLower(word), ".,!?;:\"'()-")
}

func isNumeric(word string) bool {
	for _, r := range word {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(word) > 0
}

// Built-in vocabulary. Deliberately small: the point is flagging likely
// mishearings for the generative pass, not exhaustive spell checking.
var tagalogWords = []string{
	// Particles
	"po", "nga", "na", "pa", "ba", "kasi", "naman", "lang",

	// Pronouns
	"ako", "ka", "mo", "ko", "niya", "kaniya", "kami", "kayo", "sila",
	"ito", "iyan", "yan", "yon", "yung", "dito", "diyan", "doon",

	// Common verbs
	"gawin", "gawa", "kain", "inom", "tulog", "gising", "lakad",
	"punta", "balik", "dating", "alis", "tigil", "simula", "tapos",

	// Articles and determiners
	"ang", "ng", "mga", "sa", "ay", "at",

	// Adjectives
	"maganda", "ganda", "pangit", "mabuti", "masama", "malaki", "maliit",

	// Question words and common words
	"para", "kung", "sino", "ano", "saan", "kailan", "paano", "bakit",
	"hindi", "oo", "wala", "meron", "may", "kumusta", "magandang",
	"umaga", "hapon", "gabi", "salamat", "pera", "oras",

	// Numbers
	"isa", "dalawa", "tatlo", "apat", "lima", "anim", "pito", "walo",
	"siyam", "sampu",

	// Classroom terms
	"klase", "guro", "estudyante", "eskwela", "libro", "papel", "lapis",
	"pagsusulit", "takdang-aralin", "pag-aaral", "aralin", "leksyon",
}

var englishWords = []string{
	// Function words
	"the", "is", "are", "was", "were", "this", "that", "these", "those",
	"have", "has", "been", "will", "would", "could", "should", "can",
	"and", "or", "but", "if", "then", "of", "in", "on", "to", "for",
	"with", "very", "good", "bad", "an", "example",

	// Classroom vocabulary
	"function", "formula", "value", "equation", "variable", "fraction",
	"algorithm", "computer", "science", "experiment", "hypothesis",
	"molecule", "lesson", "homework", "quiz", "project", "teacher",
	"student", "answer", "question", "chapter", "subject", "grade",
}
