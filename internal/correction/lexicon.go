package correction

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Substitution is one lexical substitution entry: an erroneous token or short
// fixed phrase mapped to its correction, with the error category tagged at
// definition time.
type Substitution struct {
	From string
	To   string
	Type ErrorType
}

// RuleSpec is the source form of a pattern rule before compilation.
type RuleSpec struct {
	// Pattern is a regular expression; capture groups may be referenced in
	// Replacement as $1, $2, …
	Pattern string

	// Replacement is the templated replacement text.
	Replacement string

	// Description is the human-readable account attached to every change
	// this rule produces.
	Description string

	// Applies gates the rule by detected language.
	Applies Applicability

	// Type is the error category for changes produced by this rule.
	Type ErrorType
}

// Rule is a compiled, immutable pattern rule.
type Rule struct {
	re          *regexp.Regexp
	replacement string

	Description string
	Applies     Applicability
	Type        ErrorType
}

// splitEntry is a compiled word-split table entry.
type splitEntry struct {
	re     *regexp.Regexp
	key    string
	phrase string
}

// subEntry is a compiled lexical substitution table entry.
type subEntry struct {
	re   *regexp.Regexp
	key  string
	repl string
	typ  ErrorType
}

// Lexicon holds all correction tables: the word-split map, the lexical
// substitution list, and the ordered pattern rules. A Lexicon is built once
// and never mutated afterwards, so it is safe to share across any number of
// concurrent correction calls.
type Lexicon struct {
	splits []splitEntry
	subs   []subEntry
	rules  []Rule
}

// NewLexicon compiles the given tables into a [Lexicon].
//
// Identity entries (From == To) register nothing and are dropped: a mapping
// from a token to itself can never produce a change, so keeping it only
// wastes scan time. Entries or rules whose pattern fails to compile are
// logged and skipped; malformed table data never aborts construction.
//
// Word-split keys and substitution keys match case-insensitively on whole
// tokens only. Substitutions are ordered longest phrase first so that a
// multi-word entry ("pra sa") wins over its single-word prefix ("pra").
func NewLexicon(splits map[string]string, subs []Substitution, rules []RuleSpec) *Lexicon {
	lex := &Lexicon{}

	keys := make([]string, 0, len(splits))
	for k := range splits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := splits[k]
		if strings.EqualFold(k, v) {
			slog.Debug("lexicon: dropping identity word-split entry", "key", k)
			continue
		}
		re, err := wholeTokenPattern(k)
		if err != nil {
			slog.Warn("lexicon: skipping word-split entry", "key", k, "err", err)
			continue
		}
		lex.splits = append(lex.splits, splitEntry{re: re, key: k, phrase: v})
	}

	ordered := make([]Substitution, len(subs))
	copy(ordered, subs)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := strings.Count(ordered[i].From, " "), strings.Count(ordered[j].From, " ")
		if ti != tj {
			return ti > tj
		}
		if len(ordered[i].From) != len(ordered[j].From) {
			return len(ordered[i].From) > len(ordered[j].From)
		}
		return ordered[i].From < ordered[j].From
	})
	seen := make(map[string]struct{}, len(ordered))
	for _, s := range ordered {
		key := strings.ToLower(s.From)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.EqualFold(s.From, s.To) {
			slog.Debug("lexicon: dropping identity substitution entry", "key", s.From)
			continue
		}
		re, err := wholeTokenPattern(s.From)
		if err != nil {
			slog.Warn("lexicon: skipping substitution entry", "key", s.From, "err", err)
			continue
		}
		typ := s.Type
		if typ == "" {
			typ = ErrorWordChoice
		}
		lex.subs = append(lex.subs, subEntry{re: re, key: key, repl: s.To, typ: typ})
	}

	for _, rs := range rules {
		re, err := regexp.Compile(rs.Pattern)
		if err != nil {
			slog.Warn("lexicon: skipping pattern rule", "pattern", rs.Pattern, "err", err)
			continue
		}
		applies := rs.Applies
		if applies == "" {
			applies = AppliesBoth
		}
		lex.rules = append(lex.rules, Rule{
			re:          re,
			replacement: rs.Replacement,
			Description: rs.Description,
			Applies:     applies,
			Type:        rs.Type,
		})
	}

	return lex
}

// WithSubstitutions returns a new Lexicon that layers extra substitution
// entries over lex. Extra entries take precedence over built-in entries with
// the same key. lex itself is not modified.
func (lex *Lexicon) WithSubstitutions(extra []Substitution) *Lexicon {
	if len(extra) == 0 {
		return lex
	}
	out := &Lexicon{
		splits: lex.splits,
		rules:  lex.rules,
	}
	override := make(map[string]struct{}, len(extra))
	for _, s := range extra {
		key := strings.ToLower(s.From)
		if strings.EqualFold(s.From, s.To) {
			continue
		}
		re, err := wholeTokenPattern(s.From)
		if err != nil {
			slog.Warn("lexicon: skipping custom substitution entry", "key", s.From, "err", err)
			continue
		}
		typ := s.Type
		if typ == "" {
			typ = ErrorWordChoice
		}
		override[key] = struct{}{}
		out.subs = append(out.subs, subEntry{re: re, key: key, repl: s.To, typ: typ})
	}
	for _, s := range lex.subs {
		if _, shadowed := override[s.key]; shadowed {
			continue
		}
		out.subs = append(out.subs, s)
	}
	return out
}

// Rules returns the compiled pattern rules in application order.
func (lex *Lexicon) Rules() []Rule { return lex.rules }

// wholeTokenPattern compiles a case-insensitive whole-token match for the
// literal key, which may contain spaces for fixed phrases.
func wholeTokenPattern(key string) (*regexp.Regexp, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("empty key")
	}
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)
}

// ─── Default tables ──────────────────────────────────────────────────────────

// defaultWordSplits maps tokens the recogniser erroneously concatenated to
// the multi-token phrase that was actually spoken. Greetings dominate: they
// open nearly every recorded lecture and are the most frequent ASR failure.
var defaultWordSplits = map[string]string{
	// Greetings
	"commustaka": "kumusta ka",
	"gamustaka":  "kumusta ka",
	"kumustaka":  "kumusta ka",
	"camustaka":  "kumusta ka",
	"kamustaka":  "kumusta ka",
	"kumustana":  "kumusta na",

	"magandangumaga": "magandang umaga",
	"magandanumaga":  "magandang umaga",
	"magandanghapon": "magandang hapon",
	"magandanhapon":  "magandang hapon",
	"magandanggabi":  "magandang gabi",
	"magandangabi":   "magandang gabi",

	// Question and reply contractions
	"anoba":   "ano ba",
	"saanba":  "saan ba",
	"sinoyan": "sino yan",
	"ayokona": "ayoko na",

	// Classroom phrases
	"takdangaralin": "takdang aralin",
	"pagaaralan":    "pag-aaralan",
	"pagaaral":      "pag-aaral",

	// Polite particles glued onto the previous word
	"kapo":  "ka po",
	"napo":  "na po",
	"yonpo": "yon po",
	"bapo":  "ba po",
}

// defaultSubstitutions lists common ASR misrecognitions specific to
// Filipino-English classroom speech.
var defaultSubstitutions = []Substitution{
	// Tagalog shortenings and mishearings
	{From: "ung", To: "yung", Type: ErrorSpelling},
	{From: "anu", To: "ano", Type: ErrorSpelling},
	{From: "bat", To: "bakit", Type: ErrorSpelling},
	{From: "bkit", To: "bakit", Type: ErrorSpelling},
	{From: "pano", To: "paano", Type: ErrorSpelling},
	{From: "panu", To: "paano", Type: ErrorSpelling},
	{From: "kelan", To: "kailan", Type: ErrorSpelling},
	{From: "klan", To: "kailan", Type: ErrorSpelling},
	{From: "pra", To: "para", Type: ErrorSpelling},
	{From: "pra sa", To: "para sa", Type: ErrorSpelling},
	{From: "kung san", To: "kung saan", Type: ErrorSpelling},
	{From: "gus2", To: "gusto", Type: ErrorSpelling},
	{From: "ano-ano", To: "ano ano", Type: ErrorSpelling},
	{From: "saan-saan", To: "saan saan", Type: ErrorSpelling},
	{From: "di ba", To: "hindi ba", Type: ErrorWordChoice},
	{From: "dba", To: "hindi ba", Type: ErrorSpelling},

	// Duplication errors: the recogniser stutters on repeated particles.
	{From: "sa sa", To: "sa", Type: ErrorGrammar},
	{From: "ng ng", To: "ng", Type: ErrorGrammar},
	{From: "lang lang", To: "lang", Type: ErrorGrammar},
	{From: "naman naman", To: "naman", Type: ErrorGrammar},
	{From: "ako ako", To: "ako", Type: ErrorGrammar},
	{From: "ikaw ikaw", To: "ikaw", Type: ErrorGrammar},
	{From: "yan yan", To: "yan", Type: ErrorGrammar},

	// English colloquial collapses
	{From: "gonna", To: "going to", Type: ErrorWordChoice},
	{From: "wanna", To: "want to", Type: ErrorWordChoice},
	{From: "gotta", To: "got to", Type: ErrorWordChoice},
	{From: "kinda", To: "kind of", Type: ErrorWordChoice},
	{From: "sorta", To: "sort of", Type: ErrorWordChoice},

	// Subject vocabulary the recogniser splits or mangles
	{From: "biolo hiya", To: "biolohiya", Type: ErrorSpelling},
	{From: "takdangara lin", To: "takdang aralin", Type: ErrorSpelling},
}

// defaultRules is the ordered pattern rule list. Order matters: later rules
// operate on the output of earlier ones within a single pass.
var defaultRules = []RuleSpec{
	// Tagalog
	{
		Pattern:     `(?i)\bho\b`,
		Replacement: "po",
		Description: "po misheard as ho",
		Applies:     AppliesTagalog,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\bnang\s+(ay|ang|mga|sa)\b`,
		Replacement: "ng $1",
		Description: "ng before common Tagalog words",
		Applies:     AppliesTagalog,
		Type:        ErrorGrammar,
	},

	// English
	{
		Pattern:     `(?i)\ba\s+([aeiou])`,
		Replacement: "an $1",
		Description: "a -> an before vowels",
		Applies:     AppliesEnglish,
		Type:        ErrorGrammar,
	},
	{
		Pattern:     `(?i)\bcannot\b`,
		Replacement: "can't",
		Description: "cannot -> can't",
		Applies:     AppliesEnglish,
		Type:        ErrorWordChoice,
	},
	{
		Pattern:     `(?i)\bwill not\b`,
		Replacement: "won't",
		Description: "will not -> won't",
		Applies:     AppliesEnglish,
		Type:        ErrorWordChoice,
	},

	// Phonetic confusions characteristic of the Filipino accent
	{
		Pattern:     `(?i)\bpunction\b`,
		Replacement: "function",
		Description: "P -> F confusion: punction -> function",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\bpormula\b`,
		Replacement: "formula",
		Description: "P -> F confusion: pormula -> formula",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\bbery\b`,
		Replacement: "very",
		Description: "B -> V confusion: bery -> very",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\balue\b`,
		Replacement: "value",
		Description: "B -> V confusion: alue -> value",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\bdat\b`,
		Replacement: "that",
		Description: "D -> TH confusion: dat -> that",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\bdis\b`,
		Replacement: "this",
		Description: "D -> TH confusion: dis -> this",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},
	{
		Pattern:     `(?i)\bwit\b`,
		Replacement: "with",
		Description: "T -> TH confusion: wit -> with",
		Applies:     AppliesEnglish,
		Type:        ErrorPhonetic,
	},

	// Punctuation and spacing
	{
		Pattern:     `\s{2,}`,
		Replacement: " ",
		Description: "multiple spaces collapsed",
		Applies:     AppliesBoth,
		Type:        ErrorPunctuation,
	},
	{
		Pattern:     `\s+([.,!?;:])`,
		Replacement: "$1",
		Description: "space before punctuation removed",
		Applies:     AppliesBoth,
		Type:        ErrorPunctuation,
	},
	{
		Pattern:     `([.,!?;:])([A-Za-z])`,
		Replacement: "$1 $2",
		Description: "missing space after punctuation",
		Applies:     AppliesBoth,
		Type:        ErrorPunctuation,
	},
}

// DefaultLexicon builds the built-in correction tables. The result is
// immutable; build it once at process start and share it.
func DefaultLexicon() *Lexicon {
	return NewLexicon(defaultWordSplits, defaultSubstitutions, defaultRules)
}
