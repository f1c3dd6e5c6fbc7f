package correction

import (
	"context"
	"log/slog"
	"time"
)

// Hinter supplies tokens the dictionary does not recognize. The orchestrator
// forwards them to the generative rewriter so it can focus on the spans most
// likely to be misrecognitions.
type Hinter interface {
	Unknown(text string) []string
}

// Observer receives a completed result. Used to hang metrics off the
// orchestrator without coupling it to an exporter.
type Observer interface {
	CorrectionDone(ctx context.Context, res *Result)
}

// Corrector sequences language detection, the rule engine, and the optional
// generative pass into a single correction pipeline. A Corrector holds no
// per-call state and may be shared across goroutines.
type Corrector struct {
	engine   *RuleEngine
	rewriter Rewriter
	hinter   Hinter
	observer Observer
	log      *slog.Logger
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithLexicon replaces the built-in correction tables.
func WithLexicon(lex *Lexicon) Option {
	return func(c *Corrector) { c.engine = NewRuleEngine(lex) }
}

// WithRewriter enables the generative pass. Without it, Correct behaves as a
// pure rule-based corrector regardless of config.
func WithRewriter(r Rewriter) Option {
	return func(c *Corrector) { c.rewriter = r }
}

// WithHinter supplies unknown-token hints to the generative rewriter.
func WithHinter(h Hinter) Option {
	return func(c *Corrector) { c.hinter = h }
}

// WithObserver registers a completion hook.
func WithObserver(o Observer) Option {
	return func(c *Corrector) { c.observer = o }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Corrector) { c.log = log }
}

// New builds a Corrector with the built-in lexicon and no generative pass;
// options override both.
func New(opts ...Option) *Corrector {
	c := &Corrector{
		engine: NewRuleEngine(nil),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correct runs the full pipeline over text and always returns a usable
// result: every failure mode inside the pipeline degrades to a weaker
// correction rather than an error.
//
// The generative rewrite is merged only when its reported confidence reaches
// cfg.MinGenerativeConfidence and it actually changed the text; otherwise it
// is discarded and the rule output stands. A rewriter error or ctx expiry is
// treated the same as a discarded rewrite.
func (c *Corrector) Correct(ctx context.Context, text string, cfg Config) *Result {
	start := time.Now()

	lang := cfg.LanguageHint
	if !lang.IsValid() {
		lang = Classify(text)
	}

	level := cfg.Level
	if !level.IsValid() {
		level = LevelStandard
	}

	current := text
	var changes []Change

	if cfg.UseRules {
		var ruleChanges []Change
		current, ruleChanges = c.engine.Apply(current, lang)
		changes = append(changes, ruleChanges...)
	}

	generativeApplied := false
	if cfg.UseGenerative && c.rewriter != nil {
		var hints []string
		if c.hinter != nil {
			hints = c.hinter.Unknown(current)
		}

		rewrite, conf, err := c.rewriter.Rewrite(ctx, current, lang, level, hints)
		switch {
		case err != nil:
			c.log.WarnContext(ctx, "generative pass failed, keeping rule output",
				"err", err, "language", lang)
		case conf < cfg.minGenerative():
			c.log.DebugContext(ctx, "generative rewrite below merge threshold, discarded",
				"confidence", conf, "threshold", cfg.minGenerative())
		case rewrite == current:
			// Nothing to merge.
		default:
			changes = append(changes, Diff(current, rewrite)...)
			current = rewrite
			generativeApplied = true
		}
	}

	current = Cleanup(current)

	confidence := 1.0
	if len(changes) > 0 {
		sum := 0.0
		for _, ch := range changes {
			sum += ch.Confidence
		}
		confidence = sum / float64(len(changes))
	} else if current != text {
		// The output differs but no change record explains it (cleanup
		// alone rewrote something), so report reduced confidence.
		confidence = 0.8
	}

	method := MethodRules
	switch {
	case generativeApplied && cfg.UseRules:
		method = MethodHybrid
	case generativeApplied:
		method = MethodGenerative
	}

	if changes == nil {
		changes = []Change{}
	}

	res := &Result{
		OriginalText:    text,
		CorrectedText:   current,
		Changes:         changes,
		ConfidenceScore: round3(confidence),
		Method:          method,
		Language:        lang,
		ProcessingTime:  time.Since(start),
	}

	c.log.InfoContext(ctx, "correction complete",
		"language", lang,
		"method", method,
		"changes", len(changes),
		"confidence", res.ConfidenceScore)

	if c.observer != nil {
		c.observer.CorrectionDone(ctx, res)
	}
	return res
}

func (cfg Config) minGenerative() float64 {
	if cfg.MinGenerativeConfidence > 0 && cfg.MinGenerativeConfidence <= 1 {
		return cfg.MinGenerativeConfidence
	}
	return DefaultMinGenerativeConfidence
}
