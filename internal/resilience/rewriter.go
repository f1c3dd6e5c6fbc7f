package resilience

import (
	"context"

	"github.com/pulox/pulox/internal/correction"
)

// GuardedRewriter wraps a [correction.Rewriter] with a circuit breaker. While
// the breaker is open, Rewrite fails fast with [ErrCircuitOpen] and the
// correction engine falls back to its rule output for that utterance.
type GuardedRewriter struct {
	inner   correction.Rewriter
	breaker *Breaker
}

var _ correction.Rewriter = (*GuardedRewriter)(nil)

// NewGuardedRewriter wraps inner with a breaker built from cfg.
func NewGuardedRewriter(inner correction.Rewriter, cfg BreakerConfig) *GuardedRewriter {
	if cfg.Name == "" {
		cfg.Name = "generative-rewriter"
	}
	return &GuardedRewriter{
		inner:   inner,
		breaker: NewBreaker(cfg),
	}
}

// Rewrite delegates to the wrapped rewriter under the breaker.
func (g *GuardedRewriter) Rewrite(ctx context.Context, text string, lang correction.Language, level correction.Level, hints []string) (string, float64, error) {
	var (
		rewritten  string
		confidence float64
	)
	err := g.breaker.Execute(func() error {
		var callErr error
		rewritten, confidence, callErr = g.inner.Rewrite(ctx, text, lang, level, hints)
		return callErr
	})
	if err != nil {
		return "", 0, err
	}
	return rewritten, confidence, nil
}

// Reconfigure retunes the underlying breaker at runtime.
func (g *GuardedRewriter) Reconfigure(cfg BreakerConfig) {
	g.breaker.Reconfigure(cfg)
}

// BreakerState exposes the breaker state for health reporting.
func (g *GuardedRewriter) BreakerState() State {
	return g.breaker.State()
}
