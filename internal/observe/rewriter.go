package observe

import (
	"context"
	"time"

	"github.com/pulox/pulox/internal/correction"
)

// InstrumentedRewriter wraps a [correction.Rewriter], recording rewrite
// latency in [Metrics.LLMDuration] and failures in [Metrics.ProviderErrors].
// Place it inside any circuit breaker so fast-failed calls are not timed as
// rewrites.
type InstrumentedRewriter struct {
	inner   correction.Rewriter
	metrics *Metrics
}

var _ correction.Rewriter = (*InstrumentedRewriter)(nil)

// NewInstrumentedRewriter wraps inner with the given metrics sink.
func NewInstrumentedRewriter(inner correction.Rewriter, m *Metrics) *InstrumentedRewriter {
	return &InstrumentedRewriter{inner: inner, metrics: m}
}

// Rewrite delegates to the wrapped rewriter, timing the call.
func (ir *InstrumentedRewriter) Rewrite(ctx context.Context, text string, lang correction.Language, level correction.Level, hints []string) (string, float64, error) {
	started := time.Now()
	rewritten, confidence, err := ir.inner.Rewrite(ctx, text, lang, level, hints)
	ir.metrics.LLMDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		ir.metrics.RecordProviderError(ctx, "llm", "rewrite")
	}
	return rewritten, confidence, err
}
