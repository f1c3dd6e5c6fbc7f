// Package batch runs corrections over many utterances concurrently with a
// bounded worker count, preserving input order in the output.
package batch

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pulox/pulox/internal/correction"
)

// Option is a functional option for a [Runner].
type Option func(*Runner)

// WithConcurrency bounds the number of utterances corrected in parallel.
// Values below one fall back to the default.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// Runner corrects batches of utterances through a shared Corrector.
type Runner struct {
	corrector   *correction.Corrector
	concurrency int
	log         *slog.Logger
}

// NewRunner creates a Runner. Default concurrency is GOMAXPROCS.
func NewRunner(c *correction.Corrector, opts ...Option) *Runner {
	r := &Runner{
		corrector:   c,
		concurrency: runtime.GOMAXPROCS(0),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run corrects every text in texts with the same config. Results line up with
// the input by index. Run stops early only when ctx is cancelled; individual
// corrections never fail the batch.
func (r *Runner) Run(ctx context.Context, texts []string, cfg correction.Config) ([]*correction.Result, error) {
	results := make([]*correction.Result, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)

	for i, text := range texts {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = r.corrector.Correct(egCtx, text, cfg)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	r.log.InfoContext(ctx, "batch correction finished",
		"utterances", len(texts),
		"concurrency", r.concurrency)
	return results, nil
}
