// Package server exposes the correction pipeline over HTTP.
//
// The REST surface covers single and batch correction, ASR transcription,
// spell suggestions, the runtime custom lexicon, and stored record listings.
// A WebSocket endpoint streams per-segment corrections for live sessions.
//
// Dependencies are injected via functional options; every one of them is
// optional except the corrector itself, and handlers whose dependency is
// absent respond 501 Not Implemented.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulox/pulox/internal/batch"
	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/correction/spell"
	"github.com/pulox/pulox/internal/health"
	"github.com/pulox/pulox/internal/lexicon"
	"github.com/pulox/pulox/internal/observe"
	"github.com/pulox/pulox/internal/store"
	"github.com/pulox/pulox/pkg/provider/asr"
)

// Server wires the correction pipeline into HTTP handlers. All methods are
// safe for concurrent use.
type Server struct {
	baseLexicon   *correction.Lexicon
	correctorOpts []correction.Option
	transcriber   asr.Transcriber
	lex           *lexicon.Store
	records       store.Store
	speller       *spell.Checker
	metrics       *observe.Metrics
	health        *health.Handler
	log           *slog.Logger

	// mu guards the rebuilt pieces: the corrector and batch runner, the
	// defaults and concurrency (replaceable at runtime via SetDefaults),
	// and the stale flag.
	mu          sync.Mutex
	defaults    correction.Config
	concurrency int
	corrector   *correction.Corrector
	runner      *batch.Runner
	stale       bool
}

// Option configures a [Server].
type Option func(*Server)

// WithLexicon replaces the built-in static correction tables.
func WithLexicon(lex *correction.Lexicon) Option {
	return func(s *Server) { s.baseLexicon = lex }
}

// WithCorrectorOptions forwards options (rewriter, hinter, observer) to every
// corrector the server builds.
func WithCorrectorOptions(opts ...correction.Option) Option {
	return func(s *Server) { s.correctorOpts = opts }
}

// WithTranscriber enables the /transcribe endpoint.
func WithTranscriber(t asr.Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithLexiconStore enables the custom lexicon endpoints and the result cache.
func WithLexiconStore(lex *lexicon.Store) Option {
	return func(s *Server) { s.lex = lex }
}

// WithStore enables persistence of transcripts and correction records.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.records = st }
}

// WithSpeller enables the /suggest endpoint.
func WithSpeller(sp *spell.Checker) Option {
	return func(s *Server) { s.speller = sp }
}

// WithMetrics sets the metrics sink used by the HTTP middleware and the
// cache-lookup counters.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth sets the handler backing /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithDefaults sets the correction config applied when a request omits a
// field.
func WithDefaults(cfg correction.Config) Option {
	return func(s *Server) { s.defaults = cfg }
}

// WithBatchConcurrency bounds the /correct/batch worker pool.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) { s.concurrency = n }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server and builds its initial corrector from the static
// lexicon.
func New(opts ...Option) *Server {
	s := &Server{
		defaults: correction.Config{
			UseRules:      true,
			UseGenerative: true,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.baseLexicon == nil {
		s.baseLexicon = correction.DefaultLexicon()
	}
	if s.health == nil {
		s.health = health.New()
	}
	s.rebuild(s.baseLexicon)
	return s
}

// rebuild swaps in a corrector and batch runner built over lex. Callers that
// already hold mu must not use this; it takes the lock itself.
func (s *Server) rebuild(lex *correction.Lexicon) {
	correctorOpts := append(
		[]correction.Option{correction.WithLexicon(lex), correction.WithLogger(s.log)},
		s.correctorOpts...,
	)
	c := correction.New(correctorOpts...)

	s.mu.Lock()
	runnerOpts := []batch.Option{batch.WithLogger(s.log)}
	if s.concurrency > 0 {
		runnerOpts = append(runnerOpts, batch.WithConcurrency(s.concurrency))
	}
	s.corrector = c
	s.runner = batch.NewRunner(c, runnerOpts...)
	s.stale = false
	s.mu.Unlock()
}

// markStale forces the next correction to rebuild the corrector, picking up
// custom lexicon mutations and runtime default changes.
func (s *Server) markStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// SetDefaults replaces the default correction config and the batch worker
// bound at runtime, e.g. after a config file reload. A batchConcurrency of
// zero keeps the runner default. In-flight requests finish with the config
// they started with.
func (s *Server) SetDefaults(cfg correction.Config, batchConcurrency int) {
	s.mu.Lock()
	s.defaults = cfg
	s.concurrency = batchConcurrency
	s.stale = true
	s.mu.Unlock()
}

// currentCorrector returns the corrector with the custom lexicon overlay
// applied, refreshing it after lexicon mutations or a SetDefaults call. A
// failed overlay read logs and falls back to the last good corrector.
func (s *Server) currentCorrector(ctx context.Context) (*correction.Corrector, *batch.Runner) {
	s.mu.Lock()
	stale := s.stale
	c, r := s.corrector, s.runner
	s.mu.Unlock()

	if !stale {
		return c, r
	}

	lex := s.baseLexicon
	if s.lex != nil {
		overlaid, err := s.lex.Overlay(ctx, s.baseLexicon)
		if err != nil {
			s.log.WarnContext(ctx, "custom lexicon overlay failed, using previous tables", "err", err)
			return c, r
		}
		lex = overlaid
	}
	s.rebuild(lex)

	s.mu.Lock()
	c, r = s.corrector, s.runner
	s.mu.Unlock()
	return c, r
}

// Routes builds the full HTTP handler, including health, metrics, and the
// observability middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /correct", s.handleCorrect)
	mux.HandleFunc("POST /correct/batch", s.handleCorrectBatch)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /suggest", s.handleSuggest)
	mux.HandleFunc("POST /lexicon/custom", s.handleLexiconPut)
	mux.HandleFunc("DELETE /lexicon/custom/{word}", s.handleLexiconDelete)
	mux.HandleFunc("GET /transcripts", s.handleListTranscripts)
	mux.HandleFunc("GET /transcripts/{id}", s.handleGetTranscript)
	mux.HandleFunc("POST /corrections", s.handleSaveCorrection)
	mux.HandleFunc("GET /corrections", s.handleListCorrections)
	mux.HandleFunc("GET /corrections/{id}", s.handleGetCorrection)
	mux.HandleFunc("GET /ws/correct", s.handleWS)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux)
	}
	return mux
}

// requestConfig merges server defaults with the per-request overrides.
func (s *Server) requestConfig(req correctOptions) correction.Config {
	s.mu.Lock()
	cfg := s.defaults
	s.mu.Unlock()
	if req.Level != "" {
		cfg.Level = correction.Level(req.Level)
	}
	if req.UseRules != nil {
		cfg.UseRules = *req.UseRules
	}
	if req.UseGenerative != nil {
		cfg.UseGenerative = *req.UseGenerative
	}
	if req.LanguageHint != "" {
		cfg.LanguageHint = correction.Language(req.LanguageHint)
	}
	if req.MinGenerativeConfidence > 0 {
		cfg.MinGenerativeConfidence = req.MinGenerativeConfidence
	}
	return cfg
}
