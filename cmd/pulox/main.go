// Command pulox is the main entry point for the Pulox correction server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/pulox/pulox/internal/config"
	"github.com/pulox/pulox/internal/correction"
	"github.com/pulox/pulox/internal/correction/generative"
	"github.com/pulox/pulox/internal/correction/spell"
	"github.com/pulox/pulox/internal/health"
	"github.com/pulox/pulox/internal/lexicon"
	"github.com/pulox/pulox/internal/observe"
	"github.com/pulox/pulox/internal/resilience"
	"github.com/pulox/pulox/internal/server"
	"github.com/pulox/pulox/internal/store"
	storepg "github.com/pulox/pulox/internal/store/postgres"
	"github.com/pulox/pulox/pkg/provider/asr"
	"github.com/pulox/pulox/pkg/provider/asr/whisper"
	"github.com/pulox/pulox/pkg/provider/llm"
	"github.com/pulox/pulox/pkg/provider/llm/anyllm"
	openaillm "github.com/pulox/pulox/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listenAddr := flag.String("listen", "", "listen address override (e.g. :8080)")
	flag.Parse()

	// ── Load configuration ─────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "pulox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "pulox: %v\n", err)
		}
		return 1
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	// ── Logger ─────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("pulox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ──────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "pulox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	var checkers []health.Checker

	// ── Generative rewriter (optional) ─────────────────────────────────────────
	correctorOpts := []correction.Option{
		correction.WithObserver(metrics),
	}
	speller := spell.New()
	correctorOpts = append(correctorOpts, correction.WithHinter(speller))

	var guarded *resilience.GuardedRewriter
	if name := cfg.Providers.LLM.Name; name != "" {
		provider, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown llm provider — generative pass disabled", "name", name)
		} else if err != nil {
			slog.Error("failed to create llm provider", "name", name, "err", err)
			return 1
		} else {
			if len(cfg.Providers.LLMFallbacks) > 0 {
				group := resilience.NewLLMFallback(provider, name,
					resilience.FallbackConfig{Breaker: breakerConfig(cfg)})
				for _, entry := range cfg.Providers.LLMFallbacks {
					fb, err := reg.CreateLLM(entry)
					if err != nil {
						slog.Warn("skipping llm fallback", "name", entry.Name, "err", err)
						continue
					}
					group.AddFallback(entry.Name, fb)
					slog.Info("llm fallback registered", "name", entry.Name, "model", entry.Model)
				}
				provider = group
			}
			rewriter := observe.NewInstrumentedRewriter(generative.New(provider), metrics)
			guarded = resilience.NewGuardedRewriter(rewriter, breakerConfig(cfg))
			correctorOpts = append(correctorOpts, correction.WithRewriter(guarded))
			checkers = append(checkers, health.BreakerChecker("generative", func() string {
				return guarded.BreakerState().String()
			}))
			slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
		}
	}

	// ── ASR transcriber (optional) ─────────────────────────────────────────────
	var transcriber asr.Transcriber
	if name := cfg.Providers.ASR.Name; name != "" {
		t, err := reg.CreateASR(cfg.Providers.ASR)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown asr provider — transcription disabled", "name", name)
		} else if err != nil {
			slog.Error("failed to create asr provider", "name", name, "err", err)
			return 1
		} else {
			if len(cfg.Providers.ASRFallbacks) > 0 {
				group := resilience.NewASRFallback(t, name,
					resilience.FallbackConfig{Breaker: breakerConfig(cfg)})
				for _, entry := range cfg.Providers.ASRFallbacks {
					fb, err := reg.CreateASR(entry)
					if err != nil {
						slog.Warn("skipping asr fallback", "name", entry.Name, "err", err)
						continue
					}
					group.AddFallback(entry.Name, fb)
					slog.Info("asr fallback registered", "name", entry.Name, "model", entry.Model)
				}
				t = group
			}
			transcriber = t
			slog.Info("provider created", "kind", "asr", "name", name, "model", cfg.Providers.ASR.Model)
		}
	}

	// ── Custom lexicon + result cache (optional) ───────────────────────────────
	var lexStore *lexicon.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		var lexOpts []lexicon.Option
		if ttl := cfg.Redis.CacheTTL.Std(); ttl > 0 {
			lexOpts = append(lexOpts, lexicon.WithCacheTTL(ttl))
		}
		lexStore = lexicon.New(client, lexOpts...)
		checkers = append(checkers, health.PingChecker("redis", lexStore))
		slog.Info("custom lexicon store connected", "addr", cfg.Redis.Addr)
	}

	// ── Record store (optional) ────────────────────────────────────────────────
	var records store.Store
	if cfg.Postgres.DSN != "" {
		pg, err := storepg.NewStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			slog.Error("failed to connect record store", "err", err)
			return 1
		}
		defer pg.Close()
		records = pg
		checkers = append(checkers, health.PingChecker("postgres", pg))
		slog.Info("record store connected")
	} else {
		records = store.NewMemStore()
		slog.Info("record store running in-memory — records are lost on restart")
	}

	// ── HTTP server ────────────────────────────────────────────────────────────
	srv := server.New(
		server.WithCorrectorOptions(correctorOpts...),
		server.WithTranscriber(transcriber),
		server.WithLexiconStore(lexStore),
		server.WithStore(records),
		server.WithSpeller(speller),
		server.WithMetrics(metrics),
		server.WithHealth(health.New(checkers...)),
		server.WithDefaults(correctionDefaults(cfg.Correction)),
		server.WithBatchConcurrency(cfg.Correction.BatchConcurrency),
		server.WithLogger(logger),
	)

	// ── Config hot reload ──────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		applyReload(config.Diff(old, next), logLevel, srv, guarded)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		slog.Error("http server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-native talks to the OpenAI API through its official SDK rather
	// than the any-llm abstraction.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openaillm.WithOrganization(org))
		}
		return openaillm.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})
}

// correctionDefaults converts the config section into the engine config
// applied when a request omits a field.
func correctionDefaults(cc config.CorrectionConfig) correction.Config {
	return correction.Config{
		Level:                   correction.Level(cc.Level),
		UseRules:                cc.RulesEnabled(),
		UseGenerative:           cc.GenerativeEnabled(),
		LanguageHint:            correction.Language(cc.LanguageHint),
		MinGenerativeConfidence: cc.MinGenerativeConfidence,
	}
}

func breakerConfig(cfg *config.Config) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Name:         "generative-rewriter",
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout.Std(),
	}
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyReload pushes the hot-reloadable pieces of a config diff into the
// running components. guarded is nil when no generative provider is wired.
func applyReload(d config.ConfigDiff, logLevel *slog.LevelVar, srv *server.Server, guarded *resilience.GuardedRewriter) {
	if d.Empty() {
		return
	}

	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CorrectionChanged {
		srv.SetDefaults(correctionDefaults(d.NewCorrection), d.NewCorrection.BatchConcurrency)
		slog.Info("correction defaults changed",
			"level", d.NewCorrection.Level,
			"use_rules", d.NewCorrection.RulesEnabled(),
			"use_generative", d.NewCorrection.GenerativeEnabled(),
		)
	}
	if d.BreakerChanged && guarded != nil {
		guarded.Reconfigure(resilience.BreakerConfig{
			MaxFailures:  d.NewBreaker.MaxFailures,
			ResetTimeout: d.NewBreaker.ResetTimeout.Std(),
		})
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher retune verbosity without replacing the handler.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
