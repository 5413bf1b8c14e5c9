// Command parlando is the main entry point for the Parlando spoken-English
// practice server.
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
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/parlando-ai/parlando/internal/api"
	"github.com/parlando-ai/parlando/internal/app"
	"github.com/parlando-ai/parlando/internal/config"
	"github.com/parlando-ai/parlando/internal/health"
	"github.com/parlando-ai/parlando/internal/history"
	"github.com/parlando-ai/parlando/internal/observe"
	"github.com/parlando-ai/parlando/internal/profile"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
	llmanyllm "github.com/parlando-ai/parlando/pkg/provider/llm/anyllm"
	llmopenai "github.com/parlando-ai/parlando/pkg/provider/llm/openai"
	"github.com/parlando-ai/parlando/pkg/provider/speech"
	speechopenai "github.com/parlando-ai/parlando/pkg/provider/speech/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parlando: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parlando: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("parlando starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	speechProv, err := buildSpeech(cfg.Providers.Speech)
	if err != nil {
		slog.Error("failed to build speech provider", "err", err)
		return 1
	}
	oracle, err := buildLLM("oracle", cfg.Providers.Oracle)
	if err != nil {
		slog.Error("failed to build oracle provider", "err", err)
		return 1
	}
	refiner, err := buildLLM("refiner", cfg.Providers.Refiner)
	if err != nil {
		slog.Error("failed to build refiner provider", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	var (
		store    history.Store
		pg       *history.PostgresStore
		checkers []health.Checker
	)
	switch {
	case cfg.Storage.PostgresDSN != "":
		pg, err = history.NewPostgresStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		checkers = append(checkers, health.Database(pg))
		slog.Info("history store ready", "backend", "postgres")
	case cfg.Storage.HistoryPath != "":
		store = history.NewFileStore(cfg.Storage.HistoryPath)
		slog.Info("history store ready", "backend", "file", "path", cfg.Storage.HistoryPath)
	default:
		slog.Warn("no history storage configured; completed sessions will not be persisted")
	}

	var profiles *profile.Store
	if cfg.Storage.ProfileDir != "" {
		profiles, err = profile.NewStore(cfg.Storage.ProfileDir)
		if err != nil {
			slog.Error("failed to open profile store", "err", err)
			return 1
		}
		checkers = append(checkers, health.DirWritable("profiles", cfg.Storage.ProfileDir))
	}

	// ── Application ───────────────────────────────────────────────────────────
	manager := app.NewManager(app.ManagerConfig{
		Config:   cfg,
		Speech:   speechProv,
		Oracle:   oracle,
		Refiner:  refiner,
		History:  store,
		Profiles: profiles,
		Metrics:  metrics,
	})

	server := api.NewServer(api.ServerConfig{
		Manager: manager,
		History: store,
		Health:  health.New(checkers...),
		Metrics: metrics,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tls := cfg.Server.TLS; tls != nil {
			errCh <- httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			errCh <- httpSrv.ListenAndServe()
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	manager.Shutdown(shutdownCtx)
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildSpeech constructs the speech-to-speech provider. It is the one
// required provider: without it there is no conversation.
func buildSpeech(entry config.ProviderEntry) (speech.Provider, error) {
	switch entry.Name {
	case "", "openai-realtime":
		var opts []speechopenai.Option
		if entry.Model != "" {
			opts = append(opts, speechopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, speechopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.APIKey == "" {
			return nil, fmt.Errorf("speech provider %q: api_key is required", "openai-realtime")
		}
		return speechopenai.New(entry.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", entry.Name)
	}
}

// buildLLM constructs an optional text-model provider. An empty entry
// returns nil, which disables the dependent feature (oracle blending or
// metric refinement) rather than failing startup.
func buildLLM(kind string, entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "" {
		slog.Info("llm provider not configured — feature disabled", "kind", kind)
		return nil, nil
	}

	name := strings.TrimPrefix(entry.Name, "anyllm/")
	switch name {
	case "openai":
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		p, err := llmopenai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
		}
		slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
		return p, nil

	case "ollama", "anthropic", "gemini", "mistral", "groq", "deepseek":
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := llmanyllm.New(name, entry.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
		}
		slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown %s provider %q", kind, entry.Name)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
