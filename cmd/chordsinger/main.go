// Command chordsinger is the main entry point for the chord-name vocal
// synthesis server.
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

	"github.com/chordsinger/chordsinger/internal/api"
	"github.com/chordsinger/chordsinger/internal/config"
	"github.com/chordsinger/chordsinger/internal/health"
	"github.com/chordsinger/chordsinger/internal/job"
	"github.com/chordsinger/chordsinger/internal/observe"
	"github.com/chordsinger/chordsinger/internal/resilience"
	"github.com/chordsinger/chordsinger/internal/singer"
	"github.com/chordsinger/chordsinger/pkg/provider/pitchshift"
	shiftmock "github.com/chordsinger/chordsinger/pkg/provider/pitchshift/mock"
	"github.com/chordsinger/chordsinger/pkg/provider/pitchshift/rubberband"
	"github.com/chordsinger/chordsinger/pkg/provider/tts"
	"github.com/chordsinger/chordsinger/pkg/provider/tts/coqui"
	ttsmock "github.com/chordsinger/chordsinger/pkg/provider/tts/mock"
)

// version is stamped at build time via -ldflags.
var version = "dev"

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
			fmt.Fprintf(os.Stderr, "chordsinger: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chordsinger: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("chordsinger starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
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

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Audio.SampleRate)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	var singOpts []singer.Option
	if cfg.Voice.BaselineHz > 0 {
		singOpts = append(singOpts, singer.WithBaseline(cfg.Voice.BaselineHz))
	}
	if !cfg.Voice.EffectsEnabled() {
		singOpts = append(singOpts, singer.WithoutEffects())
	}
	sing := singer.New(providers.TTS, providers.Shifter, singOpts...)

	processor := &job.Processor{
		Singer:             sing,
		Workers:            cfg.Jobs.Workers,
		Timeout:            cfg.Jobs.Timeout,
		InstrumentalGainDB: cfg.Mix.InstrumentalGainDB,
		VocalGainDB:        cfg.Mix.VocalGainDB,
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	server := &api.Server{
		Jobs:        job.NewRegistry(),
		Processor:   processor,
		Health:      health.New(providers.Checkers...),
		MaxUploadMB: cfg.Jobs.MaxUploadMB,
		SampleRate:  cfg.Audio.SampleRate,
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.MixChanged || d.VoiceChanged {
			// Running pipelines keep their construction-time settings.
			slog.Warn("mix/voice settings changed on disk, restart to apply",
				"mix_changed", d.MixChanged, "voice_changed", d.VoiceChanged)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, addr)

	// ── Serve ─────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		if cfg.Server.TLS != nil {
			errCh <- httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
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

// providerSet bundles the instantiated providers with their health checkers.
type providerSet struct {
	TTS      tts.Provider
	Shifter  pitchshift.Shifter
	Checkers []health.Checker
}

// registerBuiltinProviders wires the provider factories that ship with
// chordsinger into reg. sampleRate is the pipeline's working rate; networked
// TTS engines resample their output to it.
func registerBuiltinProviders(reg *config.Registry, sampleRate int) {
	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if id := entry.StringOption("speaker_id"); id != "" {
			opts = append(opts, coqui.WithSpeaker(id))
		}
		if lang := entry.StringOption("language_id"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if sampleRate > 0 {
			opts = append(opts, coqui.WithOutputRate(sampleRate))
		}
		return coqui.New(entry.BaseURL, opts...), nil
	})

	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	// ── Pitch shifting ────────────────────────────────────────────────────────

	reg.RegisterPitchShift("rubberband", func(entry config.ProviderEntry) (pitchshift.Shifter, error) {
		command := entry.Command
		if command == "" {
			command = "rubberband"
		}
		return rubberband.New(command)
	})

	reg.RegisterPitchShift("resample", func(config.ProviderEntry) (pitchshift.Shifter, error) {
		return pitchshift.Resample{}, nil
	})

	reg.RegisterPitchShift("mock", func(config.ProviderEntry) (pitchshift.Shifter, error) {
		return &shiftmock.Shifter{}, nil
	})
}

// buildProviders instantiates the providers named in cfg, wraps the TTS chain
// in its failover and serialisation layers, and collects readiness checkers.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	primaryName := cfg.Providers.TTS.Name
	if primaryName == "" {
		return nil, errors.New("no tts provider configured")
	}
	primary, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", primaryName, err)
	}
	slog.Info("provider created", "kind", "tts", "name", primaryName)
	if prober, ok := primary.(health.Prober); ok {
		ps.Checkers = append(ps.Checkers, health.CheckProber("tts", prober))
	}

	ps.TTS = primary
	if len(cfg.Providers.TTSFallbacks) > 0 {
		fb := resilience.NewTTSFallback(primary, primaryName, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.TTSFallbacks {
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
			}
			fb.AddFallback(entry.Name, p)
			slog.Info("provider created", "kind", "tts-fallback", "name", entry.Name)
		}
		ps.TTS = fb
	}
	// The Coqui server owns one model context; fan-out happens around it.
	ps.TTS = tts.Serialized(ps.TTS)

	switch name := cfg.Providers.PitchShift.Name; name {
	case "":
		slog.Warn("no pitchshift provider configured, using resampling (duration-safe, lower quality)")
		ps.Shifter = pitchshift.Resample{}
	default:
		sh, err := reg.CreatePitchShift(cfg.Providers.PitchShift)
		if err != nil {
			return nil, fmt.Errorf("create pitchshift provider %q: %w", name, err)
		}
		ps.Shifter = sh
		slog.Info("provider created", "kind", "pitchshift", "name", name)
		if name == "rubberband" {
			binary := "rubberband"
			if fields := strings.Fields(cfg.Providers.PitchShift.Command); len(fields) > 0 {
				binary = fields[0]
			}
			ps.Checkers = append(ps.Checkers, health.CheckBinary("pitchshift", binary))
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, addr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       chordsinger — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("TTS", orDefault(cfg.Providers.TTS.Name, "(not configured)"))
	printEntry("Pitch shift", orDefault(cfg.Providers.PitchShift.Name, "resample"))
	printEntry("TTS fallbacks", fmt.Sprintf("%d", len(cfg.Providers.TTSFallbacks)))
	printEntry("Workers", fmt.Sprintf("%d", cfg.Jobs.Workers))
	printEntry("Effects", fmt.Sprintf("%t", cfg.Voice.EffectsEnabled()))
	printEntry("Listen addr", addr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", name, value)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ── Logger ────────────────────────────────────────────────────────────────────

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
