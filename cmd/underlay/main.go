package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annsts/underlay/internal/config"
	"github.com/annsts/underlay/internal/lyria"
	"github.com/annsts/underlay/internal/output"
	"github.com/annsts/underlay/internal/player"
	"github.com/annsts/underlay/internal/settings"
	"github.com/annsts/underlay/internal/web"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  underlay run [config]     Start the music engine & control panel")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cfgPath := "config.yaml"
		if len(os.Args) > 2 {
			cfgPath = os.Args[2]
		}
		if err := run(cfgPath); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	hc, err := config.NewHotConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := hc.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	store, err := settings.NewStore(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	sink, err := openSink(ctx, cfg.Audio)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	timeline := output.NewTimeline(sink, cfg.Audio.SampleRate, cfg.Audio.Channels)
	defer timeline.Close()

	model := cfg.Lyria.Model
	dial := func(ctx context.Context, key string, cb lyria.Callbacks) (lyria.MusicSession, error) {
		d := lyria.Dialer{APIKey: key, Model: model}
		return d.Connect(ctx, cb)
	}

	p := player.New(dial, timeline,
		player.WithLead(time.Duration(cfg.Lyria.LeadSeconds*float64(time.Second))),
		player.WithFormat(cfg.Audio.SampleRate, cfg.Audio.Channels),
	)

	if err := restoreSettings(ctx, p, store, cfg); err != nil {
		return fmt.Errorf("restore settings: %w", err)
	}
	p.SetAPIKey(ctx, cfg.Lyria.APIKey)
	if cfg.Lyria.APIKey == "" {
		slog.Warn("no API key configured; set lyria.api_key to enable playback")
	}

	if cfg.Web.Password != "" {
		if err := store.EnsureAdmin(cfg.Web.Username, cfg.Web.Password); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	} else {
		slog.Warn("web.password not set; panel login uses previously stored credentials")
	}

	webServer := web.NewServer(p, store, cfg.Web.Port)
	webServer.Start()

	// Credential and password changes apply without a restart.
	hc.OnReload(func(c *config.Config) {
		p.SetAPIKey(context.Background(), c.Lyria.APIKey)
		if c.Web.Password != "" {
			if err := store.EnsureAdmin(c.Web.Username, c.Web.Password); err != nil {
				slog.Error("update admin credentials", "err", err)
			}
		}
	})
	hc.Watch()

	slog.Info("underlay started",
		"model", model,
		"output", cfg.Audio.Output,
		"web", fmt.Sprintf("http://localhost:%d", cfg.Web.Port),
	)

	<-ctx.Done()
	p.Stop(context.Background())
	return nil
}

func openSink(ctx context.Context, cfg config.AudioConfig) (io.WriteCloser, error) {
	switch cfg.Output {
	case "ffplay":
		return output.NewFFPlaySink(ctx, cfg.SampleRate, cfg.Channels)
	case "stdout":
		return output.NewWriterSink(os.Stdout), nil
	default:
		return output.Discard, nil
	}
}

// restoreSettings replays the persisted panel state onto a fresh
// player: seed, generation config, layers, volume, auto-reconnect.
func restoreSettings(ctx context.Context, p *player.Player, store *settings.Store, cfg *config.Config) error {
	seed, err := store.Seed()
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	genCfg, ok := store.Config()
	if !ok {
		genCfg = player.DefaultConfig()
	}
	genCfg.Seed = seed
	p.SetConfig(ctx, genCfg)

	if layers, ok := store.Layers(); ok {
		p.SetLayers(ctx, layers)
	}
	if v, ok := store.Volume(); ok {
		p.SetVolume(v)
	}
	auto := cfg.Lyria.AutoReconnect
	if v, ok := store.AutoReconnect(); ok {
		auto = v
	}
	p.SetAutoReconnect(auto)
	return nil
}
