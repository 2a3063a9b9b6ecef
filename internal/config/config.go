package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Lyria LyriaConfig `yaml:"lyria"`
	Audio AudioConfig `yaml:"audio"`
	Web   WebConfig   `yaml:"web"`
	DB    DBConfig    `yaml:"db"`
}

type LyriaConfig struct {
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`          // e.g. "models/lyria-realtime-exp"
	AutoReconnect bool    `yaml:"auto_reconnect"` // reconnect on session expiry
	LeadSeconds   float64 `yaml:"lead_seconds"`   // buffer ahead before playback starts
}

type AudioConfig struct {
	Output     string `yaml:"output"` // "ffplay", "stdout" or "none"
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type WebConfig struct {
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // bootstrap only; panel password lives in the store
}

type DBConfig struct {
	Path string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		Lyria: LyriaConfig{
			Model:         "models/lyria-realtime-exp",
			AutoReconnect: true,
			LeadSeconds:   1.8,
		},
		Audio: AudioConfig{
			Output:     "ffplay",
			SampleRate: 48000,
			Channels:   2,
		},
		Web: WebConfig{
			Port:     8080,
			Username: "admin",
		},
		DB: DBConfig{
			Path: "underlay.db",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	switch cfg.Audio.Output {
	case "ffplay", "stdout", "none":
	default:
		return nil, fmt.Errorf("unknown audio output %q (want ffplay, stdout or none)", cfg.Audio.Output)
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return nil, fmt.Errorf("invalid channel count %d (want 1 or 2)", cfg.Audio.Channels)
	}

	return cfg, nil
}
