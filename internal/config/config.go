package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Sim       SimConfig       `toml:"sim"`
	Network   NetworkConfig   `toml:"network"`
	Data      DataConfig      `toml:"data"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name string `toml:"name"`
	ID   int    `toml:"id"`
}

type SimConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
	// StrictLifecycle turns tolerated lifecycle misuse (re-entrant deletion)
	// into hard failures. Off in production, on in development.
	StrictLifecycle bool `toml:"strict_lifecycle"`
	// LogLateMessages logs inbound messages whose source tick is already
	// behind the local clock when they dispatch.
	LogLateMessages bool `toml:"log_late_messages"`
}

type NetworkConfig struct {
	BindAddress      string        `toml:"bind_address"`
	InQueueSize      int           `toml:"in_queue_size"`
	OutQueueSize     int           `toml:"out_queue_size"`
	MaxFramesPerTick int           `toml:"max_frames_per_tick"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
}

type DataConfig struct {
	PrototypePath string `toml:"prototype_path"`
}

type ScriptingConfig struct {
	ScriptDir string `toml:"script_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "stationd",
			ID:   1,
		},
		Sim: SimConfig{
			TickRate:        50 * time.Millisecond,
			StrictLifecycle: false,
			LogLateMessages: false,
		},
		Network: NetworkConfig{
			BindAddress:      "0.0.0.0:7777",
			InQueueSize:      128,
			OutQueueSize:     256,
			MaxFramesPerTick: 32,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Data: DataConfig{
			PrototypePath: "data/prototypes.yaml",
		},
		Scripting: ScriptingConfig{
			ScriptDir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
