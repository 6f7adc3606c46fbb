// Package config loads sketchsync settings from a TOML file layered over
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/roach88/sketchsync/internal/backend"
	"github.com/roach88/sketchsync/internal/replica"
)

const defaultLogLevel = "info"

type Config struct {
	Replica ReplicaConfig `toml:"replica"`
	Undo    UndoConfig    `toml:"undo"`
	Journal JournalConfig `toml:"journal"`
	Logging LoggingConfig `toml:"logging"`
}

type ReplicaConfig struct {
	// RefreshDelay postpones the static property refresh after a
	// regulation removal. Go duration syntax; "0s" disables it.
	RefreshDelay string `toml:"refresh_delay"`
}

type UndoConfig struct {
	EventLimit   int `toml:"event_limit"`
	PayloadLimit int `toml:"payload_limit"`
}

type JournalConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Replica: ReplicaConfig{
			RefreshDelay: replica.DefaultRefreshDelay.String(),
		},
		Undo: UndoConfig{
			EventLimit:   backend.DefaultEventLimit,
			PayloadLimit: backend.DefaultPayloadLimit,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}

// Load reads path over Default. An empty path, a missing file or an empty
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if _, err := c.RefreshDelay(); err != nil {
		return err
	}
	if c.Undo.EventLimit < 0 {
		return fmt.Errorf("undo.event_limit: must not be negative, got %d", c.Undo.EventLimit)
	}
	if c.Undo.PayloadLimit < 0 {
		return fmt.Errorf("undo.payload_limit: must not be negative, got %d", c.Undo.PayloadLimit)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) RefreshDelay() (time.Duration, error) {
	raw := strings.TrimSpace(c.Replica.RefreshDelay)
	if raw == "" {
		return replica.DefaultRefreshDelay, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("replica.refresh_delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("replica.refresh_delay: must not be negative, got %s", d)
	}
	return d, nil
}

func (c Config) LogLevel() (slog.Level, error) {
	raw := strings.TrimSpace(c.Logging.Level)
	if raw == "" {
		raw = defaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Policy returns the replica's reconciliation policy.
func (c Config) Policy() (replica.Policy, error) {
	d, err := c.RefreshDelay()
	if err != nil {
		return replica.Policy{}, err
	}
	return replica.Policy{RefreshDelay: d}, nil
}

// BackendOptions applies the undo history limits.
func (c Config) BackendOptions() []backend.Option {
	return []backend.Option{backend.WithHistoryLimits(c.Undo.EventLimit, c.Undo.PayloadLimit)}
}

// Marshal renders c as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}
