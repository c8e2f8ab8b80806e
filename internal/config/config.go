// Package config loads scenario-miner's mining/replay configuration from
// .scenario-miner/config.json, with an uncommitted .scenario-miner/config.local.json
// layered on top, following the same load-then-merge-presence-only shape the
// teacher uses for its own settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scenario-miner/scenario-miner/internal/jsonutil"
	"github.com/scenario-miner/scenario-miner/internal/miner"
)

const (
	// ConfigFile is the committed configuration file.
	ConfigFile = ".scenario-miner/config.json"
	// ConfigLocalFile overrides ConfigFile and is not meant to be committed.
	ConfigLocalFile = ".scenario-miner/config.local.json"
)

// Config is the on-disk shape of .scenario-miner/config.json.
type Config struct {
	// Window is the minimum file-commit-gram run length the miner emits.
	Window int `json:"window"`
	// Language restricts grams to paths matching this tag (empty = no filter).
	Language string `json:"language,omitempty"`
	// LanguageMatch is "substring" (default) or "suffix".
	LanguageMatch string `json:"language_match,omitempty"`

	// Image is the container image replay runs sandboxed agents against.
	Image string `json:"image,omitempty"`
	// CommandTimeoutSeconds bounds every sandbox exec call.
	CommandTimeoutSeconds int `json:"command_timeout_seconds,omitempty"`
	// StartTimeoutSeconds bounds the container created->running poll loop.
	StartTimeoutSeconds int `json:"start_timeout_seconds,omitempty"`
	// MaxOutputBytes truncates captured exec output.
	MaxOutputBytes int `json:"max_output_bytes,omitempty"`

	// RebaseEvaluationMode is "count-only" (default) or "count-and-diff".
	RebaseEvaluationMode string `json:"rebase_evaluation_mode,omitempty"`

	// LogLevel sets logging verbosity (debug, info, warn, error). Overridden
	// by the SCENARIO_MINER_LOG_LEVEL environment variable.
	LogLevel string `json:"log_level,omitempty"`

	// Telemetry controls anonymous usage analytics: nil = not asked yet
	// (show prompt), true = opted in, false = opted out.
	Telemetry *bool `json:"telemetry,omitempty"`
}

// defaults returns the configuration used when no file is present, or for
// any field a present file leaves unset.
func defaults() *Config {
	return &Config{
		Window:                2,
		LanguageMatch:         "substring",
		CommandTimeoutSeconds: 120,
		StartTimeoutSeconds:   30,
		MaxOutputBytes:        1 << 20,
		RebaseEvaluationMode:  "count-only",
		LogLevel:              "info",
	}
}

// MinerLanguageMatch converts the configured mode to miner.LanguageMatch,
// defaulting to Substring for an empty or unrecognized value.
func (c *Config) MinerLanguageMatch() miner.LanguageMatch {
	if c.LanguageMatch == "suffix" {
		return miner.Suffix
	}
	return miner.Substring
}

// CommandTimeout returns CommandTimeoutSeconds as a time.Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// StartTimeout returns StartTimeoutSeconds as a time.Duration.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// Load reads ConfigFile, then layers ConfigLocalFile's present fields on
// top. Missing files fall back to defaults(); malformed files are an error.
func Load() (*Config, error) {
	cfg, err := loadFromFile(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	localData, err := os.ReadFile(ConfigLocalFile) //nolint:gosec // constant path
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local config file: %w", err)
		}
		return cfg, nil
	}
	if err := mergePresentFields(cfg, localData); err != nil {
		return nil, fmt.Errorf("merging local config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path) //nolint:gosec // constant path
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// mergePresentFields overrides only the fields data actually sets, so an
// empty local config file changes nothing instead of reverting every field
// to its JSON zero value.
func mergePresentFields(cfg *Config, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	type field struct {
		key string
		dst any
	}
	fields := []field{
		{"window", &cfg.Window},
		{"language", &cfg.Language},
		{"language_match", &cfg.LanguageMatch},
		{"image", &cfg.Image},
		{"command_timeout_seconds", &cfg.CommandTimeoutSeconds},
		{"start_timeout_seconds", &cfg.StartTimeoutSeconds},
		{"max_output_bytes", &cfg.MaxOutputBytes},
		{"rebase_evaluation_mode", &cfg.RebaseEvaluationMode},
		{"log_level", &cfg.LogLevel},
	}
	for _, f := range fields {
		r, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(r, f.dst); err != nil {
			return fmt.Errorf("parsing %s field: %w", f.key, err)
		}
	}

	if telemetryRaw, ok := raw["telemetry"]; ok {
		var t bool
		if err := json.Unmarshal(telemetryRaw, &t); err != nil {
			return fmt.Errorf("parsing telemetry field: %w", err)
		}
		cfg.Telemetry = &t
	}

	return nil
}

// Save writes cfg to ConfigFile, creating its directory if necessary.
func Save(cfg *Config) error {
	return saveToFile(cfg, ConfigFile)
}

// SaveLocal writes cfg to ConfigLocalFile.
func SaveLocal(cfg *Config) error {
	return saveToFile(cfg, ConfigLocalFile)
}

func saveToFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	//nolint:gosec // G306: config file, not secrets
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
