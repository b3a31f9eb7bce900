// Package config loads and validates strictpatch configuration.
// Configuration lives at .strictpatch/config.yaml inside the workspace;
// missing files fall back to defaults so the tool works out of the box.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all strictpatch configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Patch executor limits
	Patch PatchConfig `yaml:"patch"`

	// Verification pipeline settings
	Verification VerificationConfig `yaml:"verification"`

	// Backup store and retention
	Backups BackupConfig `yaml:"backups"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry (Prometheus)
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PatchConfig configures the patch executor.
type PatchConfig struct {
	// Maximum lines in a replacement before the caller must opt in
	MaxLinesChanged int `yaml:"max_lines_changed"`

	// Preview length for old/new content in results
	PreviewLength int `yaml:"preview_length"`

	// Queue depth for pending requests; Submit blocks when full
	QueueDepth int `yaml:"queue_depth"`
}

// VerificationConfig configures the post-write verification pipeline.
type VerificationConfig struct {
	// Maximum file size accepted by the integrity step
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// Per-step timeout; a step that exceeds it degrades to a warning
	StepTimeout string `yaml:"step_timeout"`

	// Fail the pipeline when the external type checker is missing
	// instead of degrading to a warning
	FailClosed bool `yaml:"fail_closed"`

	// Enable the shallow import/export scan by default
	BuildCheck bool `yaml:"build_check"`

	// Enable non-Latin script integrity checking by default
	TextCheck bool `yaml:"text_check"`

	// Unicode script validated by the text check
	TextScript string `yaml:"text_script"`

	// External type checker binaries by extension, e.g. ".ts": ["npx", "tsc", "--noEmit"]
	TypeCheckers map[string][]string `yaml:"type_checkers"`
}

// BackupConfig configures the backup store and retention policy.
type BackupConfig struct {
	// Directory holding backup content files and the metadata index
	Dir string `yaml:"dir"`

	// Retention limits
	MaxCount int    `yaml:"max_count"`
	MaxAge   string `yaml:"max_age"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// TelemetryConfig configures the optional Prometheus metrics.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// e.g. ":9090". Empty to disable the standalone /metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "strictpatch",
		Version: "1.0.0",

		Patch: PatchConfig{
			MaxLinesChanged: 50,
			PreviewLength:   100,
			QueueDepth:      64,
		},

		Verification: VerificationConfig{
			MaxFileSizeBytes: 1 << 20, // 1 MiB
			StepTimeout:      "5s",
			FailClosed:       false,
			BuildCheck:       false,
			TextCheck:        false,
			TextScript:       "Hebrew",
			TypeCheckers: map[string][]string{
				".ts":  {"npx", "tsc", "--noEmit", "--allowJs", "--checkJs", "false"},
				".tsx": {"npx", "tsc", "--noEmit"},
				".js":  {"node", "--check"},
				".mjs": {"node", "--check"},
			},
		},

		Backups: BackupConfig{
			Dir:      ".strictpatch/backups",
			MaxCount: 10,
			MaxAge:   "168h", // 7 days
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadWorkspace loads configuration for the given workspace directory.
func LoadWorkspace(workspace string) (*Config, error) {
	return Load(filepath.Join(workspace, ".strictpatch", "config.yaml"))
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("STRICTPATCH_BACKUP_DIR"); dir != "" {
		c.Backups.Dir = dir
	}
	if addr := os.Getenv("STRICTPATCH_METRICS_ADDR"); addr != "" {
		c.Telemetry.MetricsAddr = addr
		c.Telemetry.Enabled = true
	}
}

// GetStepTimeout returns the verification step timeout as a duration.
func (c *Config) GetStepTimeout() time.Duration {
	d, err := time.ParseDuration(c.Verification.StepTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// GetMaxBackupAge returns the retention max age as a duration.
func (c *Config) GetMaxBackupAge() time.Duration {
	d, err := time.ParseDuration(c.Backups.MaxAge)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
