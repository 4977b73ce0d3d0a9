package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Keywords []string `yaml:"keywords"`
	Trends   Trends   `yaml:"trends"`
	Output   Output   `yaml:"output"`
	Git      Git      `yaml:"git"`
	Logs     Logs     `yaml:"logs"`
}

// Trends configures the Google Trends client.
type Trends struct {
	HL             string `yaml:"hl"`
	TZ             int    `yaml:"tz"`
	Timeframe      string `yaml:"timeframe"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BaseBackoffMS  int    `yaml:"base_backoff_ms"`
}

// Output locates the dataset repository this pipeline writes into.
type Output struct {
	RepoDir string `yaml:"repo_dir"`
}

// Git configures the publish step.
type Git struct {
	Enabled      bool   `yaml:"enabled"`
	Remote       string `yaml:"remote"`
	Branch       string `yaml:"branch"`
	CommitPrefix string `yaml:"commit_prefix"`
}

// Logs configures run logging and retention.
type Logs struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// ConfigDir returns the XDG config directory for trendpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "trendpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/trendpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'trendpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Keywords: []string{
			"meditation",
			"mindfulness",
			"breathwork",
			"guided meditation",
			"yoga nidra",
		},
		Trends: Trends{
			HL:             "en-US",
			TZ:             360,
			Timeframe:      "today 5-y",
			TimeoutSeconds: 45,
			MaxAttempts:    6,
			BaseBackoffMS:  600,
		},
		Output: Output{RepoDir: "."},
		Git: Git{
			Enabled:      true,
			Remote:       "origin",
			Branch:       "main",
			CommitPrefix: "Auto-update trend datasets",
		},
		Logs: Logs{RetentionDays: 180},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("config: keywords must not be empty")
	}

	return cfg, nil
}

// RepoDir returns the dataset repository root.
func (c *Config) RepoDir() string {
	if c.Output.RepoDir != "" {
		return c.Output.RepoDir
	}
	return "."
}

// ArtifactsDir returns the directory CSV artifacts are written into.
// The data/streamlit subtree is fixed: the dashboard reads from it.
func (c *Config) ArtifactsDir() string {
	return filepath.Join(c.RepoDir(), "data", "streamlit")
}

// DBPath returns the run-ledger database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.RepoDir(), "trendpulse.db")
}

// LogsDir returns the directory monthly run logs are written into.
func (c *Config) LogsDir() string {
	if c.Logs.Dir != "" {
		return c.Logs.Dir
	}
	return filepath.Join(c.RepoDir(), "logs")
}

// LogRetention returns the retention window for run logs.
func (c *Config) LogRetention() time.Duration {
	days := c.Logs.RetentionDays
	if days <= 0 {
		days = 180
	}
	return time.Duration(days) * 24 * time.Hour
}

// RequestTimeout returns the per-request timeout for the Trends client.
func (c *Config) RequestTimeout() time.Duration {
	if c.Trends.TimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.Trends.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
