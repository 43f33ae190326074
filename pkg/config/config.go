package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".gosec-posture"
	configFileName = "config.yaml"

	// DefaultDSNEnv names the environment variable holding the postgres DSN.
	DefaultDSNEnv = "GOSEC_POSTURE_DB_DSN"
)

// Incident store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// Thresholds are the configurable collector thresholds. The scoring cut
// points themselves are fixed policy and live in pkg/scoring.
type Thresholds struct {
	RiskProcessMemoryMB   uint64 `yaml:"risk_process_memory_mb"`
	ThreatProcessMemoryMB uint64 `yaml:"threat_process_memory_mb"`
}

type NetworkConfig struct {
	// PrivateRanges are CIDRs treated as internal in addition to RFC1918.
	PrivateRanges []string `yaml:"private_ranges"`
}

type CollectorConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	CPUSampleInterval time.Duration `yaml:"cpu_sample_interval"`
}

type ChecksConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	ProfileDir      string        `yaml:"profile_dir"`
	RemediationDir  string        `yaml:"remediation_dir"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type IncidentsConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSNEnv  string `yaml:"dsn_env"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Thresholds Thresholds      `yaml:"thresholds"`
	Network    NetworkConfig   `yaml:"network"`
	Collector  CollectorConfig `yaml:"collector"`
	Checks     ChecksConfig    `yaml:"checks"`
	Incidents  IncidentsConfig `yaml:"incidents"`
	Logging    LoggingConfig   `yaml:"logging"`
	Metrics    MetricsConfig   `yaml:"metrics"`

	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Thresholds: Thresholds{
			RiskProcessMemoryMB:   100,
			ThreatProcessMemoryMB: 500,
		},
		Collector: CollectorConfig{
			Timeout:           5 * time.Second,
			CPUSampleInterval: 500 * time.Millisecond,
		},
		Checks: ChecksConfig{
			Timeout:         10 * time.Second,
			BreakerFailures: 3,
			BreakerCooldown: 5 * time.Minute,
		},
		Incidents: IncidentsConfig{
			Backend: BackendFile,
			DSNEnv:  DefaultDSNEnv,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-pro",
		Providers:        make(map[string]ProviderConfig),
	}
}

// Dir returns ~/.gosec-posture, creating it with 0700 permissions.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return configDir, nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadConfig reads the config from the default location.
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields Default().
// Fields absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to path with 0600 permissions (api keys).
func SaveTo(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Thresholds.RiskProcessMemoryMB == 0 {
		errs = append(errs, errors.New("thresholds.risk_process_memory_mb must be > 0"))
	}
	if c.Thresholds.ThreatProcessMemoryMB == 0 {
		errs = append(errs, errors.New("thresholds.threat_process_memory_mb must be > 0"))
	}
	for _, r := range c.Network.PrivateRanges {
		if _, _, err := net.ParseCIDR(r); err != nil {
			errs = append(errs, fmt.Errorf("network.private_ranges: %w", err))
		}
	}
	if c.Collector.Timeout <= 0 {
		errs = append(errs, errors.New("collector.timeout must be positive"))
	}
	if c.Checks.Timeout <= 0 {
		errs = append(errs, errors.New("checks.timeout must be positive"))
	}
	switch c.Incidents.Backend {
	case BackendMemory, BackendFile, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("incidents.backend %q is not one of memory, file, postgres", c.Incidents.Backend))
	}
	return errors.Join(errs...)
}

// IncidentPath returns the file store location, defaulting to
// ~/.gosec-posture/incidents.jsonl.
func (c *Config) IncidentPath() (string, error) {
	if c.Incidents.Path != "" {
		return c.Incidents.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "incidents.jsonl"), nil
}

// DSN resolves the postgres DSN from the environment. It is never stored
// in the config file.
func (c *Config) DSN() (string, error) {
	name := c.Incidents.DSNEnv
	if name == "" {
		name = DefaultDSNEnv
	}
	dsn := os.Getenv(name)
	if dsn == "" {
		return "", fmt.Errorf("postgres backend selected but %s is not set", name)
	}
	return dsn, nil
}

func (c *Config) SetAPIKey(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}
