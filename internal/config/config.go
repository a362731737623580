package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration written to config.yml.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Log       LogConfig       `yaml:"log"`
	Service   ServiceConfig   `yaml:"service"`
	Auth      AuthConfig      `yaml:"auth"`
	Docker    DockerConfig    `yaml:"docker"`
	Installer InstallerConfig `yaml:"installer"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ServiceConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

type AuthConfig struct {
	Mode         string `yaml:"mode"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

type DockerConfig struct {
	Socket    string `yaml:"socket"`
	WineImage string `yaml:"wine_image"`
	Network   string `yaml:"network,omitempty"`
	GPU       bool   `yaml:"gpu"`
}

type InstallerConfig struct {
	PollInterval string `yaml:"poll_interval"`
	DefaultArch  string `yaml:"default_arch"`
	// RequirePlatform refuses to remove a game's last platform.
	RequirePlatform bool `yaml:"require_platform"`
}

type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses a config file from the given path. Keys missing
// from the file keep their defaults. The legacy top-level "root_dir" key is
// accepted as data_dir.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err == nil {
		if _, set := raw["data_dir"]; !set {
			if v, ok := raw["root_dir"].(string); ok && v != "" {
				cfg.DataDir = v
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks that all required fields are present and values are in range.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if !filepath.IsAbs(c.DataDir) {
		return fmt.Errorf("data_dir must be an absolute path")
	}

	// Log rotation
	if c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("log.max_size_mb must be >= 1")
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be >= 0")
	}
	if c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log.max_age_days must be >= 0")
	}

	// Service
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be between 1 and 65535")
	}
	if c.Service.BindAddress == "" {
		return fmt.Errorf("service.bind_address is required")
	}

	// Auth mode
	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModePassword:
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth.password_hash is required when auth.mode is %q", AuthModePassword)
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q", AuthModeNone, AuthModePassword)
	}

	// Docker
	if c.Docker.Socket == "" {
		return fmt.Errorf("docker.socket is required")
	}
	if !strings.HasPrefix(c.Docker.Socket, "/") && !strings.HasPrefix(c.Docker.Socket, "unix://") && !strings.HasPrefix(c.Docker.Socket, "tcp://") {
		return fmt.Errorf("docker.socket must be an absolute path, unix:// or tcp:// address")
	}
	if c.Docker.WineImage == "" {
		return fmt.Errorf("docker.wine_image is required")
	}

	// Installer
	d, err := time.ParseDuration(c.Installer.PollInterval)
	if err != nil {
		return fmt.Errorf("installer.poll_interval: %w", err)
	}
	if d < 100*time.Millisecond {
		return fmt.Errorf("installer.poll_interval must be at least 100ms")
	}
	switch c.Installer.DefaultArch {
	case "win32", "win64":
	default:
		return fmt.Errorf("installer.default_arch must be %q or %q", "win32", "win64")
	}

	// Events
	if c.Events.NATSURL != "" {
		if !strings.HasPrefix(c.Events.NATSURL, "nats://") && !strings.HasPrefix(c.Events.NATSURL, "tls://") {
			return fmt.Errorf("events.nats_url must be a nats:// or tls:// URL")
		}
		if c.Events.Subject == "" {
			return fmt.Errorf("events.subject is required when events.nats_url is set")
		}
	}

	return nil
}

// PollInterval returns installer.poll_interval as a duration.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Installer.PollInterval)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// DBPath returns the SQLite database path under data_dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

// ListenAddr returns the service's host:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.BindAddress, c.Service.Port)
}

// Save writes the config to the given path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
