package config

import (
	"os"
	"path/filepath"
)

const (
	// RootDirEnv overrides where config, data and logs live.
	RootDirEnv = "DILLINGER_ROOT_DIR"

	// Filesystem paths
	DefaultConfigPath = "/etc/dillinger/config.yml"
	DefaultDataDir    = "/var/lib/dillinger"
	DefaultLogDir     = "/var/log/dillinger"
	DatabaseFile      = "dillinger.db"
	LogFile           = "dillinger.log"

	// Service defaults
	DefaultBindAddress = "0.0.0.0"
	DefaultPort        = 3060

	// Log rotation
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 28

	// Docker
	DefaultDockerSocket = "/var/run/docker.sock"
	DefaultWineImage    = "dillinger-wine:latest"

	// Installer
	DefaultPollInterval = "3s"
	DefaultArch         = "win64"

	// Events
	DefaultEventsSubject = "dillinger"

	// Auth modes
	AuthModeNone     = "none"
	AuthModePassword = "password"
)

// RootDir returns $DILLINGER_ROOT_DIR, or "" when it is not set.
func RootDir() string {
	return os.Getenv(RootDirEnv)
}

// ConfigPath returns the config file location: $DILLINGER_ROOT_DIR/config.yml
// when the root is overridden, else DefaultConfigPath.
func ConfigPath() string {
	if root := RootDir(); root != "" {
		return filepath.Join(root, "config.yml")
	}
	return DefaultConfigPath
}

// Default returns a config with every field at its default, honouring
// $DILLINGER_ROOT_DIR.
func Default() *Config {
	dataDir, logDir := DefaultDataDir, DefaultLogDir
	if root := RootDir(); root != "" {
		dataDir = filepath.Join(root, "data")
		logDir = filepath.Join(root, "logs")
	}
	return &Config{
		DataDir: dataDir,
		Log: LogConfig{
			File:       filepath.Join(logDir, LogFile),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   true,
		},
		Service: ServiceConfig{
			BindAddress: DefaultBindAddress,
			Port:        DefaultPort,
		},
		Auth: AuthConfig{Mode: AuthModeNone},
		Docker: DockerConfig{
			Socket:    DefaultDockerSocket,
			WineImage: DefaultWineImage,
		},
		Installer: InstallerConfig{
			PollInterval: DefaultPollInterval,
			DefaultArch:  DefaultArch,
		},
		Events: EventsConfig{Subject: DefaultEventsSubject},
		Metrics: MetricsConfig{Enabled: true},
	}
}
