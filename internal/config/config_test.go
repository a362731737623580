package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.DataDir = "/srv/dillinger"
	return cfg
}

func TestValidateValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Setenv(RootDirEnv, "")
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidateMissingDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing data_dir")
	}
}

func TestValidateRelativeDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = "data"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative data_dir")
	}
}

func TestValidatePortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Service.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 0")
	}
	cfg.Service.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 70000")
	}
}

func TestValidateInvalidAuthMode(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "oauth"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid auth mode")
	}
}

func TestValidatePasswordModeNeedsHash(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = AuthModePassword
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for password mode without hash")
	}
	cfg.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDockerSocket(t *testing.T) {
	cfg := validConfig()
	cfg.Docker.Socket = "docker.sock"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative socket")
	}
	cfg.Docker.Socket = "tcp://127.0.0.1:2375"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("tcp socket rejected: %v", err)
	}
}

func TestValidatePollInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Installer.PollInterval = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unparsable poll_interval")
	}
	cfg.Installer.PollInterval = "10ms"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for tiny poll_interval")
	}
	cfg.Installer.PollInterval = "5s"
	if got := cfg.PollInterval(); got != 5*time.Second {
		t.Errorf("PollInterval = %s", got)
	}
}

func TestValidateDefaultArch(t *testing.T) {
	cfg := validConfig()
	cfg.Installer.DefaultArch = "x86"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid default_arch")
	}
}

func TestValidateNATSURL(t *testing.T) {
	cfg := validConfig()
	cfg.Events.NATSURL = "http://localhost:4222"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-nats URL")
	}
	cfg.Events.NATSURL = "nats://localhost:4222"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRootDirOverride(t *testing.T) {
	t.Setenv(RootDirEnv, "/opt/dillinger")
	if got := ConfigPath(); got != "/opt/dillinger/config.yml" {
		t.Errorf("ConfigPath = %q", got)
	}
	cfg := Default()
	if cfg.DataDir != "/opt/dillinger/data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Log.File != "/opt/dillinger/logs/dillinger.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
	if cfg.DBPath() != "/opt/dillinger/data/dillinger.db" {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestConfigPathDefault(t *testing.T) {
	t.Setenv(RootDirEnv, "")
	if got := ConfigPath(); got != DefaultConfigPath {
		t.Errorf("ConfigPath = %q", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.yml")

	cfg := validConfig()
	cfg.Service.Port = 8099
	cfg.Docker.GPU = true
	cfg.Installer.RequirePlatform = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Fatalf("expected 0640 permissions, got %o", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DataDir != cfg.DataDir {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, cfg.DataDir)
	}
	if loaded.Service.Port != 8099 {
		t.Errorf("port: got %d, want 8099", loaded.Service.Port)
	}
	if !loaded.Docker.GPU || !loaded.Installer.RequirePlatform {
		t.Errorf("booleans lost: %+v %+v", loaded.Docker, loaded.Installer)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	os.WriteFile(path, []byte("data_dir: /srv/games-db\nservice:\n  port: 9000\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Service.Port != 9000 || cfg.Service.BindAddress != DefaultBindAddress {
		t.Errorf("service = %+v", cfg.Service)
	}
	if cfg.Docker.WineImage != DefaultWineImage {
		t.Errorf("wine_image = %q", cfg.Docker.WineImage)
	}
}

func TestLoadLegacyRootDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	os.WriteFile(path, []byte("root_dir: /srv/legacy\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/srv/legacy" {
		t.Errorf("data_dir = %q, want legacy root_dir", cfg.DataDir)
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Service.Port != DefaultPort {
		t.Errorf("port = %d", cfg.Service.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	os.WriteFile(path, []byte("{{invalid yaml"), 0644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
