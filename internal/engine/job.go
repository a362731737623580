package engine

import (
	"context"

	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/scanner"
	"github.com/thrane20/dillinger/internal/store"
	"github.com/thrane20/dillinger/internal/volumes"
)

// Runner executes installers out of process. The engine never waits on it;
// progress is observed through Status.
type Runner interface {
	Launch(ctx context.Context, spec LaunchSpec) (string, error)
	Status(ctx context.Context, handle string) (RunStatus, error)
	Terminate(ctx context.Context, handle string) error
}

// Run states reported by a Runner.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunStatus is a Runner's view of one launched installer.
type RunStatus struct {
	State       string   `json:"state"`
	Executables []string `json:"executables,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func Running() RunStatus                       { return RunStatus{State: RunRunning} }
func Succeeded(executables ...string) RunStatus { return RunStatus{State: RunSucceeded, Executables: executables} }
func Failed(msg string) RunStatus               { return RunStatus{State: RunFailed, Error: msg} }

// LaunchSpec is everything a Runner needs to start an installer.
type LaunchSpec struct {
	GameID            string            `json:"game_id"`
	PlatformID        string            `json:"platform_id"`
	InstallerPath     string            `json:"installer_path"`
	InstallPath       string            `json:"install_path"`
	DownloadCachePath string            `json:"download_cache_path,omitempty"`
	Args              []string          `json:"args,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
	WineVersionID     string            `json:"wine_version_id,omitempty"`
	WineArch          string            `json:"wine_arch,omitempty"`
	WinetricksVerbs   []string          `json:"winetricks_verbs,omitempty"`
}

// Scanner finds launch targets in an install path.
type Scanner interface {
	Scan(installPath string) ([]scanner.Candidate, error)
}

// ScannerFunc adapts a function to Scanner.
type ScannerFunc func(installPath string) ([]scanner.Candidate, error)

func (f ScannerFunc) Scan(installPath string) ([]scanner.Candidate, error) { return f(installPath) }

// LogStore keeps per-installation log lines.
type LogStore interface {
	AppendLog(ctx context.Context, entry *store.LogEntry) error
	GetLogsSince(ctx context.Context, gameID, platformID string, afterID int) ([]*store.LogEntry, int, error)
	ClearLogs(ctx context.Context, gameID, platformID string) error
}

// Volumes resolves the default storage for a purpose.
type Volumes interface {
	ResolveDefault(ctx context.Context, purpose volumes.Purpose) (*volumes.Volume, error)
}

// Notifier is told about every persisted installation change.
type Notifier interface {
	InstallationChanged(gameID, platformID string, rec games.InstallationRecord)
}

// StartRequest asks for an installation of one platform config. An empty
// InstallPath falls back to the installed-games volume.
type StartRequest struct {
	GameID        string            `json:"game_id"`
	PlatformID    string            `json:"platform_id"`
	InstallerPath string            `json:"installer_path"`
	InstallPath   string            `json:"install_path,omitempty"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	WineVersionID string            `json:"wine_version_id,omitempty"`
	WineArch      string            `json:"wine_arch,omitempty"`
}
