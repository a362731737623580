package games

import (
	"fmt"
	"time"

	"github.com/thrane20/dillinger/internal/errs"
)

// InstallStatus is the state of a platform config's installation.
type InstallStatus string

const (
	StatusNotInstalled InstallStatus = "not_installed"
	StatusInstalling   InstallStatus = "installing"
	StatusInstalled    InstallStatus = "installed"
	StatusFailed       InstallStatus = "failed"
)

// transitions is the complete table of legal status changes.
var transitions = map[InstallStatus][]InstallStatus{
	StatusNotInstalled: {StatusInstalling},
	StatusInstalling:   {StatusInstalled, StatusFailed, StatusNotInstalled},
	StatusInstalled:    {StatusNotInstalled},
	StatusFailed:       {StatusNotInstalled},
}

// Valid reports whether s is one of the known statuses.
func (s InstallStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no poll can change s.
func (s InstallStatus) Terminal() bool {
	return s == StatusInstalled || s == StatusFailed
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to InstallStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InstallationRecord tracks one platform config's installation.
type InstallationRecord struct {
	Status            InstallStatus `json:"status"`
	InstallerPath     string        `json:"installer_path,omitempty"`
	InstallPath       string        `json:"install_path,omitempty"`
	InstallerArgs     []string      `json:"installer_args,omitempty"`
	WineVersionID     string        `json:"wine_version_id,omitempty"`
	WineArch          string        `json:"wine_arch,omitempty"`
	ContainerID       string        `json:"container_id,omitempty"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	InstalledAt       *time.Time    `json:"installed_at,omitempty"`
	Error             string        `json:"error,omitempty"`
	DownloadCachePath string        `json:"download_cache_path,omitempty"`
}

// NewInstallationRecord returns the initial record of a fresh platform.
func NewInstallationRecord() *InstallationRecord {
	return &InstallationRecord{Status: StatusNotInstalled}
}

func (r *InstallationRecord) move(to InstallStatus) error {
	from := r.Status
	if from == "" {
		from = StatusNotInstalled
	}
	if !CanTransition(from, to) {
		if from == StatusInstalling && to == StatusInstalling {
			return errs.AlreadyInstalling("an installation is already running (container %s)", r.ContainerID)
		}
		return errs.InvalidRequest("cannot move installation from %s to %s", from, to)
	}
	r.Status = to
	return nil
}

// BeginParams are the inputs recorded when an installation starts.
type BeginParams struct {
	InstallerPath     string
	InstallPath       string
	InstallerArgs     []string
	WineVersionID     string
	WineArch          string
	ContainerID       string
	DownloadCachePath string
}

// Begin moves a not_installed record to installing.
func (r *InstallationRecord) Begin(p BeginParams, now time.Time) error {
	if p.ContainerID == "" {
		return fmt.Errorf("begin installation: empty container id")
	}
	if err := r.move(StatusInstalling); err != nil {
		return err
	}
	r.InstallerPath = p.InstallerPath
	r.InstallPath = p.InstallPath
	r.InstallerArgs = append([]string(nil), p.InstallerArgs...)
	r.WineVersionID = p.WineVersionID
	r.WineArch = p.WineArch
	r.ContainerID = p.ContainerID
	if p.DownloadCachePath != "" {
		r.DownloadCachePath = p.DownloadCachePath
	}
	r.StartedAt = &now
	r.InstalledAt = nil
	r.Error = ""
	return nil
}

// Complete moves an installing record to installed.
func (r *InstallationRecord) Complete(now time.Time) error {
	if err := r.move(StatusInstalled); err != nil {
		return err
	}
	r.InstalledAt = &now
	r.Error = ""
	return nil
}

// Fail moves an installing record to failed, keeping msg for inspection.
func (r *InstallationRecord) Fail(msg string) error {
	if err := r.move(StatusFailed); err != nil {
		return err
	}
	if msg == "" {
		msg = "installation failed"
	}
	r.Error = msg
	return nil
}

// Reset returns the record to not_installed, clearing everything except
// the download cache path.
func (r *InstallationRecord) Reset() error {
	if err := r.move(StatusNotInstalled); err != nil {
		return err
	}
	*r = InstallationRecord{
		Status:            StatusNotInstalled,
		DownloadCachePath: r.DownloadCachePath,
	}
	return nil
}
