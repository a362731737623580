// Package games holds the game catalogue data model and the operations that
// edit a game's per-platform configuration.
package games

import (
	"time"

	"github.com/thrane20/dillinger/internal/lutris"
)

// Game is a catalogued title. Platforms is unique by PlatformID.
type Game struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	DefaultPlatformID string           `json:"default_platform_id"`
	Platforms         []PlatformConfig `json:"platforms"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	// Version is the stored revision this copy was loaded at; 0 for a game
	// that has never been saved. SaveGame rejects stale versions.
	Version int64 `json:"version"`
}

// PlatformConfig is the configuration of one game on one platform.
type PlatformConfig struct {
	PlatformID                string              `json:"platform_id"`
	FilePath                  string              `json:"file_path,omitempty"`
	Settings                  Settings            `json:"settings"`
	Installation              *InstallationRecord `json:"installation,omitempty"`
	LutrisInstallers          []lutris.Installer  `json:"lutris_installers,omitempty"`
	SelectedLutrisInstallerID string              `json:"selected_lutris_installer_id,omitempty"`
}

// Settings are the platform-specific knobs for running a game.
type Settings struct {
	Wine       WineSettings       `json:"wine"`
	Launch     LaunchSettings     `json:"launch"`
	Compositor CompositorSettings `json:"compositor"`
	Overlay    bool               `json:"overlay"`
}

type WineSettings struct {
	VersionID       string   `json:"version_id,omitempty"`
	Arch            string   `json:"arch,omitempty"`
	Prefix          string   `json:"prefix,omitempty"`
	DLLOverrides    []string `json:"dll_overrides,omitempty"`
	WinetricksVerbs []string `json:"winetricks_verbs,omitempty"`
}

type LaunchSettings struct {
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
}

type CompositorSettings struct {
	Enabled    bool `json:"enabled"`
	Width      int  `json:"width,omitempty"`
	Height     int  `json:"height,omitempty"`
	Fullscreen bool `json:"fullscreen"`
}

// ApplyLutris merges a script fragment into the Wine settings. An absent
// architecture keeps whatever was selected before.
func (s *Settings) ApplyLutris(f lutris.Fragment) {
	if f.Arch != "" {
		s.Wine.Arch = f.Arch
	}
	if f.WineVersion != "" && s.Wine.VersionID == "" {
		s.Wine.VersionID = f.WineVersion
	}
	if len(f.DLLOverrides) > 0 {
		s.Wine.DLLOverrides = append([]string(nil), f.DLLOverrides...)
	}
	if len(f.WinetricksVerbs) > 0 {
		s.Wine.WinetricksVerbs = append([]string(nil), f.WinetricksVerbs...)
	}
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	out := s
	out.Wine.DLLOverrides = append([]string(nil), s.Wine.DLLOverrides...)
	out.Wine.WinetricksVerbs = append([]string(nil), s.Wine.WinetricksVerbs...)
	out.Launch.Args = append([]string(nil), s.Launch.Args...)
	if s.Launch.Env != nil {
		out.Launch.Env = make(map[string]string, len(s.Launch.Env))
		for k, v := range s.Launch.Env {
			out.Launch.Env[k] = v
		}
	}
	return out
}

// Platform returns the config for platformID, or nil.
func (g *Game) Platform(platformID string) *PlatformConfig {
	for i := range g.Platforms {
		if g.Platforms[i].PlatformID == platformID {
			return &g.Platforms[i]
		}
	}
	return nil
}

func (g *Game) indexOf(platformID string) int {
	for i := range g.Platforms {
		if g.Platforms[i].PlatformID == platformID {
			return i
		}
	}
	return -1
}

// InstallationOf returns the installation record of a platform, treating a
// missing record as not installed.
func (pc *PlatformConfig) InstallationOf() InstallationRecord {
	if pc.Installation == nil {
		return InstallationRecord{Status: StatusNotInstalled}
	}
	return *pc.Installation
}
