package games

import (
	"strings"
	"time"

	"github.com/thrane20/dillinger/internal/errs"
)

// Draft is an uncommitted edit of one platform's configuration. A nil
// field means the draft does not carry it, and committing leaves the
// stored value alone.
type Draft struct {
	PlatformID string    `json:"platform_id"`
	FilePath   *string   `json:"file_path,omitempty"`
	Settings   *Settings `json:"settings,omitempty"`
}

// DraftOf returns a draft initialized from the stored config.
func DraftOf(pc *PlatformConfig) *Draft {
	fp := pc.FilePath
	settings := pc.Settings.Clone()
	return &Draft{PlatformID: pc.PlatformID, FilePath: &fp, Settings: &settings}
}

// NewDraft returns a default-settings draft for a platform that is not yet
// part of the game.
func NewDraft(platformID string) *Draft {
	fp := ""
	settings := DefaultSettings(platformID)
	return &Draft{PlatformID: platformID, FilePath: &fp, Settings: &settings}
}

// RemoveOptions carries the embedding application's removal policy.
type RemoveOptions struct {
	// RequireOne refuses to remove the only remaining platform.
	RequireOne bool
}

func validPlatformID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errs.InvalidRequest("platform id is required")
	}
	return nil
}

// CommitDraft merges the fields present on d into the matching platform
// config, appending a new entry when the platform is not configured yet.
// Installation and Lutris fields are never touched.
func CommitDraft(g *Game, d *Draft) error {
	if d == nil {
		return nil
	}
	if err := validPlatformID(d.PlatformID); err != nil {
		return err
	}
	i := g.indexOf(d.PlatformID)
	if i < 0 {
		g.Platforms = append(g.Platforms, PlatformConfig{
			PlatformID:   d.PlatformID,
			Settings:     DefaultSettings(d.PlatformID),
			Installation: NewInstallationRecord(),
		})
		i = len(g.Platforms) - 1
		if g.DefaultPlatformID == "" {
			g.DefaultPlatformID = d.PlatformID
		}
	}
	pc := &g.Platforms[i]
	if d.FilePath != nil {
		pc.FilePath = *d.FilePath
	}
	if d.Settings != nil {
		pc.Settings = d.Settings.Clone()
	}
	g.UpdatedAt = time.Now()
	return nil
}

// SelectPlatform commits current into the game and returns a draft for
// platformID: the stored config when it exists, default settings otherwise.
// A platform seen for the first time is not added until its draft is
// committed.
func SelectPlatform(g *Game, current *Draft, platformID string) (*Draft, error) {
	if err := validPlatformID(platformID); err != nil {
		return nil, err
	}
	if err := CommitDraft(g, current); err != nil {
		return nil, err
	}
	if pc := g.Platform(platformID); pc != nil {
		return DraftOf(pc), nil
	}
	return NewDraft(platformID), nil
}

// AddPlatform commits current and appends a fresh entry for platformID.
func AddPlatform(g *Game, current *Draft, platformID string) (*Draft, error) {
	if err := validPlatformID(platformID); err != nil {
		return nil, err
	}
	if g.Platform(platformID) != nil {
		return nil, errs.AlreadyConfigured("platform %s is already configured for %s", platformID, g.ID)
	}
	if err := CommitDraft(g, current); err != nil {
		return nil, err
	}
	d := NewDraft(platformID)
	if err := CommitDraft(g, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RemovePlatform drops platformID from the game. When it was the default
// platform, the first remaining entry becomes the default, or none.
func RemovePlatform(g *Game, platformID string, opts RemoveOptions) error {
	i := g.indexOf(platformID)
	if i < 0 {
		return errs.NotFound("platform %s is not configured for %s", platformID, g.ID)
	}
	if opts.RequireOne && len(g.Platforms) == 1 {
		return errs.LastPlatform("cannot remove %s: it is the only platform of %s", platformID, g.ID)
	}
	g.Platforms = append(g.Platforms[:i:i], g.Platforms[i+1:]...)
	if g.DefaultPlatformID == platformID || g.indexOf(g.DefaultPlatformID) < 0 {
		g.DefaultPlatformID = ""
		if len(g.Platforms) > 0 {
			g.DefaultPlatformID = g.Platforms[0].PlatformID
		}
	}
	g.UpdatedAt = time.Now()
	return nil
}

// SetDefaultPlatform points the game's default at an existing entry.
func SetDefaultPlatform(g *Game, platformID string) error {
	if g.Platform(platformID) == nil {
		return errs.NotFound("platform %s is not configured for %s", platformID, g.ID)
	}
	g.DefaultPlatformID = platformID
	g.UpdatedAt = time.Now()
	return nil
}
