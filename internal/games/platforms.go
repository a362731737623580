package games

import "sort"

// PlatformInfo describes an execution platform.
type PlatformInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FileBased bool   `json:"file_based"`
	Wine      bool   `json:"wine"`
	// Installable platforms go through an installer before they can launch.
	Installable bool `json:"installable"`
}

const (
	PlatformLinuxNative   = "linux-native"
	PlatformWindowsWine   = "windows-wine"
	PlatformWindowsProton = "windows-proton"
)

var knownPlatforms = map[string]PlatformInfo{
	PlatformLinuxNative:   {ID: PlatformLinuxNative, Name: "Linux (native)", FileBased: true},
	PlatformWindowsWine:   {ID: PlatformWindowsWine, Name: "Windows (Wine)", Wine: true, Installable: true},
	PlatformWindowsProton: {ID: PlatformWindowsProton, Name: "Windows (Proton)", Wine: true, Installable: true},
	"nes":                 {ID: "nes", Name: "Nintendo Entertainment System", FileBased: true},
	"snes":                {ID: "snes", Name: "Super Nintendo", FileBased: true},
	"n64":                 {ID: "n64", Name: "Nintendo 64", FileBased: true},
	"gba":                 {ID: "gba", Name: "Game Boy Advance", FileBased: true},
	"psx":                 {ID: "psx", Name: "PlayStation", FileBased: true},
	"genesis":             {ID: "genesis", Name: "Sega Genesis", FileBased: true},
	"c64":                 {ID: "c64", Name: "Commodore 64", FileBased: true},
	"amiga":               {ID: "amiga", Name: "Amiga", FileBased: true},
	"arcade":              {ID: "arcade", Name: "Arcade (MAME)", FileBased: true},
	"dos":                 {ID: "dos", Name: "DOS (DOSBox)", FileBased: true},
}

// LookupPlatform returns the catalogue entry for id. Unknown ids are
// treated as file-based emulator platforms.
func LookupPlatform(id string) PlatformInfo {
	if p, ok := knownPlatforms[id]; ok {
		return p
	}
	return PlatformInfo{ID: id, Name: id, FileBased: true}
}

// KnownPlatforms returns the catalogue sorted by id.
func KnownPlatforms() []PlatformInfo {
	out := make([]PlatformInfo, 0, len(knownPlatforms))
	for _, p := range knownPlatforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultArch is the Wine architecture fresh Wine drafts start with.
var DefaultArch = "win64"

// DefaultSettings returns the settings a brand-new platform entry starts with.
func DefaultSettings(platformID string) Settings {
	info := LookupPlatform(platformID)
	var s Settings
	if info.Wine {
		s.Wine.Arch = DefaultArch
		s.Compositor = CompositorSettings{Enabled: true, Width: 1920, Height: 1080, Fullscreen: true}
	}
	return s
}
