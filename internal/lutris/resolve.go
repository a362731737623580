package lutris

import (
	"sort"
	"strings"

	"github.com/thrane20/dillinger/internal/errs"
)

const (
	ArchWin32 = "win32"
	ArchWin64 = "win64"
)

// ExtractWinetricksVerbs returns every winetricks verb in script order.
// Only tokens repeated back to back are collapsed; nothing is reordered.
func ExtractWinetricksVerbs(s *Script) []string {
	if s == nil {
		return nil
	}
	var verbs []string
	for _, t := range s.Installer {
		if t.Kind != StepTask || t.Name != "winetricks" {
			continue
		}
		for _, tok := range strings.Fields(t.Params["app"]) {
			if n := len(verbs); n > 0 && verbs[n-1] == tok {
				continue
			}
			verbs = append(verbs, tok)
		}
	}
	return verbs
}

// ExtractDllOverrides returns the DLL names keyed in wine.overrides, sorted.
func ExtractDllOverrides(s *Script) []string {
	if s == nil || len(s.Wine.Overrides) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Wine.Overrides))
	for name := range s.Wine.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DllOverridesEnv renders wine.overrides as a WINEDLLOVERRIDES value,
// e.g. "d3d9=n,b;dinput8=n,b".
func DllOverridesEnv(s *Script) string {
	names := ExtractDllOverrides(s)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		mode := strings.ReplaceAll(s.Wine.Overrides[name], " ", "")
		if mode == "" || mode == "disabled" {
			parts = append(parts, name+"=")
			continue
		}
		parts = append(parts, name+"="+mode)
	}
	return strings.Join(parts, ";")
}

// ExtractArchitecture returns "win32" or "win64" from game.arch, or "" when
// the script does not say.
func ExtractArchitecture(s *Script) string {
	if s == nil {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(s.Game.Arch)) {
	case ArchWin32:
		return ArchWin32
	case ArchWin64:
		return ArchWin64
	}
	return ""
}

// Fragment is the settings slice a script contributes.
type Fragment struct {
	Arch            string   `json:"arch,omitempty"`
	DLLOverrides    []string `json:"dll_overrides,omitempty"`
	WinetricksVerbs []string `json:"winetricks_verbs,omitempty"`
	WineVersion     string   `json:"wine_version,omitempty"`
}

// FragmentOf collects everything a script says about Wine configuration.
func FragmentOf(s *Script) Fragment {
	f := Fragment{
		Arch:            ExtractArchitecture(s),
		DLLOverrides:    ExtractDllOverrides(s),
		WinetricksVerbs: ExtractWinetricksVerbs(s),
	}
	if s != nil {
		f.WineVersion = s.Wine.Version
	}
	return f
}

// Resolve picks the installer to use. With no installers it returns nil.
// A single installer is selected automatically; with several, selectedID
// must name one of them.
func Resolve(installers []Installer, selectedID string) (*Installer, error) {
	if len(installers) == 0 {
		return nil, nil
	}
	if selectedID != "" {
		for i := range installers {
			if installers[i].ID == selectedID {
				return &installers[i], nil
			}
		}
		return nil, errs.NotFound("lutris installer %q is not attached", selectedID)
	}
	if len(installers) == 1 {
		return &installers[0], nil
	}
	return nil, errs.InstallerNotSelected("%d lutris installers attached, select one first", len(installers))
}
