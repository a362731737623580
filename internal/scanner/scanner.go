// Package scanner finds launch targets and installer executables in a
// directory tree.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kinds of launch target.
const (
	KindExe     = "exe"
	KindLnk     = "lnk"
	KindDesktop = "desktop"
	KindShell   = "sh"
)

// Candidate is a file that can start a game.
type Candidate struct {
	// Path is relative to the scanned root.
	Path  string `json:"path"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Depth int    `json:"depth"`
	Size  int64  `json:"size"`
}

// MaxDepth bounds how deep Scan descends below the root.
var MaxDepth = 8

var kindPriority = map[string]int{KindExe: 0, KindLnk: 1, KindDesktop: 2, KindShell: 3}

// Prefixes of executables that install, uninstall or repair rather than
// start a game.
var helperPrefixes = []string{
	"unins", "uninst", "setup", "install", "vcredist", "vc_redist", "dxsetup",
	"dxwebsetup", "directx", "dotnet", "ndp", "oalinst", "physx", "crashreport",
	"crashhandler", "unitycrashhandler", "ue4prereq", "redist",
}

// Directories that only carry runtime installers.
var skipDirs = map[string]bool{
	"_commonredist": true, "redist": true, "redistributables": true, "directx": true,
	"__installer": true, "support": true, "windows": true,
}

func kindOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".exe":
		return KindExe
	case ".lnk":
		return KindLnk
	case ".desktop":
		return KindDesktop
	case ".sh":
		return KindShell
	}
	return ""
}

func isHelper(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range helperPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

type walkFilter func(rel string, d fs.DirEntry, depth int) bool

func walk(root string, keep walkFilter) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	var out []Candidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if d.IsDir() {
			if depth >= MaxDepth || skipDirs[strings.ToLower(d.Name())] {
				return fs.SkipDir
			}
			return nil
		}
		if !keep(rel, d, depth) {
			return nil
		}
		var size int64
		if fi, err := d.Info(); err == nil {
			size = fi.Size()
		}
		out = append(out, Candidate{
			Path:  rel,
			Name:  strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Kind:  kindOf(d.Name()),
			Depth: depth,
			Size:  size,
		})
		return nil
	})
	return out, err
}

// Scan returns launch targets under root, best first: shallow before deep,
// executables before shortcuts and scripts, larger before smaller.
// Installers, uninstallers and runtime redistributables are left out.
func Scan(root string) ([]Candidate, error) {
	out, err := walk(root, func(rel string, d fs.DirEntry, depth int) bool {
		return kindOf(d.Name()) != "" && !isHelper(d.Name())
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if kindPriority[a.Kind] != kindPriority[b.Kind] {
			return kindPriority[a.Kind] < kindPriority[b.Kind]
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Path < b.Path
	})
	return out, nil
}

// FindSetup returns the installer executable in root: a setup*/install*
// .exe when there is one, else the only .exe present.
func FindSetup(root string) (string, error) {
	exes, err := walk(root, func(rel string, d fs.DirEntry, depth int) bool {
		return kindOf(d.Name()) == KindExe
	})
	if err != nil {
		return "", err
	}
	sort.SliceStable(exes, func(i, j int) bool {
		if exes[i].Depth != exes[j].Depth {
			return exes[i].Depth < exes[j].Depth
		}
		return exes[i].Path < exes[j].Path
	})
	for _, c := range exes {
		lower := strings.ToLower(c.Name)
		if strings.HasPrefix(lower, "setup") || strings.HasPrefix(lower, "install") {
			return filepath.Join(root, c.Path), nil
		}
	}
	if len(exes) == 1 {
		return filepath.Join(root, exes[0].Path), nil
	}
	return "", fmt.Errorf("no installer executable found in %s (%d candidates)", root, len(exes))
}
