package games

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/lutris"
)

func newGame() *Game {
	return &Game{ID: "g1", Title: "Test Game", Platforms: []PlatformConfig{}}
}

func strPtr(s string) *string { return &s }

func assertUnique(t *testing.T, g *Game) {
	t.Helper()
	seen := map[string]bool{}
	for _, pc := range g.Platforms {
		if seen[pc.PlatformID] {
			t.Fatalf("duplicate platform %q in %+v", pc.PlatformID, g.Platforms)
		}
		seen[pc.PlatformID] = true
	}
}

func TestSelectPlatformNewReturnsDefaults(t *testing.T) {
	g := newGame()
	d, err := SelectPlatform(g, nil, PlatformWindowsWine)
	if err != nil {
		t.Fatalf("SelectPlatform: %v", err)
	}
	if d.PlatformID != PlatformWindowsWine {
		t.Errorf("PlatformID = %q", d.PlatformID)
	}
	if d.Settings.Wine.Arch != DefaultArch {
		t.Errorf("Arch = %q, want %q", d.Settings.Wine.Arch, DefaultArch)
	}
	if len(g.Platforms) != 0 {
		t.Errorf("select alone should not add a platform, got %d", len(g.Platforms))
	}
}

func TestSelectPlatformCommitsCurrent(t *testing.T) {
	g := newGame()
	d, _ := SelectPlatform(g, nil, PlatformWindowsWine)
	d.Settings.Launch.Command = "game.exe"

	if _, err := SelectPlatform(g, d, "snes"); err != nil {
		t.Fatalf("SelectPlatform: %v", err)
	}
	pc := g.Platform(PlatformWindowsWine)
	if pc == nil {
		t.Fatal("wine platform was not committed")
	}
	if pc.Settings.Launch.Command != "game.exe" {
		t.Errorf("Command = %q", pc.Settings.Launch.Command)
	}
	if pc.InstallationOf().Status != StatusNotInstalled {
		t.Errorf("Status = %q", pc.InstallationOf().Status)
	}
	if g.DefaultPlatformID != PlatformWindowsWine {
		t.Errorf("DefaultPlatformID = %q", g.DefaultPlatformID)
	}
}

func TestPlatformUniqueness(t *testing.T) {
	g := newGame()
	ids := []string{PlatformWindowsWine, "snes", PlatformWindowsWine, "snes", PlatformLinuxNative, PlatformWindowsWine}
	var current *Draft
	for i, id := range ids {
		var err error
		if i%2 == 0 {
			current, err = SelectPlatform(g, current, id)
		} else {
			var d *Draft
			d, err = AddPlatform(g, current, id)
			if errors.Is(err, errs.ErrAlreadyConfigured) {
				current, err = SelectPlatform(g, current, id)
			} else {
				current = d
			}
		}
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, id, err)
		}
		assertUnique(t, g)
	}
	if _, err := SelectPlatform(g, current, PlatformWindowsWine); err != nil {
		t.Fatal(err)
	}
	assertUnique(t, g)
	if len(g.Platforms) != 3 {
		t.Errorf("len(Platforms) = %d, want 3", len(g.Platforms))
	}
}

func TestAddPlatformAlreadyConfigured(t *testing.T) {
	g := newGame()
	if _, err := AddPlatform(g, nil, "n64"); err != nil {
		t.Fatalf("AddPlatform: %v", err)
	}
	_, err := AddPlatform(g, nil, "n64")
	if !errors.Is(err, errs.ErrAlreadyConfigured) {
		t.Fatalf("err = %v, want AlreadyConfigured", err)
	}
}

func TestAddPlatformCreatesInstallationRecord(t *testing.T) {
	g := newGame()
	if _, err := AddPlatform(g, nil, PlatformWindowsProton); err != nil {
		t.Fatal(err)
	}
	pc := g.Platform(PlatformWindowsProton)
	if pc.Installation == nil || pc.Installation.Status != StatusNotInstalled {
		t.Errorf("Installation = %+v", pc.Installation)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	g := newGame()
	d, _ := AddPlatform(g, nil, PlatformWindowsWine)
	d.FilePath = strPtr("/roms/none")
	d.Settings.Wine.DLLOverrides = []string{"d3d9"}
	d.Settings.Launch.Env = map[string]string{"DXVK_HUD": "1"}
	d.Settings.Launch.Args = []string{"-windowed"}
	d.Settings.Overlay = true
	want := d.Settings.Clone()

	if err := CommitDraft(g, d); err != nil {
		t.Fatal(err)
	}
	again, err := SelectPlatform(g, nil, PlatformWindowsWine)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(*again.Settings, want) {
		t.Errorf("settings = %+v, want %+v", *again.Settings, want)
	}
	if *again.FilePath != "/roms/none" {
		t.Errorf("FilePath = %q", *again.FilePath)
	}

	// The draft is a copy; editing it does not reach the stored config.
	again.Settings.Wine.DLLOverrides[0] = "changed"
	if g.Platform(PlatformWindowsWine).Settings.Wine.DLLOverrides[0] != "d3d9" {
		t.Error("draft aliases stored settings")
	}
}

func TestCommitDraftLeavesAbsentFields(t *testing.T) {
	g := newGame()
	AddPlatform(g, nil, PlatformWindowsWine)
	pc := g.Platform(PlatformWindowsWine)
	pc.FilePath = "/keep"
	pc.Installation = &InstallationRecord{Status: StatusInstalled, InstallPath: "/installed/g1"}
	pc.LutrisInstallers = []lutris.Installer{{ID: "a"}}
	pc.SelectedLutrisInstallerID = "a"

	s := DefaultSettings(PlatformWindowsWine)
	s.Launch.Command = "new.exe"
	if err := CommitDraft(g, &Draft{PlatformID: PlatformWindowsWine, Settings: &s}); err != nil {
		t.Fatal(err)
	}
	pc = g.Platform(PlatformWindowsWine)
	if pc.FilePath != "/keep" {
		t.Errorf("FilePath = %q, want /keep", pc.FilePath)
	}
	if pc.Installation.Status != StatusInstalled || pc.Installation.InstallPath != "/installed/g1" {
		t.Errorf("Installation = %+v", pc.Installation)
	}
	if len(pc.LutrisInstallers) != 1 || pc.SelectedLutrisInstallerID != "a" {
		t.Errorf("lutris fields touched: %+v", pc)
	}
	if pc.Settings.Launch.Command != "new.exe" {
		t.Errorf("Command = %q", pc.Settings.Launch.Command)
	}
}

func TestCommitDraftEmptyPlatformID(t *testing.T) {
	err := CommitDraft(newGame(), &Draft{})
	if !errors.Is(err, errs.ErrInvalidRequest) {
		t.Fatalf("err = %v, want InvalidRequest", err)
	}
}

func TestRemovePlatformRepointsDefault(t *testing.T) {
	g := newGame()
	AddPlatform(g, nil, PlatformWindowsWine)
	AddPlatform(g, nil, "snes")
	AddPlatform(g, nil, "n64")
	if g.DefaultPlatformID != PlatformWindowsWine {
		t.Fatalf("DefaultPlatformID = %q", g.DefaultPlatformID)
	}

	if err := RemovePlatform(g, PlatformWindowsWine, RemoveOptions{}); err != nil {
		t.Fatal(err)
	}
	if g.DefaultPlatformID != "snes" {
		t.Errorf("DefaultPlatformID = %q, want snes", g.DefaultPlatformID)
	}

	if err := RemovePlatform(g, "n64", RemoveOptions{}); err != nil {
		t.Fatal(err)
	}
	if g.DefaultPlatformID != "snes" {
		t.Errorf("removing a non-default changed default to %q", g.DefaultPlatformID)
	}

	if err := RemovePlatform(g, "snes", RemoveOptions{}); err != nil {
		t.Fatal(err)
	}
	if g.DefaultPlatformID != "" || len(g.Platforms) != 0 {
		t.Errorf("after removing all: default=%q platforms=%d", g.DefaultPlatformID, len(g.Platforms))
	}
}

func TestRemovePlatformErrors(t *testing.T) {
	g := newGame()
	if err := RemovePlatform(g, "nes", RemoveOptions{}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
	AddPlatform(g, nil, "nes")
	if err := RemovePlatform(g, "nes", RemoveOptions{RequireOne: true}); !errors.Is(err, errs.ErrLastPlatform) {
		t.Errorf("err = %v, want LastPlatform", err)
	}
	if err := RemovePlatform(g, "nes", RemoveOptions{}); err != nil {
		t.Errorf("RemovePlatform without policy: %v", err)
	}
}

func TestSetDefaultPlatform(t *testing.T) {
	g := newGame()
	AddPlatform(g, nil, "nes")
	AddPlatform(g, nil, "snes")
	if err := SetDefaultPlatform(g, "snes"); err != nil {
		t.Fatal(err)
	}
	if g.DefaultPlatformID != "snes" {
		t.Errorf("DefaultPlatformID = %q", g.DefaultPlatformID)
	}
	if err := SetDefaultPlatform(g, "psx"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestApplyLutrisPreservesArch(t *testing.T) {
	s := DefaultSettings(PlatformWindowsWine)
	s.Wine.Arch = "win32"
	s.ApplyLutris(lutris.Fragment{WinetricksVerbs: []string{"corefonts"}})
	if s.Wine.Arch != "win32" {
		t.Errorf("Arch = %q, want win32 kept", s.Wine.Arch)
	}
	s.ApplyLutris(lutris.Fragment{Arch: "win64", WineVersion: "lutris-7.2"})
	if s.Wine.Arch != "win64" || s.Wine.VersionID != "lutris-7.2" {
		t.Errorf("wine = %+v", s.Wine)
	}
}

func TestLookupPlatformUnknownIsFileBased(t *testing.T) {
	p := LookupPlatform("wonderswan")
	if !p.FileBased || p.Wine {
		t.Errorf("unknown platform = %+v", p)
	}
	if !LookupPlatform(PlatformWindowsWine).Installable {
		t.Error("wine should be installable")
	}
}

func TestTransitionTable(t *testing.T) {
	legal := [][2]InstallStatus{
		{StatusNotInstalled, StatusInstalling},
		{StatusInstalling, StatusInstalled},
		{StatusInstalling, StatusFailed},
		{StatusInstalling, StatusNotInstalled},
		{StatusInstalled, StatusNotInstalled},
		{StatusFailed, StatusNotInstalled},
	}
	for _, tr := range legal {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be legal", tr[0], tr[1])
		}
	}
	illegal := [][2]InstallStatus{
		{StatusNotInstalled, StatusInstalled},
		{StatusInstalled, StatusInstalling},
		{StatusFailed, StatusInstalling},
		{StatusInstalled, StatusFailed},
		{StatusInstalling, StatusInstalling},
	}
	for _, tr := range illegal {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestRecordLifecycle(t *testing.T) {
	r := NewInstallationRecord()
	now := time.Now()
	err := r.Begin(BeginParams{
		InstallerPath:     "/cache/setup.exe",
		InstallPath:       "/installed/g1",
		ContainerID:       "c1",
		DownloadCachePath: "/downloads/g1",
	}, now)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if r.Status != StatusInstalling || r.ContainerID != "c1" || r.Error != "" {
		t.Fatalf("after Begin: %+v", r)
	}

	if err := r.Begin(BeginParams{ContainerID: "c2"}, now); !errors.Is(err, errs.ErrAlreadyInstalling) {
		t.Errorf("second Begin err = %v, want AlreadyInstalling", err)
	}

	if err := r.Complete(now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if r.Status != StatusInstalled || r.InstalledAt == nil {
		t.Fatalf("after Complete: %+v", r)
	}
	if err := r.Fail("late"); !errors.Is(err, errs.ErrInvalidRequest) {
		t.Errorf("Fail on installed err = %v", err)
	}

	if err := r.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	want := InstallationRecord{Status: StatusNotInstalled, DownloadCachePath: "/downloads/g1"}
	if !reflect.DeepEqual(*r, want) {
		t.Errorf("after Reset: %+v, want %+v", *r, want)
	}
}

func TestRecordResetFromNotInstalled(t *testing.T) {
	r := NewInstallationRecord()
	if err := r.Reset(); !errors.Is(err, errs.ErrInvalidRequest) {
		t.Errorf("err = %v, want InvalidRequest", err)
	}
}

func TestRecordFailKeepsError(t *testing.T) {
	r := NewInstallationRecord()
	r.Begin(BeginParams{ContainerID: "c1"}, time.Now())
	if err := r.Fail("exit code 1"); err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusFailed || r.Error != "exit code 1" {
		t.Errorf("record = %+v", r)
	}
}
