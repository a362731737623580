package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/lutris"
	"github.com/thrane20/dillinger/internal/volumes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeGame(id string) *games.Game {
	now := time.Now().Truncate(time.Second)
	installed := now.Add(-time.Hour)
	return &games.Game{
		ID:                id,
		Title:             "Test Game",
		DefaultPlatformID: games.PlatformWindowsWine,
		Platforms: []games.PlatformConfig{
			{
				PlatformID: games.PlatformWindowsWine,
				Settings:   games.DefaultSettings(games.PlatformWindowsWine),
				Installation: &games.InstallationRecord{
					Status:        games.StatusInstalled,
					InstallPath:   "/installed/" + id,
					InstallerArgs: []string{"/S"},
					InstalledAt:   &installed,
				},
				LutrisInstallers:          []lutris.Installer{{ID: "1", Slug: "test", Script: lutris.Script{Game: lutris.GameSection{Arch: "win32"}}}},
				SelectedLutrisInstallerID: "1",
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/test.db"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestSaveAndLoadGame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveGame(ctx, makeGame("g1")); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	got, err := s.LoadGame(ctx, "g1")
	if err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	if got.Title != "Test Game" || got.DefaultPlatformID != games.PlatformWindowsWine {
		t.Errorf("game = %+v", got)
	}
	pc := got.Platform(games.PlatformWindowsWine)
	if pc == nil {
		t.Fatal("platform missing")
	}
	if pc.Installation.Status != games.StatusInstalled || pc.Installation.InstalledAt == nil {
		t.Errorf("Installation = %+v", pc.Installation)
	}
	if len(pc.LutrisInstallers) != 1 || pc.LutrisInstallers[0].Script.Game.Arch != "win32" {
		t.Errorf("LutrisInstallers = %+v", pc.LutrisInstallers)
	}
	if !pc.Settings.Compositor.Enabled {
		t.Errorf("Compositor = %+v", pc.Settings.Compositor)
	}
}

func TestSaveGameUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := makeGame("g1")
	s.SaveGame(ctx, g)

	g.Title = "Renamed"
	g.Platforms = append(g.Platforms, games.PlatformConfig{PlatformID: "snes", FilePath: "/roms/x.sfc"})
	if err := s.SaveGame(ctx, g); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	got, _ := s.LoadGame(ctx, "g1")
	if got.Title != "Renamed" || len(got.Platforms) != 2 {
		t.Errorf("game = %+v", got)
	}
}

func TestLoadGameNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadGame(context.Background(), "missing")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestListAndDeleteGames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := makeGame("a")
	a.Title = "beta"
	b := makeGame("b")
	b.Title = "Alpha"
	s.SaveGame(ctx, a)
	s.SaveGame(ctx, b)

	list, err := s.ListGames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "b" {
		t.Fatalf("ListGames order = %v, %v", list[0].ID, list[1].ID)
	}

	s.AppendLog(ctx, &LogEntry{GameID: "a", PlatformID: "p", Timestamp: time.Now(), Level: "info", Message: "x"})
	if err := s.DeleteGame(ctx, "a", a.Version); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	logs, _, _ := s.GetLogsSince(ctx, "a", "p", 0)
	if len(logs) != 0 {
		t.Errorf("logs survived delete: %d", len(logs))
	}
	if err := s.DeleteGame(ctx, "a", 0); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func replaceVolumes(vols []volumes.Volume) func([]volumes.Volume) ([]volumes.Volume, error) {
	return func([]volumes.Volume) ([]volumes.Volume, error) { return vols, nil }
}

func TestUpdateVolumesWritesChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	vols := []volumes.Volume{
		{ID: "v1", Name: "ssd", HostPath: "/mnt/ssd", Type: volumes.TypeDocker, Purpose: volumes.PurposeInstalled, StorageType: volumes.StorageSSD, Handle: "dillinger_ssd", CreatedAt: now},
		{ID: "v2", Name: "roms", HostPath: "/srv/roms", Type: volumes.TypeBind, Purpose: volumes.PurposeROMs, Handle: "/srv/roms", CreatedAt: now.Add(time.Second)},
	}
	if err := s.UpdateVolumes(ctx, replaceVolumes(vols)); err != nil {
		t.Fatalf("UpdateVolumes: %v", err)
	}
	got, err := s.LoadVolumes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "v1" || got[0].StorageType != volumes.StorageSSD || got[1].Purpose != volumes.PurposeROMs {
		t.Fatalf("volumes = %+v", got)
	}

	err = s.UpdateVolumes(ctx, func(cur []volumes.Volume) ([]volumes.Volume, error) {
		cur[1].Purpose = volumes.PurposeOther
		return cur[1:], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadVolumes(ctx)
	if len(got) != 1 || got[0].ID != "v2" || got[0].Purpose != volumes.PurposeOther {
		t.Errorf("after update: %+v", got)
	}
}

func TestUpdateVolumesRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	orig := []volumes.Volume{{ID: "v1", Name: "a", HostPath: "/a", Type: volumes.TypeBind, Purpose: volumes.PurposeOther, Handle: "/a"}}
	s.UpdateVolumes(ctx, replaceVolumes(orig))

	dup := []volumes.Volume{
		{ID: "v2", Name: "b", HostPath: "/b", Type: volumes.TypeBind, Handle: "same"},
		{ID: "v3", Name: "c", HostPath: "/c", Type: volumes.TypeBind, Handle: "same"},
	}
	if err := s.UpdateVolumes(ctx, replaceVolumes(dup)); err == nil {
		t.Fatal("expected unique handle violation")
	}
	got, _ := s.LoadVolumes(ctx)
	if len(got) != 1 || got[0].ID != "v1" {
		t.Errorf("partial write visible: %+v", got)
	}

	want := errs.NotFound("volume x not found")
	err := s.UpdateVolumes(ctx, func([]volumes.Volume) ([]volumes.Volume, error) { return nil, want })
	if err != want {
		t.Errorf("fn error = %v, want it returned unchanged", err)
	}
	if got, _ := s.LoadVolumes(ctx); len(got) != 1 {
		t.Errorf("aborted update changed the set: %+v", got)
	}
}

// openShared opens two independent handles on one database file, as the
// service and a CLI invocation do.
func openShared(t *testing.T) (*Store, *Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	var out [2]*Store
	for i := range out {
		s, err := Open(dbPath)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		out[i] = s
	}
	return out[0], out[1]
}

func TestRegistriesOnSharedDatabaseKeepEveryVolume(t *testing.T) {
	a, b := openShared(t)
	ctx := context.Background()
	regs := []*volumes.Registry{volumes.NewRegistry(a, nil), volumes.NewRegistry(b, nil)}

	const perRegistry = 20
	var wg sync.WaitGroup
	for r, reg := range regs {
		for i := 0; i < perRegistry; i++ {
			wg.Add(1)
			go func(reg *volumes.Registry, name string) {
				defer wg.Done()
				req := volumes.CreateRequest{Name: name, HostPath: "/srv/" + name, Type: volumes.TypeBind, Purpose: volumes.PurposeInstalled}
				if _, err := reg.Create(ctx, req); err != nil {
					t.Errorf("Create %s: %v", name, err)
				}
			}(reg, fmt.Sprintf("r%d-v%d", r, i))
		}
	}
	wg.Wait()

	vols, err := a.LoadVolumes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(vols) != 2*perRegistry {
		t.Fatalf("%d volumes tracked, want %d", len(vols), 2*perRegistry)
	}
	holders := 0
	for _, v := range vols {
		if v.Purpose == volumes.PurposeInstalled {
			holders++
		}
	}
	if holders != 1 {
		t.Errorf("%d holders of installed, want 1", holders)
	}
}

func TestRegistriesOnSharedDatabaseReassign(t *testing.T) {
	a, b := openShared(t)
	ctx := context.Background()
	ra, rb := volumes.NewRegistry(a, nil), volumes.NewRegistry(b, nil)

	var ids []string
	for i := 0; i < 6; i++ {
		v, err := ra.Create(ctx, volumes.CreateRequest{Name: fmt.Sprintf("v%d", i), HostPath: fmt.Sprintf("/srv/v%d", i), Type: volumes.TypeBind})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, v.ID)
	}
	var wg sync.WaitGroup
	for i, id := range ids {
		reg := ra
		if i%2 == 1 {
			reg = rb
		}
		wg.Add(1)
		go func(reg *volumes.Registry, id string) {
			defer wg.Done()
			if _, err := reg.ReassignPurpose(ctx, id, volumes.PurposeDownloads); err != nil {
				t.Errorf("ReassignPurpose: %v", err)
			}
		}(reg, id)
	}
	wg.Wait()

	d, err := rb.Defaults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	vols, _ := rb.List(ctx)
	n := 0
	for _, v := range vols {
		if v.Purpose == volumes.PurposeDownloads {
			n++
		}
	}
	if n != 1 || d.Purposes[volumes.PurposeDownloads] == "" {
		t.Errorf("%d holders of downloads, defaults = %+v", n, d.Purposes)
	}
}

func TestSaveGameRejectsStaleVersion(t *testing.T) {
	a, b := openShared(t)
	ctx := context.Background()
	g := makeGame("g1")
	if err := a.SaveGame(ctx, g); err != nil {
		t.Fatal(err)
	}
	if g.Version != 1 {
		t.Fatalf("Version after insert = %d, want 1", g.Version)
	}

	mine, _ := a.LoadGame(ctx, "g1")
	theirs, _ := b.LoadGame(ctx, "g1")
	theirs.Title = "Theirs"
	if err := b.SaveGame(ctx, theirs); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	mine.Title = "Mine"
	if err := a.SaveGame(ctx, mine); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("stale save err = %v, want Conflict", err)
	}
	got, _ := a.LoadGame(ctx, "g1")
	if got.Title != "Theirs" || got.Version != 2 {
		t.Errorf("stored = %q v%d", got.Title, got.Version)
	}

	if err := a.SaveGame(ctx, makeGame("g1")); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("insert over existing id err = %v, want Conflict", err)
	}
	if err := a.DeleteGame(ctx, "g1", 1); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("stale delete err = %v, want Conflict", err)
	}
	if err := a.DeleteGame(ctx, "g1", got.Version); err != nil {
		t.Errorf("DeleteGame: %v", err)
	}
	if err := a.SaveGame(ctx, got); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("save of deleted game err = %v, want NotFound", err)
	}
}

func TestLogsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.AppendLog(ctx, &LogEntry{GameID: "g", PlatformID: "wine", ContainerID: "c1", Timestamp: time.Now(), Level: "info", Message: "line"})
	}
	s.AppendLog(ctx, &LogEntry{GameID: "g", PlatformID: "other", Timestamp: time.Now(), Level: "info", Message: "elsewhere"})

	logs, cursor, err := s.GetLogsSince(ctx, "g", "wine", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 || logs[0].ContainerID != "c1" {
		t.Fatalf("logs = %+v", logs)
	}
	s.AppendLog(ctx, &LogEntry{GameID: "g", PlatformID: "wine", Timestamp: time.Now(), Level: "warn", Message: "late"})
	more, next, _ := s.GetLogsSince(ctx, "g", "wine", cursor)
	if len(more) != 1 || more[0].Message != "late" || next <= cursor {
		t.Errorf("more = %+v, next = %d", more, next)
	}

	if err := s.ClearLogs(ctx, "g", "wine"); err != nil {
		t.Fatal(err)
	}
	logs, _, _ = s.GetLogsSince(ctx, "g", "wine", 0)
	if len(logs) != 0 {
		t.Errorf("ClearLogs left %d lines", len(logs))
	}
}
