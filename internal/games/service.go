package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/lutris"
)

// Repository persists games. LoadGame returns an errs.NotFound error for
// unknown ids. SaveGame and DeleteGame are conditional on g.Version and
// return an errs.Conflict error when another writer saved the game since
// it was loaded; on success SaveGame advances g.Version.
type Repository interface {
	LoadGame(ctx context.Context, id string) (*Game, error)
	SaveGame(ctx context.Context, g *Game) error
	ListGames(ctx context.Context) ([]*Game, error)
	DeleteGame(ctx context.Context, id string, version int64) error
}

// MaxSaveAttempts bounds how often a read-modify-write cycle is replayed
// after losing a conditional save to another process.
const MaxSaveAttempts = 5

// Locks serializes read-modify-write cycles per game id within one
// process. The service and the installation engine share one instance;
// writers in other processes are caught by the repository's version check.
type Locks struct {
	m sync.Map
}

// Lock acquires the lock for key and returns its release function.
func (l *Locks) Lock(key string) func() {
	v, _ := l.m.LoadOrStore(key, &sync.Mutex{})
	mtx := v.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}

// Service applies platform operations to persisted games.
type Service struct {
	repo  Repository
	locks *Locks
	// RequireOne is passed to RemovePlatform.
	RequireOne bool
}

// NewService returns a Service. A nil locks gets a private instance.
func NewService(repo Repository, locks *Locks) *Service {
	if locks == nil {
		locks = &Locks{}
	}
	return &Service{repo: repo, locks: locks}
}

// Locks returns the lock set guarding game records.
func (s *Service) Locks() *Locks { return s.locks }

// update loads a game, applies fn and saves it, all under the game's lock.
// A save that loses to another process is replayed on a fresh copy.
func (s *Service) update(ctx context.Context, gameID string, fn func(g *Game) error) (*Game, error) {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		g, err := s.repo.LoadGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if err := fn(g); err != nil {
			return nil, err
		}
		err = s.repo.SaveGame(ctx, g)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, errs.ErrConflict) || attempt == MaxSaveAttempts {
			return nil, fmt.Errorf("saving game %s: %w", gameID, err)
		}
	}
}

// CreateGame catalogues a new title, optionally with a first platform.
func (s *Service) CreateGame(ctx context.Context, title, platformID string) (*Game, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errs.InvalidRequest("title is required")
	}
	now := time.Now()
	g := &Game{
		ID:        uuid.NewString(),
		Title:     title,
		Platforms: []PlatformConfig{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if platformID != "" {
		if err := CommitDraft(g, NewDraft(platformID)); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SaveGame(ctx, g); err != nil {
		return nil, fmt.Errorf("saving game: %w", err)
	}
	return g, nil
}

func (s *Service) GetGame(ctx context.Context, id string) (*Game, error) {
	return s.repo.LoadGame(ctx, id)
}

func (s *Service) ListGames(ctx context.Context) ([]*Game, error) {
	return s.repo.ListGames(ctx)
}

// DeleteGame removes a game. Installing platforms must be cancelled first.
func (s *Service) DeleteGame(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		g, err := s.repo.LoadGame(ctx, id)
		if err != nil {
			return err
		}
		for _, pc := range g.Platforms {
			if pc.InstallationOf().Status == StatusInstalling {
				return errs.AlreadyInstalling("platform %s of %s is installing, cancel it first", pc.PlatformID, id)
			}
		}
		err = s.repo.DeleteGame(ctx, id, g.Version)
		if !errors.Is(err, errs.ErrConflict) || attempt == MaxSaveAttempts {
			return err
		}
	}
}

// SelectPlatform commits current and returns the draft for platformID.
func (s *Service) SelectPlatform(ctx context.Context, gameID string, current *Draft, platformID string) (*Draft, error) {
	var d *Draft
	_, err := s.update(ctx, gameID, func(g *Game) error {
		var err error
		d, err = SelectPlatform(g, current, platformID)
		return err
	})
	return d, err
}

func (s *Service) AddPlatform(ctx context.Context, gameID string, current *Draft, platformID string) (*Draft, error) {
	var d *Draft
	_, err := s.update(ctx, gameID, func(g *Game) error {
		var err error
		d, err = AddPlatform(g, current, platformID)
		return err
	})
	return d, err
}

func (s *Service) RemovePlatform(ctx context.Context, gameID, platformID string) (*Game, error) {
	return s.update(ctx, gameID, func(g *Game) error {
		if pc := g.Platform(platformID); pc != nil && pc.InstallationOf().Status == StatusInstalling {
			return errs.AlreadyInstalling("platform %s is installing, cancel it first", platformID)
		}
		return RemovePlatform(g, platformID, RemoveOptions{RequireOne: s.RequireOne})
	})
}

func (s *Service) CommitDraft(ctx context.Context, gameID string, d *Draft) (*Game, error) {
	return s.update(ctx, gameID, func(g *Game) error {
		return CommitDraft(g, d)
	})
}

func (s *Service) SetDefaultPlatform(ctx context.Context, gameID, platformID string) (*Game, error) {
	return s.update(ctx, gameID, func(g *Game) error {
		return SetDefaultPlatform(g, platformID)
	})
}

// AttachLutrisInstallers replaces the installers attached to a platform.
// A selection that no longer names an attached installer is cleared.
func (s *Service) AttachLutrisInstallers(ctx context.Context, gameID, platformID string, installers []lutris.Installer) (*Game, error) {
	seen := make(map[string]bool, len(installers))
	for _, inst := range installers {
		if inst.ID == "" {
			return nil, errs.InvalidRequest("lutris installer without id")
		}
		if seen[inst.ID] {
			return nil, errs.InvalidRequest("lutris installer %s attached twice", inst.ID)
		}
		seen[inst.ID] = true
	}
	return s.update(ctx, gameID, func(g *Game) error {
		pc := g.Platform(platformID)
		if pc == nil {
			return errs.NotFound("platform %s is not configured for %s", platformID, gameID)
		}
		pc.LutrisInstallers = append([]lutris.Installer(nil), installers...)
		if !seen[pc.SelectedLutrisInstallerID] {
			pc.SelectedLutrisInstallerID = ""
		}
		g.UpdatedAt = time.Now()
		return nil
	})
}

// SelectLutrisInstaller records the chosen installer and merges what its
// script says about Wine into the platform settings.
func (s *Service) SelectLutrisInstaller(ctx context.Context, gameID, platformID, installerID string) (*Game, error) {
	if installerID == "" {
		return nil, errs.InvalidRequest("installer id is required")
	}
	return s.update(ctx, gameID, func(g *Game) error {
		pc := g.Platform(platformID)
		if pc == nil {
			return errs.NotFound("platform %s is not configured for %s", platformID, gameID)
		}
		inst, err := lutris.Resolve(pc.LutrisInstallers, installerID)
		if err != nil {
			return err
		}
		if inst == nil {
			return errs.NotFound("no lutris installers attached to %s", platformID)
		}
		pc.SelectedLutrisInstallerID = inst.ID
		pc.Settings.ApplyLutris(lutris.FragmentOf(&inst.Script))
		g.UpdatedAt = time.Now()
		return nil
	})
}
