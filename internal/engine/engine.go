// Package engine drives the installation lifecycle of a game's platform
// configs: start, poll, cancel and reset, plus the reconcile loop that
// polls every running installer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/store"
)

// Options wires an Engine to its collaborators. Games and Runner are
// required; the rest may be nil.
type Options struct {
	Games    games.Repository
	Locks    *games.Locks
	Runner   Runner
	Scanner  Scanner
	Logs     LogStore
	Volumes  Volumes
	Notifier Notifier
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// Engine manages installations. Every transition is a load, check and
// conditional save: the game's lock serializes callers in this process and
// the repository's version check catches writers in other processes (the
// CLI and the service share one database), so two callers cannot both
// enter "installing".
type Engine struct {
	games    games.Repository
	locks    *games.Locks
	runner   Runner
	scanner  Scanner
	logs     LogStore
	volumes  Volumes
	notifier Notifier
	now      func() time.Time

	flight singleflight.Group
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		games:    opts.Games,
		locks:    opts.Locks,
		runner:   opts.Runner,
		scanner:  opts.Scanner,
		logs:     opts.Logs,
		volumes:  opts.Volumes,
		notifier: opts.Notifier,
		now:      opts.Now,
	}
	if e.locks == nil {
		e.locks = &games.Locks{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// load returns the game and the platform config being installed. The
// caller holds the game's lock.
func (e *Engine) load(ctx context.Context, gameID, platformID string) (*games.Game, *games.PlatformConfig, error) {
	if gameID == "" || platformID == "" {
		return nil, nil, errs.InvalidRequest("game id and platform id are required")
	}
	g, err := e.games.LoadGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	pc := g.Platform(platformID)
	if pc == nil {
		return nil, nil, errs.NotFound("platform %s is not configured for %s", platformID, gameID)
	}
	if pc.Installation == nil {
		pc.Installation = games.NewInstallationRecord()
	}
	return g, pc, nil
}

// save persists g and announces the platform's installation record.
func (e *Engine) save(ctx context.Context, g *games.Game, pc *games.PlatformConfig) error {
	g.UpdatedAt = e.now()
	if err := e.games.SaveGame(ctx, g); err != nil {
		return fmt.Errorf("saving game %s: %w", g.ID, err)
	}
	if e.notifier != nil {
		e.notifier.InstallationChanged(g.ID, pc.PlatformID, *pc.Installation)
	}
	return nil
}

// mutate loads the platform config, lets fn edit it and saves the game.
// fn reports whether it changed anything; unchanged configs are not
// saved. When the save loses to another writer, the cycle is replayed on
// a fresh copy, so fn must check its preconditions on what it is given.
// The caller holds the game's lock.
func (e *Engine) mutate(ctx context.Context, gameID, platformID string, fn func(pc *games.PlatformConfig) (bool, error)) (*games.PlatformConfig, bool, error) {
	for attempt := 1; ; attempt++ {
		g, pc, err := e.load(ctx, gameID, platformID)
		if err != nil {
			return nil, false, err
		}
		changed, err := fn(pc)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return pc, false, nil
		}
		err = e.save(ctx, g, pc)
		if err == nil {
			return pc, true, nil
		}
		if !errors.Is(err, errs.ErrConflict) || attempt == games.MaxSaveAttempts {
			return nil, false, err
		}
		log.Printf("[engine] %s/%s changed concurrently, retrying", gameID, platformID)
	}
}

// Get returns the installation record of a platform config.
func (e *Engine) Get(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error) {
	_, pc, err := e.load(ctx, gameID, platformID)
	if err != nil {
		return nil, err
	}
	rec := *pc.Installation
	return &rec, nil
}

// Logs returns installation log lines after a cursor, and the new cursor.
func (e *Engine) Logs(ctx context.Context, gameID, platformID string, afterID int) ([]*store.LogEntry, int, error) {
	if e.logs == nil {
		return nil, afterID, nil
	}
	return e.logs.GetLogsSince(ctx, gameID, platformID, afterID)
}

// installLog writes lines to an installation's log.
type installLog struct {
	engine      *Engine
	ctx         context.Context
	gameID      string
	platformID  string
	containerID string
}

func (e *Engine) logFor(ctx context.Context, gameID, platformID, containerID string) *installLog {
	return &installLog{engine: e, ctx: ctx, gameID: gameID, platformID: platformID, containerID: containerID}
}

func (l *installLog) log(level, msg string, args ...interface{}) {
	message := fmt.Sprintf(msg, args...)
	if l.engine.logs == nil {
		log.Printf("[engine] %s/%s %s: %s", l.gameID, l.platformID, level, message)
		return
	}
	err := l.engine.logs.AppendLog(l.ctx, &store.LogEntry{
		GameID:      l.gameID,
		PlatformID:  l.platformID,
		ContainerID: l.containerID,
		Timestamp:   l.engine.now(),
		Level:       level,
		Message:     message,
	})
	if err != nil {
		log.Printf("[engine] appending log for %s/%s: %v", l.gameID, l.platformID, err)
	}
}

func (l *installLog) info(msg string, args ...interface{}) { l.log("info", msg, args...) }
func (l *installLog) warn(msg string, args ...interface{}) { l.log("warn", msg, args...) }
func (l *installLog) errorf(msg string, args ...interface{}) {
	l.log("error", msg, args...)
}
