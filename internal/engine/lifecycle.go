package engine

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/metrics"
)

// Poll reconciles one installation with its runner. Records that are not
// installing are returned unchanged. Concurrent polls of the same
// installation share one runner query.
func (e *Engine) Poll(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error) {
	v, err, _ := e.flight.Do(gameID+"\x00"+platformID, func() (interface{}, error) {
		return e.poll(ctx, gameID, platformID)
	})
	if err != nil {
		return nil, err
	}
	rec := v.(games.InstallationRecord)
	return &rec, nil
}

func (e *Engine) poll(ctx context.Context, gameID, platformID string) (games.InstallationRecord, error) {
	rec, err := e.Get(ctx, gameID, platformID)
	if err != nil {
		return games.InstallationRecord{}, err
	}
	if rec.Status != games.StatusInstalling {
		return *rec, nil
	}

	// The runner is queried without the lock so cancel and reset are not
	// held up by a slow daemon.
	handle := rec.ContainerID
	start := time.Now()
	status, qerr := e.runner.Status(ctx, handle)
	metrics.ObservePoll(time.Since(start))
	if qerr == nil && status.State == RunRunning {
		return *rec, nil
	}

	unlock := e.locks.Lock(gameID)
	defer unlock()

	var (
		msg     string
		command string
	)
	outcome := metrics.OutcomeFailed
	switch {
	case qerr != nil:
		metrics.RunnerError("status")
		msg = errs.ExternalRunner(qerr, "querying installer %s", handle).Error()
	case status.State == RunSucceeded:
		outcome = metrics.OutcomeInstalled
	default:
		msg = status.Error
		if msg == "" {
			msg = "installer failed"
		}
	}

	scanned, setCommand := false, false
	pc, changed, err := e.mutate(ctx, gameID, platformID, func(pc *games.PlatformConfig) (bool, error) {
		cur := pc.Installation
		if cur.Status != games.StatusInstalling || cur.ContainerID != handle {
			// Cancelled, reset or restarted while the runner was queried;
			// the result belongs to a container nobody tracks any more.
			return false, nil
		}
		if outcome == metrics.OutcomeFailed {
			return true, cur.Fail(msg)
		}
		if err := cur.Complete(e.now()); err != nil {
			return false, err
		}
		setCommand = pc.Settings.Launch.Command == ""
		if setCommand {
			if !scanned {
				command = e.launchCommand(cur.InstallPath, status.Executables)
				scanned = true
			}
			pc.Settings.Launch.Command = command
		}
		return true, nil
	})
	if err != nil {
		return games.InstallationRecord{}, err
	}
	cur := *pc.Installation
	if !changed {
		return cur, nil
	}

	ilog := e.logFor(ctx, gameID, platformID, handle)
	if outcome == metrics.OutcomeInstalled {
		if setCommand && command != "" {
			ilog.info("Launch command set to %s", command)
		}
		ilog.info("Installation complete (%d executables found)", len(status.Executables))
	} else if qerr != nil {
		ilog.errorf("%s", msg)
	} else {
		ilog.errorf("Installation failed: %s", msg)
	}
	metrics.InstallFinished(platformID, outcome)
	log.Printf("[engine] %s/%s -> %s", gameID, platformID, cur.Status)
	return cur, nil
}

// launchCommand picks the executable to launch after an install: the first
// one the runner reported, else the scanner's best candidate.
func (e *Engine) launchCommand(installPath string, executables []string) string {
	if len(executables) > 0 {
		return absUnder(installPath, executables[0])
	}
	if e.scanner == nil || installPath == "" {
		return ""
	}
	found, err := e.scanner.Scan(installPath)
	if err != nil {
		log.Printf("[engine] scanning %s: %v", installPath, err)
		return ""
	}
	if len(found) == 0 {
		return ""
	}
	return absUnder(installPath, found[0].Path)
}

func absUnder(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

// Cancel terminates a running installer and returns the record to
// not_installed. The record is reset before the runner is asked to stop;
// termination is best effort and a failure leaves the reset in place.
func (e *Engine) Cancel(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error) {
	unlock := e.locks.Lock(gameID)
	defer unlock()

	var handle string
	pc, _, err := e.mutate(ctx, gameID, platformID, func(pc *games.PlatformConfig) (bool, error) {
		rec := pc.Installation
		if rec.Status != games.StatusInstalling {
			return false, errs.InvalidRequest("%s/%s is %s, only installing records can be cancelled", gameID, platformID, rec.Status)
		}
		handle = rec.ContainerID
		return true, rec.Reset()
	})
	if err != nil {
		return nil, err
	}
	ilog := e.logFor(ctx, gameID, platformID, handle)
	ilog.warn("Cancelling installation in %s", handle)
	e.terminate(ctx, ilog, handle)
	metrics.InstallFinished(platformID, metrics.OutcomeCancelled)
	out := *pc.Installation
	return &out, nil
}

// Reset clears an installed or failed record back to not_installed so the
// game can be installed again. The download cache path is kept.
func (e *Engine) Reset(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error) {
	unlock := e.locks.Lock(gameID)
	defer unlock()

	var old string
	pc, _, err := e.mutate(ctx, gameID, platformID, func(pc *games.PlatformConfig) (bool, error) {
		rec := pc.Installation
		if rec.Status != games.StatusInstalled && rec.Status != games.StatusFailed {
			return false, errs.InvalidRequest("%s/%s is %s, only installed or failed records can be reset", gameID, platformID, rec.Status)
		}
		old = rec.ContainerID
		return true, rec.Reset()
	})
	if err != nil {
		return nil, err
	}
	e.terminate(ctx, e.logFor(ctx, gameID, platformID, old), old)
	if e.logs != nil {
		if err := e.logs.ClearLogs(ctx, gameID, platformID); err != nil {
			log.Printf("[engine] clearing logs of %s/%s: %v", gameID, platformID, err)
		}
	}
	out := *pc.Installation
	return &out, nil
}
