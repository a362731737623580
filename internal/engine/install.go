package engine

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/thrane20/dillinger/internal/archive"
	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/lutris"
	"github.com/thrane20/dillinger/internal/metrics"
	"github.com/thrane20/dillinger/internal/scanner"
	"github.com/thrane20/dillinger/internal/volumes"
)

// startable reports why an installation in rec cannot start, if it cannot.
func startable(req StartRequest, rec *games.InstallationRecord) error {
	switch rec.Status {
	case games.StatusInstalling:
		return errs.AlreadyInstalling("%s/%s is already installing in %s", req.GameID, req.PlatformID, rec.ContainerID)
	case games.StatusInstalled, games.StatusFailed:
		return errs.InvalidRequest("%s/%s is %s, reset it before reinstalling", req.GameID, req.PlatformID, rec.Status)
	}
	return nil
}

// Start launches the installer for a platform config and moves its record
// to installing. Only a not_installed record can start; installed and
// failed records must be reset first. The record is re-checked when it is
// saved after the launch; if another process started or changed it
// meanwhile, the container just launched is terminated.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*games.InstallationRecord, error) {
	if req.GameID == "" || req.PlatformID == "" {
		return nil, errs.InvalidRequest("game id and platform id are required")
	}
	if err := validateStart(req); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(req.GameID)
	defer unlock()

	_, pc, err := e.load(ctx, req.GameID, req.PlatformID)
	if err != nil {
		return nil, err
	}
	if err := startable(req, pc.Installation); err != nil {
		return nil, err
	}

	installerPath := strings.TrimSpace(req.InstallerPath)
	if installerPath == "" {
		return nil, errs.InvalidRequest("installer path is required")
	}
	installPath := strings.TrimSpace(req.InstallPath)
	if installPath == "" {
		installPath, err = e.defaultPath(ctx, volumes.PurposeInstalled, req.GameID)
		if err != nil {
			return nil, err
		}
	}
	if installPath == "" {
		return nil, errs.InvalidRequest("install path is required and no installed-games volume is assigned")
	}
	cachePath := pc.Installation.DownloadCachePath
	if cachePath == "" {
		if cachePath, err = e.defaultPath(ctx, volumes.PurposeDownloads, req.GameID); err != nil {
			return nil, err
		}
	}

	inst, err := lutris.Resolve(pc.LutrisInstallers, pc.SelectedLutrisInstallerID)
	if err != nil {
		return nil, err
	}
	var frag lutris.Fragment
	env := make(map[string]string, len(req.Env)+2)
	for k, v := range req.Env {
		env[k] = v
	}
	if inst != nil {
		frag = lutris.FragmentOf(&inst.Script)
		if overrides := lutris.DllOverridesEnv(&inst.Script); overrides != "" {
			if _, set := env["WINEDLLOVERRIDES"]; !set {
				env["WINEDLLOVERRIDES"] = overrides
			}
		}
	}

	spec := LaunchSpec{
		GameID:            req.GameID,
		PlatformID:        req.PlatformID,
		InstallerPath:     installerPath,
		InstallPath:       installPath,
		DownloadCachePath: cachePath,
		Args:              append([]string(nil), req.Args...),
		Env:               env,
		WineArch:          firstNonEmpty(req.WineArch, frag.Arch, pc.Settings.Wine.Arch),
		WineVersionID:     firstNonEmpty(req.WineVersionID, pc.Settings.Wine.VersionID, frag.WineVersion),
		WinetricksVerbs:   frag.WinetricksVerbs,
	}
	if len(spec.WinetricksVerbs) == 0 {
		spec.WinetricksVerbs = append([]string(nil), pc.Settings.Wine.WinetricksVerbs...)
	}

	ilog := e.logFor(ctx, req.GameID, req.PlatformID, "")
	if archive.IsArchive(installerPath) {
		setup, err := e.unpack(ctx, ilog, installerPath, cachePath)
		if err != nil {
			return nil, err
		}
		spec.InstallerPath = setup
	}

	handle, err := e.runner.Launch(ctx, spec)
	if err != nil {
		metrics.RunnerError("launch")
		ilog.errorf("Launching installer %s failed: %v", spec.InstallerPath, err)
		return nil, errs.ExternalRunner(err, "launching installer for %s/%s", req.GameID, req.PlatformID)
	}

	pc, _, err = e.mutate(ctx, req.GameID, req.PlatformID, func(pc *games.PlatformConfig) (bool, error) {
		if err := startable(req, pc.Installation); err != nil {
			return false, err
		}
		// An auto-selected installer is merged into the settings the way
		// an explicit selection is.
		if inst != nil && pc.SelectedLutrisInstallerID != inst.ID {
			pc.SelectedLutrisInstallerID = inst.ID
			pc.Settings.ApplyLutris(frag)
		}
		return true, pc.Installation.Begin(games.BeginParams{
			InstallerPath:     spec.InstallerPath,
			InstallPath:       installPath,
			InstallerArgs:     spec.Args,
			WineVersionID:     spec.WineVersionID,
			WineArch:          spec.WineArch,
			ContainerID:       handle,
			DownloadCachePath: cachePath,
		}, e.now())
	})
	if err != nil {
		ilog.warn("Discarding installer container %s: %v", handle, err)
		e.terminate(ctx, ilog, handle)
		return nil, err
	}

	metrics.InstallStarted(req.PlatformID)
	ilog.containerID = handle
	if inst != nil {
		ilog.info("Using Lutris installer %s (%s)", inst.ID, inst.Slug)
	}
	ilog.info("Installing %s into %s (container %s)", spec.InstallerPath, installPath, handle)
	log.Printf("[engine] %s/%s installing in %s", req.GameID, req.PlatformID, handle)
	rec := *pc.Installation
	return &rec, nil
}

// unpack extracts an installer archive into the download cache and returns
// the setup executable it contains.
func (e *Engine) unpack(ctx context.Context, ilog *installLog, src, cachePath string) (string, error) {
	if cachePath == "" {
		return "", errs.InvalidRequest("installer %s is an archive but no download cache is available", filepath.Base(src))
	}
	dst := filepath.Join(cachePath, "extracted", strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	ilog.info("Extracting %s to %s", src, dst)
	n, err := archive.Extract(ctx, src, dst)
	if err != nil {
		ilog.errorf("Extracting %s failed: %v", src, err)
		return "", errs.InvalidRequest("extracting installer archive: %v", err)
	}
	setup, err := scanner.FindSetup(dst)
	if err != nil {
		return "", errs.InvalidRequest("%v", err)
	}
	ilog.info("Extracted %d files, installer is %s", n, setup)
	return setup, nil
}

// defaultPath returns <purpose volume>/<gameID>, or "" when the purpose has
// no volume.
func (e *Engine) defaultPath(ctx context.Context, purpose volumes.Purpose, gameID string) (string, error) {
	if e.volumes == nil {
		return "", nil
	}
	v, err := e.volumes.ResolveDefault(ctx, purpose)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return filepath.Join(v.HostPath, gameID), nil
}

// terminate stops a launched installer, logging failures.
func (e *Engine) terminate(ctx context.Context, ilog *installLog, handle string) {
	if handle == "" {
		return
	}
	if err := e.runner.Terminate(ctx, handle); err != nil {
		metrics.RunnerError("terminate")
		ilog.warn("Terminating %s failed: %v", handle, err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
