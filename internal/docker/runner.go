package docker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/scanner"
	"github.com/thrane20/dillinger/internal/volumes"
)

// DefaultWineImage runs Windows installers when no image is configured.
const DefaultWineImage = "dillinger-wine:latest"

// Labels set on installer containers.
const (
	LabelRole        = "dillinger.role"
	LabelGame        = "dillinger.game"
	LabelPlatform    = "dillinger.platform"
	LabelInstallPath = "dillinger.install_path"

	RoleInstaller = "installer"
)

// Mount points inside installer containers.
const (
	installerMount = "/installer"
	installMount   = "/install"
	cacheMount     = "/cache"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Image   string
	Network string
	// GPU passes the host's render and NVIDIA device nodes through.
	GPU bool
	// Scan finds launch targets once an installer exits cleanly.
	Scan func(root string) ([]scanner.Candidate, error)
}

// Runner runs installers in throwaway Wine containers.
type Runner struct {
	client  *Client
	image   string
	network string
	devices []DeviceMapping
	scan    func(root string) ([]scanner.Candidate, error)
}

var _ engine.Runner = (*Runner)(nil)

// NewRunner creates a Runner on client.
func NewRunner(client *Client, cfg RunnerConfig) *Runner {
	r := &Runner{client: client, image: cfg.Image, network: cfg.Network, scan: cfg.Scan}
	if r.image == "" {
		r.image = DefaultWineImage
	}
	if r.scan == nil {
		r.scan = scanner.Scan
	}
	if cfg.GPU {
		r.devices = DetectGPUDevices()
		log.Printf("[docker] passing %d GPU devices to installers", len(r.devices))
	}
	return r
}

var nameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// containerName returns a unique, docker-safe name for an installer run.
func containerName(spec engine.LaunchSpec) string {
	game := spec.GameID
	if len(game) > 12 {
		game = game[:12]
	}
	name := fmt.Sprintf("dillinger-install-%s-%s-%s", game, spec.PlatformID, uuid.NewString()[:8])
	return nameUnsafe.ReplaceAllString(name, "-")
}

// installerCommand returns the argv that runs the installer inside the
// container.
func installerCommand(spec engine.LaunchSpec) []string {
	in := installerMount + "/" + filepath.Base(spec.InstallerPath)
	var cmd []string
	switch strings.ToLower(filepath.Ext(in)) {
	case ".msi":
		cmd = []string{"wine", "msiexec", "/i", in}
	case ".sh":
		cmd = []string{"/bin/sh", in}
	default:
		cmd = []string{"wine", in}
	}
	return append(cmd, spec.Args...)
}

// containerEnv builds the container environment. Request env comes first
// so the runner's own variables win.
func containerEnv(spec engine.LaunchSpec) []string {
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys)+6)
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}
	env = append(env,
		"WINEPREFIX="+installMount,
		"DILLINGER_GAME_ID="+spec.GameID,
		"DILLINGER_PLATFORM_ID="+spec.PlatformID,
	)
	if spec.WineArch != "" {
		env = append(env, "WINEARCH="+spec.WineArch)
	}
	if spec.WineVersionID != "" {
		env = append(env, "WINE_VERSION="+spec.WineVersionID)
	}
	if len(spec.WinetricksVerbs) > 0 {
		env = append(env, "WINETRICKS_VERBS="+strings.Join(spec.WinetricksVerbs, " "))
	}
	return env
}

// createOptions turns a launch spec into a container definition.
func (r *Runner) createOptions(spec engine.LaunchSpec) ContainerCreateOptions {
	binds := []string{
		filepath.Dir(spec.InstallerPath) + ":" + installerMount + ":ro",
		spec.InstallPath + ":" + installMount,
	}
	if spec.DownloadCachePath != "" {
		binds = append(binds, spec.DownloadCachePath+":"+cacheMount)
	}
	return ContainerCreateOptions{
		Name:  containerName(spec),
		Image: r.image,
		Cmd:   installerCommand(spec),
		Env:   containerEnv(spec),
		Labels: map[string]string{
			volumes.LabelManaged: "true",
			LabelRole:            RoleInstaller,
			LabelGame:            spec.GameID,
			LabelPlatform:        spec.PlatformID,
			LabelInstallPath:     spec.InstallPath,
		},
		Binds:       binds,
		Devices:     r.devices,
		WorkingDir:  installMount,
		NetworkMode: r.network,
	}
}

// Launch creates and starts an installer container and returns its id.
func (r *Runner) Launch(ctx context.Context, spec engine.LaunchSpec) (string, error) {
	if spec.InstallerPath == "" || spec.InstallPath == "" {
		return "", fmt.Errorf("installer path and install path are required")
	}
	for _, dir := range []string{spec.InstallPath, spec.DownloadCachePath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	opts := r.createOptions(spec)
	id, err := r.client.CreateContainer(ctx, opts)
	if err != nil {
		return "", err
	}
	if err := r.client.StartContainer(ctx, id); err != nil {
		if rmErr := r.client.RemoveContainer(ctx, id, true); rmErr != nil {
			log.Printf("[docker] cleanup of %s failed: %v", id, rmErr)
		}
		return "", err
	}
	log.Printf("[docker] started installer %s (%s) for %s/%s", opts.Name, shortID(id), spec.GameID, spec.PlatformID)
	return id, nil
}

// Status maps the container's state onto a run status. A clean exit is
// only a success when the install path holds something launchable.
func (r *Runner) Status(ctx context.Context, handle string) (engine.RunStatus, error) {
	info, err := r.client.InspectContainer(ctx, handle)
	if IsNotFound(err) {
		return engine.Failed(fmt.Sprintf("installer container %s no longer exists", shortID(handle))), nil
	}
	if err != nil {
		return engine.RunStatus{}, err
	}

	st := info.State
	if st.Running || st.Restarting || st.Status == "created" {
		return engine.Running(), nil
	}
	if st.OOMKilled {
		return engine.Failed("installer was killed: out of memory"), nil
	}
	if st.ExitCode != 0 {
		msg := fmt.Sprintf("installer exited with code %d", st.ExitCode)
		if st.Error != "" {
			msg += ": " + st.Error
		}
		return engine.Failed(msg), nil
	}

	root := info.Config.Labels[LabelInstallPath]
	if root == "" {
		return engine.Failed("installer container has no install path label"), nil
	}
	found, err := r.scan(root)
	if err != nil {
		return engine.Failed(fmt.Sprintf("scanning %s: %v", root, err)), nil
	}
	if len(found) == 0 {
		return engine.Failed(fmt.Sprintf("installer finished but no executables were found in %s", root)), nil
	}
	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.Path
	}
	return engine.Succeeded(paths...), nil
}

// Terminate force-removes the container. A container that is already gone
// counts as terminated.
func (r *Runner) Terminate(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	err := r.client.RemoveContainer(ctx, handle, true)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// Installers lists the installer containers the service created.
func (r *Runner) Installers(ctx context.Context) ([]ContainerSummary, error) {
	return r.client.ListContainers(ctx, map[string]string{LabelRole: RoleInstaller})
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
