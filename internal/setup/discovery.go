package setup

import (
	"context"
	"os"
	"time"

	"github.com/thrane20/dillinger/internal/docker"
)

// HostInfo holds what the wizard detects on this machine.
type HostInfo struct {
	Hostname      string
	DockerSocket  string
	DockerVersion string
	DockerErr     error
	GPU           docker.GPUDriverStatus
}

// Discover queries the docker daemon on socket and the host's GPU drivers.
func Discover(ctx context.Context, socket string) *HostInfo {
	info := &HostInfo{DockerSocket: socket, GPU: docker.DetectDriverStatus()}
	info.Hostname, _ = os.Hostname()

	client, err := docker.NewClient(docker.ClientConfig{Socket: socket, Timeout: 5 * time.Second})
	if err != nil {
		info.DockerErr = err
		return info
	}
	di, err := client.Info(ctx)
	if err != nil {
		info.DockerErr = err
		return info
	}
	info.DockerVersion = di.ServerVersion
	return info
}

// HasGPU reports whether any GPU driver or render node was found.
func (h *HostInfo) HasGPU() bool {
	g := h.GPU
	return g.NvidiaDriverLoaded || g.IntelDriverLoaded || g.AmdDriverLoaded || g.RenderNodes > 0
}
