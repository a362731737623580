package docker

import (
	"os"
	"path/filepath"
	"strings"
)

// Device globs checked for GPU passthrough into installer containers.
var gpuDeviceGlobs = []string{
	"/dev/dri/renderD*",
	"/dev/dri/card*",
	"/dev/nvidia[0-9]*",
	"/dev/nvidiactl",
	"/dev/nvidia-uvm",
	"/dev/nvidia-modeset",
}

// Filesystem hooks, replaced in tests.
var (
	globDevices = filepath.Glob
	statPath    = os.Stat
	readFile    = os.ReadFile
)

// DetectGPUDevices returns a device mapping for every GPU node present on
// the host, in glob order.
func DetectGPUDevices() []DeviceMapping {
	var out []DeviceMapping
	seen := map[string]bool{}
	for _, pattern := range gpuDeviceGlobs {
		matches, _ := globDevices(pattern)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, DeviceMapping{PathOnHost: m, PathInContainer: m, CgroupPermissions: "rwm"})
		}
	}
	return out
}

// GPUDriverStatus reports which GPU kernel drivers are loaded on the host.
type GPUDriverStatus struct {
	NvidiaDriverLoaded bool   `json:"nvidia_driver_loaded"`
	NvidiaVersion      string `json:"nvidia_version,omitempty"`
	IntelDriverLoaded  bool   `json:"intel_driver_loaded"`
	AmdDriverLoaded    bool   `json:"amd_driver_loaded"`
	RenderNodes        int    `json:"render_nodes"`
}

// DetectDriverStatus checks which GPU kernel modules are loaded.
func DetectDriverStatus() GPUDriverStatus {
	var s GPUDriverStatus
	if _, err := statPath("/sys/module/nvidia"); err == nil {
		s.NvidiaDriverLoaded = true
		if data, err := readFile("/sys/module/nvidia/version"); err == nil {
			s.NvidiaVersion = strings.TrimSpace(string(data))
		}
	}
	// i915 or xe on newer Intel GPUs
	if _, err := statPath("/sys/module/i915"); err == nil {
		s.IntelDriverLoaded = true
	} else if _, err := statPath("/sys/module/xe"); err == nil {
		s.IntelDriverLoaded = true
	}
	if _, err := statPath("/sys/module/amdgpu"); err == nil {
		s.AmdDriverLoaded = true
	}
	nodes, _ := globDevices("/dev/dri/renderD*")
	s.RenderNodes = len(nodes)
	return s
}
