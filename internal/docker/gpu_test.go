package docker

import (
	"errors"
	"os"
	"testing"
)

func TestDetectGPUDevices(t *testing.T) {
	orig := globDevices
	t.Cleanup(func() { globDevices = orig })
	globDevices = func(pattern string) ([]string, error) {
		switch pattern {
		case "/dev/dri/renderD*":
			return []string{"/dev/dri/renderD128"}, nil
		case "/dev/dri/card*":
			return []string{"/dev/dri/card0"}, nil
		case "/dev/nvidiactl":
			return []string{"/dev/nvidiactl"}, nil
		}
		return nil, nil
	}

	devs := DetectGPUDevices()
	if len(devs) != 3 {
		t.Fatalf("devices = %+v", devs)
	}
	if devs[0].PathOnHost != "/dev/dri/renderD128" || devs[0].PathInContainer != "/dev/dri/renderD128" || devs[0].CgroupPermissions != "rwm" {
		t.Errorf("first device = %+v", devs[0])
	}
}

func TestDetectDriverStatus(t *testing.T) {
	origStat, origRead, origGlob := statPath, readFile, globDevices
	t.Cleanup(func() { statPath, readFile, globDevices = origStat, origRead, origGlob })

	present := map[string]bool{"/sys/module/nvidia": true, "/sys/module/xe": true}
	statPath = func(p string) (os.FileInfo, error) {
		if present[p] {
			return nil, nil
		}
		return nil, errors.New("missing")
	}
	readFile = func(p string) ([]byte, error) { return []byte("550.54\n"), nil }
	globDevices = func(string) ([]string, error) { return []string{"/dev/dri/renderD128", "/dev/dri/renderD129"}, nil }

	s := DetectDriverStatus()
	if !s.NvidiaDriverLoaded || s.NvidiaVersion != "550.54" || !s.IntelDriverLoaded || s.AmdDriverLoaded || s.RenderNodes != 2 {
		t.Errorf("status = %+v", s)
	}
}
