package volumes

import (
	"fmt"
	"path/filepath"
	"strings"
)

// denyListPaths are host paths that must never be mounted into installer
// containers or tracked as volumes.
var denyListPaths = []string{
	"/etc",
	"/proc",
	"/sys",
	"/dev",
	"/root",
	"/boot",
	"/usr",
	"/bin",
	"/sbin",
	"/lib",
	"/lib64",
	"/run",
	"/var/run",
	"/var/lib/docker",
	"/var/lib/dillinger",
}

// ValidateHostPath checks that a host path is absolute and outside the
// deny list.
func ValidateHostPath(hostPath string) error {
	if hostPath == "" {
		return nil
	}
	cleaned := filepath.Clean(hostPath)
	if !filepath.IsAbs(cleaned) {
		return fmt.Errorf("host path must be absolute: %q", hostPath)
	}
	if cleaned == "/" {
		return fmt.Errorf("host path %q is not allowed (filesystem root)", hostPath)
	}
	for _, denied := range denyListPaths {
		if cleaned == denied || strings.HasPrefix(cleaned, denied+"/") {
			return fmt.Errorf("host path %q is not allowed (restricted system path)", hostPath)
		}
	}
	return nil
}
