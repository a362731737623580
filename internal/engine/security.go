package engine

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/volumes"
)

var validEnvKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedEnvKeys are set by the runner and cannot be overridden by a
// start request.
var reservedEnvKeys = map[string]bool{
	"PATH":            true,
	"LD_PRELOAD":      true,
	"LD_LIBRARY_PATH": true,
	"HOME":            true,
	"USER":            true,
	"SHELL":           true,
	"TERM":            true,
	"WINEPREFIX":      true,
	"WINEARCH":        true,
}

// ValidateEnvVars checks env var keys for safety.
func ValidateEnvVars(envVars map[string]string) error {
	for k := range envVars {
		if !validEnvKeyRe.MatchString(k) {
			return fmt.Errorf("environment variable key %q is invalid (must match [A-Za-z_][A-Za-z0-9_]*)", k)
		}
		if reservedEnvKeys[strings.ToUpper(k)] {
			return fmt.Errorf("environment variable %q is reserved and cannot be overridden", k)
		}
	}
	return nil
}

// validArchs are the wine prefix architectures a request may ask for.
var validArchs = map[string]bool{"": true, "win32": true, "win64": true}

// validateStart checks the caller-supplied parts of a start request. The
// installer's directory and the install path are mounted into the runner,
// so both must pass the host path deny list.
func validateStart(req StartRequest) error {
	if p := strings.TrimSpace(req.InstallerPath); p != "" {
		if err := volumes.ValidateHostPath(filepath.Dir(p)); err != nil {
			return errs.InvalidRequest("installer path: %v", err)
		}
	}
	if p := strings.TrimSpace(req.InstallPath); p != "" {
		if err := volumes.ValidateHostPath(p); err != nil {
			return errs.InvalidRequest("install path: %v", err)
		}
	}
	if err := ValidateEnvVars(req.Env); err != nil {
		return errs.InvalidRequest("%v", err)
	}
	if !validArchs[req.WineArch] {
		return errs.InvalidRequest("wine arch %q is invalid (must be win32 or win64)", req.WineArch)
	}
	return nil
}
