package engine

import (
	"errors"
	"testing"

	"github.com/thrane20/dillinger/internal/errs"
)

func TestValidateEnvVarsValid(t *testing.T) {
	env := map[string]string{
		"WINEDLLOVERRIDES": "d3d9=n,b",
		"DXVK_HUD":         "fps",
		"_PRIVATE":         "1",
	}
	if err := ValidateEnvVars(env); err != nil {
		t.Errorf("ValidateEnvVars() = %v, want nil", err)
	}
}

func TestValidateEnvVarsReserved(t *testing.T) {
	reserved := []string{"PATH", "LD_PRELOAD", "HOME", "WINEPREFIX", "wineprefix", "WINEARCH"}
	for _, k := range reserved {
		if err := ValidateEnvVars(map[string]string{k: "x"}); err == nil {
			t.Errorf("ValidateEnvVars(%q) = nil, want error", k)
		}
	}
}

func TestValidateEnvVarsInvalidKey(t *testing.T) {
	invalid := []string{"1ABC", "A-B", "A B", "", "A=B"}
	for _, k := range invalid {
		if err := ValidateEnvVars(map[string]string{k: "x"}); err == nil {
			t.Errorf("ValidateEnvVars(%q) = nil, want error", k)
		}
	}
}

func TestValidateEnvVarsEmpty(t *testing.T) {
	if err := ValidateEnvVars(nil); err != nil {
		t.Errorf("ValidateEnvVars(nil) = %v, want nil", err)
	}
}

func TestValidateStartRejectsSystemPaths(t *testing.T) {
	cases := []StartRequest{
		{InstallerPath: "/etc/setup.exe", InstallPath: "/games/a"},
		{InstallerPath: "/mnt/installers/setup.exe", InstallPath: "/var/lib/docker/volumes/x"},
		{InstallerPath: "/mnt/installers/setup.exe", InstallPath: "/"},
		{InstallerPath: "/mnt/installers/setup.exe", InstallPath: "relative/dir"},
	}
	for _, req := range cases {
		err := validateStart(req)
		if !errors.Is(err, errs.ErrInvalidRequest) {
			t.Errorf("validateStart(%q, %q) = %v, want InvalidRequest", req.InstallerPath, req.InstallPath, err)
		}
	}
}

func TestValidateStartArch(t *testing.T) {
	ok := StartRequest{InstallerPath: "/mnt/i/setup.exe", WineArch: "win32"}
	if err := validateStart(ok); err != nil {
		t.Errorf("validateStart(win32) = %v", err)
	}
	bad := StartRequest{InstallerPath: "/mnt/i/setup.exe", WineArch: "x86"}
	if err := validateStart(bad); !errors.Is(err, errs.ErrInvalidRequest) {
		t.Errorf("validateStart(x86) = %v, want InvalidRequest", err)
	}
}
