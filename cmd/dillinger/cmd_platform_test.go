package main

import "testing"

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"DXVK_HUD=1", "EMPTY=", "URL=a=b"})
	if err != nil {
		t.Fatalf("parseEnv: %v", err)
	}
	if env["DXVK_HUD"] != "1" || env["EMPTY"] != "" || env["URL"] != "a=b" {
		t.Errorf("env = %v", env)
	}
}

func TestParseEnvRejectsMalformed(t *testing.T) {
	for _, in := range []string{"NOEQUALS", "=value"} {
		if _, err := parseEnv([]string{in}); err == nil {
			t.Errorf("parseEnv(%q) should fail", in)
		}
	}
}

func TestParseEnvRejectsReserved(t *testing.T) {
	if _, err := parseEnv([]string{"WINEPREFIX=/tmp/x"}); err == nil {
		t.Error("WINEPREFIX should be rejected")
	}
}
