package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func darwinChecklist() []Check {
	return []Check{
		{ID: "macos-firewall", Name: "macOS Firewall", Probe: probeMacFirewall},
		{ID: "macos-filevault", Name: "FileVault Encryption", Probe: probeFileVault},
		{ID: "macos-autoupdate", Name: "Automatic Updates", Probe: probeMacAutoUpdate},
	}
}

func readDefault(ctx context.Context, r Runner, domain, key string) (string, error) {
	out, err := r.Run(ctx, "defaults", "read", domain, key)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("defaults read %s %s exited %d: %s", domain, key, out.ExitCode, out.Trimmed())
	}
	return out.Trimmed(), nil
}

// probeMacFirewall treats globalstate 1 (on) and 2 (essential services
// only) as enabled.
func probeMacFirewall(ctx context.Context, r Runner) (Verdict, string, error) {
	v, err := readDefault(ctx, r, "/Library/Preferences/com.apple.alf", "globalstate")
	if err != nil {
		return "", "", err
	}
	state, err := strconv.Atoi(v)
	if err != nil {
		return "", "", fmt.Errorf("unexpected globalstate %q", v)
	}
	if state >= 1 {
		return Pass, "Firewall is enabled", nil
	}
	return Fail, "Firewall is disabled", nil
}

func probeFileVault(ctx context.Context, r Runner) (Verdict, string, error) {
	out, err := r.Run(ctx, "fdesetup", "status")
	if err != nil {
		return "", "", err
	}
	if out.ExitCode != 0 {
		return "", "", fmt.Errorf("fdesetup exited %d: %s", out.ExitCode, out.Trimmed())
	}
	if strings.Contains(out.Stdout, "FileVault is On") {
		return Pass, "FileVault is enabled", nil
	}
	return Fail, "FileVault is disabled", nil
}

func probeMacAutoUpdate(ctx context.Context, r Runner) (Verdict, string, error) {
	v, err := readDefault(ctx, r, "/Library/Preferences/com.apple.commerce", "AutoUpdate")
	if err != nil {
		return "", "", err
	}
	if v == "1" {
		return Pass, "Automatic updates are enabled", nil
	}
	return Fail, "Automatic updates are disabled", nil
}
