package checks

import (
	"context"
	"fmt"
	"strings"
)

func linuxChecklist() []Check {
	return []Check{
		{ID: "linux-ufw", Name: "UFW Firewall", Probe: probeUFW},
		{ID: "linux-clamav", Name: "ClamAV Antivirus", Probe: systemdActive("clamav-daemon", "ClamAV is running", "ClamAV is not running")},
		{ID: "linux-unattended-upgrades", Name: "Automatic Updates", Probe: systemdActive("unattended-upgrades", "Automatic updates are enabled", "Automatic updates are disabled")},
		{ID: "linux-luks", Name: "LUKS Encryption", Probe: probeLUKS},
	}
}

func probeUFW(ctx context.Context, r Runner) (Verdict, string, error) {
	out, err := r.Run(ctx, "ufw", "status")
	if err != nil {
		return "", "", err
	}
	if out.ExitCode != 0 {
		return "", "", fmt.Errorf("ufw exited %d: %s", out.ExitCode, out.Trimmed())
	}
	if strings.Contains(out.Stdout, "Status: active") {
		return Pass, "UFW firewall is active", nil
	}
	return Fail, "UFW firewall is inactive", nil
}

// systemdActive checks a unit with `systemctl is-active`, which exits
// non-zero for any state other than active.
func systemdActive(unit, passDetail, failDetail string) ProbeFunc {
	return func(ctx context.Context, r Runner) (Verdict, string, error) {
		out, err := r.Run(ctx, "systemctl", "is-active", unit)
		if err != nil {
			return "", "", err
		}
		state := out.Trimmed()
		if state == "active" {
			return Pass, passDetail, nil
		}
		if state == "" {
			return "", "", fmt.Errorf("systemctl exited %d with no output", out.ExitCode)
		}
		return Fail, fmt.Sprintf("%s (%s)", failDetail, state), nil
	}
}

// probeLUKS passes when at least one block device is a crypt mapping.
func probeLUKS(ctx context.Context, r Runner) (Verdict, string, error) {
	out, err := r.Run(ctx, "lsblk", "-rno", "NAME,TYPE")
	if err != nil {
		return "", "", err
	}
	if out.ExitCode != 0 {
		return "", "", fmt.Errorf("lsblk exited %d: %s", out.ExitCode, out.Trimmed())
	}
	var mapped []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "crypt" {
			mapped = append(mapped, fields[0])
		}
	}
	if len(mapped) > 0 {
		return Pass, fmt.Sprintf("LUKS encryption is enabled (%s)", strings.Join(mapped, ", ")), nil
	}
	return Fail, "LUKS encryption not detected", nil
}
