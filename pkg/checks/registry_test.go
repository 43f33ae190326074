package checks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ufwCmd     = "ufw status"
	clamavCmd  = "systemctl is-active clamav-daemon"
	upgradeCmd = "systemctl is-active unattended-upgrades"
	lsblkCmd   = "lsblk -rno NAME,TYPE"
)

func verdicts(results []Result) []Verdict {
	out := make([]Verdict, len(results))
	for i, r := range results {
		out[i] = r.Verdict
	}
	return out
}

func TestLinuxChecklistOrderAndVerdicts(t *testing.T) {
	r := newFakeRunner().
		on(ufwCmd, "Status: active\n", 0).
		on(clamavCmd, "inactive\n", 3).
		on(upgradeCmd, "active\n", 0).
		fail(lsblkCmd, errors.New("lsblk: not found"))

	results, err := NewRegistry(r, nil).Run(context.Background(), Linux)
	require.NoError(t, err)

	assert.Equal(t, []Verdict{Pass, Fail, Pass, Error}, verdicts(results))
	assert.Equal(t, "UFW Firewall", results[0].Name)
	assert.Equal(t, "LUKS Encryption", results[3].Name)
	assert.Contains(t, results[1].Detail, "inactive")
	assert.Contains(t, results[3].Detail, "lsblk: not found")
}

func TestLUKSDetectsCryptMapping(t *testing.T) {
	r := newFakeRunner().on(lsblkCmd, "sda disk\nsda1 part\nluks-abc crypt\n", 0)
	v, detail, err := probeLUKS(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, Pass, v)
	assert.Contains(t, detail, "luks-abc")

	r = newFakeRunner().on(lsblkCmd, "sda disk\nsda1 part\n", 0)
	v, _, err = probeLUKS(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, Fail, v)
}

func TestUFWNeedsRootIsError(t *testing.T) {
	r := newFakeRunner().on(ufwCmd, "ERROR: You need to be root to run this script", 1)
	res := NewRegistry(r, nil).RunCheck(context.Background(), linuxChecklist()[0])
	assert.Equal(t, Error, res.Verdict)
}

func TestWindowsChecklist(t *testing.T) {
	netsh := "\nDomain Profile Settings:\n----------------\nState                                 ON\n\n" +
		"Private Profile Settings:\n----------------\nState                                 ON\n\n" +
		"Public Profile Settings:\n----------------\nState                                 OFF\n"
	bde := "Volume C: [OS]\n    Percentage Encrypted: 100.0%\nVolume D: [Data]\n    Percentage Encrypted: 100%\n"
	r := newFakeRunner().
		on("netsh advfirewall show allprofiles state", netsh, 0).
		on("powershell -NoProfile -Command Get-MpComputerStatus | Select-Object -ExpandProperty AMServiceEnabled", "True\r\n", 0).
		on("manage-bde -status", bde, 0)

	results, err := NewRegistry(r, nil).Run(context.Background(), Windows)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, []Verdict{Fail, Pass, Warn, Pass, Warn}, verdicts(results))
	assert.Contains(t, results[0].Detail, "1 of 3")
}

func TestBitLockerPartial(t *testing.T) {
	r := newFakeRunner().on("manage-bde -status", "Percentage Encrypted: 100.0%\nPercentage Encrypted: 42.5%\n", 0)
	v, detail, err := probeBitLocker(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, Fail, v)
	assert.Contains(t, detail, "1 of 2")
}

func TestDarwinChecklist(t *testing.T) {
	r := newFakeRunner().
		on("defaults read /Library/Preferences/com.apple.alf globalstate", "2\n", 0).
		on("fdesetup status", "FileVault is Off.\n", 0).
		on("defaults read /Library/Preferences/com.apple.commerce AutoUpdate", "The domain/default pair does not exist", 1)

	results, err := NewRegistry(r, nil).Run(context.Background(), Darwin)
	require.NoError(t, err)
	assert.Equal(t, []Verdict{Pass, Fail, Error}, verdicts(results))
}

func TestUnsupportedPlatform(t *testing.T) {
	results, err := NewRegistry(newFakeRunner(), nil).Run(context.Background(), ParsePlatform("Plan9"))

	var unsupported *UnsupportedPlatformError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, Platform("plan9"), unsupported.Platform)
	require.Len(t, results, 1)
	assert.Equal(t, Error, results[0].Verdict)
	assert.True(t, results[0].Informational)
	assert.Contains(t, results[0].Detail, "plan9")
}

func TestPanickingProbeBecomesError(t *testing.T) {
	reg := NewRegistry(newFakeRunner(), nil)
	res := reg.RunCheck(context.Background(), Check{
		ID: "boom", Name: "Boom",
		Probe: func(context.Context, Runner) (Verdict, string, error) { panic("parse failure") },
	})
	assert.Equal(t, Error, res.Verdict)
	assert.Equal(t, "Boom", res.Name)
	assert.Contains(t, res.Detail, "parse failure")
}

func TestRunStopsOnCancellation(t *testing.T) {
	r := newFakeRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRegistry(r, nil).Run(ctx, Linux)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Empty(t, r.calls, "no probe may run after cancellation")
}

func TestParsePlatform(t *testing.T) {
	assert.Equal(t, Darwin, ParsePlatform("macOS"))
	assert.Equal(t, Windows, ParsePlatform("Windows"))
	assert.Equal(t, Linux, ParsePlatform("Linux"))
	assert.Equal(t, Current(), ParsePlatform(""))
}

func TestProfilesExtendChecklist(t *testing.T) {
	dir := t.TempDir()
	profile := `standard: CIS
description: site baseline
controls:
  - id: cis-ssh-root
    name: SSH root login disabled
    description: PermitRootLogin is no
    platform: linux
    command: sshd
    args: ["-T"]
    pass_contains: "permitrootlogin no"
    remediation: Set PermitRootLogin no in /etc/ssh/sshd_config
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cis.yaml"), []byte(profile), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0600))

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	r := newFakeRunner().on("sshd -T", "port 22\npermitrootlogin no\n", 0)
	reg := NewRegistry(r, nil)
	reg.AddProfile(profiles[0])

	list, err := reg.Checklist(Linux)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "SSH root login disabled", list[4].Name)

	res := reg.RunCheck(context.Background(), list[4])
	assert.Equal(t, Pass, res.Verdict)
}

func TestLoadProfilesRejectsIncompleteControl(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"),
		[]byte("standard: X\ncontrols:\n  - id: x1\n    name: missing command\n"), 0600))
	_, err := LoadProfiles(dir)
	assert.Error(t, err)
}
