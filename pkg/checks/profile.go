package checks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Control is a site-specific check declared in a YAML profile.
type Control struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Platform     string   `yaml:"platform"`
	Command      string   `yaml:"command"`
	Args         []string `yaml:"args"`
	PassContains string   `yaml:"pass_contains"`
	Remediation  string   `yaml:"remediation"`
}

// Profile groups controls under a compliance standard (e.g., CIS).
type Profile struct {
	Standard    string    `yaml:"standard"`
	Description string    `yaml:"description"`
	Controls    []Control `yaml:"controls"`
}

func (c Control) validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("control without id")
	case c.Name == "":
		return fmt.Errorf("control %s: name is required", c.ID)
	case c.Command == "":
		return fmt.Errorf("control %s: command is required", c.ID)
	case c.PassContains == "":
		return fmt.Errorf("control %s: pass_contains is required", c.ID)
	}
	return nil
}

// Check turns the control into a registry check. It passes when the
// command exits zero and its output contains PassContains.
func (c Control) Check() Check {
	return Check{
		ID:   c.ID,
		Name: c.Name,
		Probe: func(ctx context.Context, r Runner) (Verdict, string, error) {
			out, err := r.Run(ctx, c.Command, c.Args...)
			if err != nil {
				return "", "", err
			}
			if out.ExitCode == 0 && strings.Contains(out.Stdout, c.PassContains) {
				return Pass, c.Description, nil
			}
			detail := fmt.Sprintf("expected %q in output", c.PassContains)
			if out.ExitCode != 0 {
				detail = fmt.Sprintf("%s exited %d", c.Command, out.ExitCode)
			}
			return Fail, detail, nil
		},
	}
}

// LoadProfiles reads every .yaml/.yml profile in dir.
func LoadProfiles(dir string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		for _, c := range p.Controls {
			if err := c.validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", entry.Name(), err)
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// AddProfile appends the profile's controls to their platform checklists,
// after the built-in checks.
func (r *Registry) AddProfile(p Profile) {
	for _, c := range p.Controls {
		r.Register(ParsePlatform(c.Platform), c.Check())
	}
}
