package engine

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/user/gosec-posture/pkg/checks"
)

//go:embed remediation/*.yaml
var builtinTemplates embed.FS

// RemediationTemplate is a fix plan for one check.
type RemediationTemplate struct {
	ID                string            `yaml:"id"`
	Check             string            `yaml:"check"`
	Platform          string            `yaml:"platform"`
	Issue             string            `yaml:"issue"`
	Risk              string            `yaml:"risk"`
	Standard          string            `yaml:"standard"`
	Description       string            `yaml:"description"`
	FixCommand        string            `yaml:"fix_command"`
	ValidationCommand string            `yaml:"validation_command"`
	RollbackCommand   string            `yaml:"rollback_command"`
	Variables         []string          `yaml:"variables"`
	Defaults          map[string]string `yaml:"defaults"`
}

func (t RemediationTemplate) key() string {
	return templateKey(checks.Platform(t.Platform), t.Check)
}

// templateKey indexes templates by platform and check name, since check
// names such as "Automatic Updates" repeat across platforms. An empty
// platform matches any.
func templateKey(p checks.Platform, check string) string {
	return strings.ToLower(string(p)) + "/" + strings.ToLower(check)
}

// RemediationEngine manages remediation templates
type RemediationEngine struct {
	templates map[string]RemediationTemplate
}

// NewRemediationEngine returns an engine loaded with the built-in plans.
func NewRemediationEngine() (*RemediationEngine, error) {
	e := &RemediationEngine{templates: make(map[string]RemediationTemplate)}
	entries, err := builtinTemplates.ReadDir("remediation")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := builtinTemplates.ReadFile("remediation/" + entry.Name())
		if err != nil {
			return nil, err
		}
		if err := e.parse(entry.Name(), data); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *RemediationEngine) parse(name string, data []byte) error {
	var list []RemediationTemplate
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for _, t := range list {
		if t.Check == "" {
			return fmt.Errorf("%s: template %q has no check", name, t.ID)
		}
		e.templates[t.key()] = t
	}
	return nil
}

// LoadTemplates reads YAML templates from a directory. Later templates
// replace earlier ones for the same platform and check.
func (e *RemediationEngine) LoadTemplates(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if err := e.parse(entry.Name(), data); err != nil {
			return err
		}
	}
	return nil
}

// AddProfileHints turns the remediation text of profile controls into
// plans, without replacing templates that already exist.
func (e *RemediationEngine) AddProfileHints(profiles []checks.Profile) {
	for _, p := range profiles {
		for _, c := range p.Controls {
			if c.Remediation == "" {
				continue
			}
			t := RemediationTemplate{
				ID:                c.ID,
				Check:             c.Name,
				Platform:          c.Platform,
				Issue:             c.Description,
				Standard:          p.Standard,
				FixCommand:        c.Remediation,
				ValidationCommand: strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " ")),
			}
			if _, ok := e.templates[t.key()]; !ok {
				e.templates[t.key()] = t
			}
		}
	}
}

// Template finds the plan for a check, preferring a platform-specific one.
func (e *RemediationEngine) Template(p checks.Platform, check string) (RemediationTemplate, bool) {
	if t, ok := e.templates[templateKey(p, check)]; ok {
		return t, true
	}
	t, ok := e.templates[templateKey("", check)]
	return t, ok
}

// ListTemplates returns "platform/check: issue" lines, sorted.
func (e *RemediationEngine) ListTemplates() []string {
	list := make([]string, 0, len(e.templates))
	for _, t := range e.templates {
		list = append(list, fmt.Sprintf("%s/%s: %s", t.Platform, t.Check, t.Issue))
	}
	sort.Strings(list)
	return list
}

// GeneratePlan renders the plan for a check. vars override the template
// defaults; every declared variable must end up with a value.
func (e *RemediationEngine) GeneratePlan(p checks.Platform, check string, vars map[string]string) (string, error) {
	tmpl, ok := e.Template(p, check)
	if !ok {
		return "", fmt.Errorf("no remediation plan for %s on %s", check, p)
	}

	merged := make(map[string]string, len(tmpl.Defaults)+len(vars))
	for k, v := range tmpl.Defaults {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	for _, requiredVar := range tmpl.Variables {
		if _, exists := merged[requiredVar]; !exists {
			return "", fmt.Errorf("missing required variable: %s", requiredVar)
		}
	}

	fixCmd, err := renderString("fix", tmpl.FixCommand, merged)
	if err != nil {
		return "", err
	}
	validateCmd, err := renderString("validate", tmpl.ValidationCommand, merged)
	if err != nil {
		return "", err
	}
	rollbackCmd, err := renderString("rollback", tmpl.RollbackCommand, merged)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("[FIX PLAN] " + tmpl.Check + "\n")
	sb.WriteString(fmt.Sprintf("Issue: %s\n", tmpl.Issue))
	if tmpl.Risk != "" {
		sb.WriteString(fmt.Sprintf("Risk: %s\n", tmpl.Risk))
	}
	if tmpl.Standard != "" {
		sb.WriteString(fmt.Sprintf("Standard: %s\n", tmpl.Standard))
	}
	sb.WriteString("\nSuggested Fix:\n")
	sb.WriteString(fixCmd + "\n")
	if validateCmd != "" {
		sb.WriteString("\nValidation:\n")
		sb.WriteString(validateCmd + "\n")
	}
	if rollbackCmd != "" {
		sb.WriteString("\nRollback:\n")
		sb.WriteString(rollbackCmd + "\n")
	}
	return sb.String(), nil
}

// Plans renders a plan for every result that did not pass. Results
// without a template are skipped.
func (e *RemediationEngine) Plans(p checks.Platform, results []checks.Result) []string {
	var plans []string
	for _, r := range results {
		if r.Verdict == checks.Pass || r.Informational {
			continue
		}
		plan, err := e.GeneratePlan(p, r.Name, nil)
		if err != nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

func renderString(name, tmplStr string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %v", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %v", name, err)
	}
	return buf.String(), nil
}
