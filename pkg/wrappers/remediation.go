package wrappers

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/engine"
)

// RemediationWrapper implements the Tool interface for generating remediation plans
type RemediationWrapper struct {
	Engine   *engine.RemediationEngine
	Platform checks.Platform
}

func (r *RemediationWrapper) Name() string {
	return "GetRemediationPlan"
}

func (r *RemediationWrapper) Description() string {
	return "Generates a remediation plan (fix/validate/rollback commands) for a check that failed. Omit 'check' to list the available plans."
}

func (r *RemediationWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"check": map[string]interface{}{
				"type":        "string",
				"description": "Name of the check, e.g. 'UFW Firewall'. If omitted, lists available plans.",
			},
			"variables": map[string]interface{}{
				"type":        "object",
				"description": "Overrides for template variables (e.g., {'SSHPort': '2222'}).",
			},
		},
	}
}

func (r *RemediationWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if r.Engine == nil {
		return "Error: Remediation engine not initialized.", nil
	}

	check := argString(args, "check")
	vars := make(map[string]string)
	if v, ok := args["variables"].(map[string]interface{}); ok {
		for k, val := range v {
			vars[k] = fmt.Sprintf("%v", val)
		}
	}

	if check == "" {
		templates := r.Engine.ListTemplates()
		if len(templates) == 0 {
			return "No remediation plans found.", nil
		}
		return fmt.Sprintf("Available Remediation Plans:\n- %s", strings.Join(templates, "\n- ")), nil
	}

	if progress != nil {
		progress(fmt.Sprintf("Generating remediation plan for %s...", check))
	}
	plan, err := r.Engine.GeneratePlan(r.Platform, check, vars)
	if err != nil {
		return fmt.Sprintf("Error generating plan: %v", err), nil
	}
	return plan, nil
}
