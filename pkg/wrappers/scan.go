package wrappers

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/gosec-posture/pkg/engine"
)

// RiskAssessmentWrapper implements the Tool interface for the risk and
// threat passes.
type RiskAssessmentWrapper struct {
	Scan    ScanFunc
	Session *Session
}

func (r *RiskAssessmentWrapper) Name() string {
	return "RunRiskAssessment"
}

func (r *RiskAssessmentWrapper) Description() string {
	return "Samples uptime, memory, CPU, high-memory processes and external connections on this machine and returns a 0-100 risk score with the reasons behind it."
}

func (r *RiskAssessmentWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(engine.ModeRisk), string(engine.ModeThreat)},
				"description": "'risk' for the lightweight pass (default), 'threat' for the stricter pass that lists offending processes and connections.",
			},
		},
	}
}

func (r *RiskAssessmentWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	mode := engine.ModeRisk
	if m := argString(args, "mode"); m != "" {
		parsed, err := engine.ParseMode(m)
		if err != nil || (parsed != engine.ModeRisk && parsed != engine.ModeThreat) {
			return fmt.Sprintf("Error: mode must be 'risk' or 'threat', got %q.", m), nil
		}
		mode = parsed
	}

	res, err := r.Scan(ctx, mode, progressObserver(progress))
	if err != nil {
		return scanFailure(err), nil
	}
	if r.Session != nil {
		r.Session.Record(res)
	}
	return formatResult(res), nil
}

// ComplianceWrapper implements the Tool interface for the security
// control checklist.
type ComplianceWrapper struct {
	Scan        ScanFunc
	Session     *Session
	Remediation *engine.RemediationEngine
}

func (c *ComplianceWrapper) Name() string {
	return "RunComplianceCheck"
}

func (c *ComplianceWrapper) Description() string {
	return "Runs the security control checklist for this operating system (firewall, antivirus, automatic updates, disk encryption) and returns PASS/FAIL/WARN/ERROR per control plus the compliance percentage."
}

func (c *ComplianceWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"full": map[string]interface{}{
				"type":        "boolean",
				"description": "Also run the risk assessment in the same scan.",
			},
			"remediate": map[string]interface{}{
				"type":        "boolean",
				"description": "Append fix plans for every control that did not pass.",
			},
		},
	}
}

func (c *ComplianceWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	mode := engine.ModeCompliance
	if argBool(args, "full") {
		mode = engine.ModeFull
	}

	res, err := c.Scan(ctx, mode, progressObserver(progress))
	if err != nil {
		return scanFailure(err), nil
	}
	if c.Session != nil {
		c.Session.Record(res)
	}

	out := formatResult(res)
	if res.CompliancePct == nil {
		out += "Compliance score unavailable: no applicable checks were evaluated on this platform.\n"
	}
	if argBool(args, "remediate") && c.Remediation != nil {
		if plans := c.Remediation.Plans(res.Platform, res.Checks); len(plans) > 0 {
			out += "\n" + strings.Join(plans, "\n")
		}
	}
	return out, nil
}
