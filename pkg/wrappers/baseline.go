package wrappers

import (
	"context"
	"fmt"

	"github.com/user/gosec-posture/pkg/engine"
)

func baselinePath(args map[string]interface{}) string {
	if f := argString(args, "filename"); f != "" {
		return f
	}
	return engine.DefaultBaselinePath
}

func baselineSchema(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": desc,
			},
		},
	}
}

// SaveBaselineWrapper implements the Tool interface for saving the last
// scan as a baseline.
type SaveBaselineWrapper struct {
	Session *Session
}

func (s *SaveBaselineWrapper) Name() string {
	return "SaveBaseline"
}

func (s *SaveBaselineWrapper) Description() string {
	return "Saves the last completed scan to a baseline file for future comparison."
}

func (s *SaveBaselineWrapper) Schema() map[string]interface{} {
	return baselineSchema("Optional filename for the baseline (default: " + engine.DefaultBaselinePath + ")")
}

func (s *SaveBaselineWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	res, ok := s.Session.Last()
	if !ok {
		return "Error: no scan has been run in this session yet.", nil
	}
	filename := baselinePath(args)
	if err := engine.SaveBaseline(filename, res); err != nil {
		return fmt.Sprintf("Error saving baseline: %v", err), nil
	}
	return fmt.Sprintf("Saved scan %s (%d checks) to baseline '%s'.", res.ID, len(res.Checks), filename), nil
}

// CompareBaselineWrapper implements the Tool interface for comparing the
// last scan with a saved baseline.
type CompareBaselineWrapper struct {
	Session *Session
}

func (c *CompareBaselineWrapper) Name() string {
	return "CompareWithBaseline"
}

func (c *CompareBaselineWrapper) Description() string {
	return "Compares the last scan against a previously saved baseline to identify Regressed, Fixed and Unchanged checks and the change in risk score."
}

func (c *CompareBaselineWrapper) Schema() map[string]interface{} {
	return baselineSchema("Optional filename of the baseline to compare against (default: " + engine.DefaultBaselinePath + ")")
}

func (c *CompareBaselineWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	res, ok := c.Session.Last()
	if !ok {
		return "Error: no scan has been run in this session yet.", nil
	}
	filename := baselinePath(args)
	base, err := engine.LoadBaseline(filename)
	if err != nil {
		return fmt.Sprintf("Error loading baseline '%s': %v. Have you saved a baseline before?", filename, err), nil
	}
	return engine.CompareBaseline(base, res).Report(filename), nil
}
