package wrappers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/gosec-posture/pkg/incident"
)

// SubmitIncidentWrapper implements the Tool interface for logging an
// incident.
type SubmitIncidentWrapper struct {
	Service *incident.Service
}

func (s *SubmitIncidentWrapper) Name() string {
	return "SubmitIncident"
}

func (s *SubmitIncidentWrapper) Description() string {
	return "Records a security incident in the incident log. All three fields are required."
}

func (s *SubmitIncidentWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subject": map[string]interface{}{
				"type":        "string",
				"description": "Short title of the incident.",
			},
			"severity": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"Low", "Medium", "High", "Critical"},
				"description": "Severity of the incident.",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "What happened.",
			},
		},
		"required": []string{"subject", "severity", "description"},
	}
}

func (s *SubmitIncidentWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	sev, err := incident.ParseSeverity(argString(args, "severity"))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	id, err := s.Service.Submit(ctx, argString(args, "subject"), sev, argString(args, "description"))
	var verr *incident.ValidationError
	if errors.As(err, &verr) {
		// The model can fix this by asking the user, so it is not a tool failure.
		return fmt.Sprintf("Error: %v", verr), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Incident recorded with id %s (status %s).", id, incident.StatusNew), nil
}

// QueryIncidentsWrapper implements the Tool interface for searching the
// incident log.
type QueryIncidentsWrapper struct {
	Service *incident.Service
}

func (q *QueryIncidentsWrapper) Name() string {
	return "QueryIncidents"
}

func (q *QueryIncidentsWrapper) Description() string {
	return "Lists logged incidents, newest first by default, optionally filtered by severity or by text in the subject or description."
}

func (q *QueryIncidentsWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sort": map[string]interface{}{
				"type": "string",
				"enum": []string{
					string(incident.TimeDesc), string(incident.TimeAsc),
					string(incident.SeverityDesc), string(incident.SeverityAsc),
				},
				"description": "Sort order (default time-desc).",
			},
			"severity": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"Low", "Medium", "High", "Critical"},
				"description": "Only incidents of this severity.",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Case-insensitive text to look for in subject or description.",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of incidents to return (default 20).",
			},
		},
	}
}

func (q *QueryIncidentsWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	order, err := incident.ParseSort(argString(args, "sort"))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	query := incident.Query{Sort: order, Limit: argInt(args, "limit", 20)}
	query.Filter.Text = argString(args, "text")
	if s := argString(args, "severity"); s != "" {
		if query.Filter.Severity, err = incident.ParseSeverity(s); err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
	}

	records, err := q.Service.Query(ctx, query)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No incidents logged yet.", nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d incident(s):\n", len(records)))
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("- [%s] %s %s (%s): %s\n",
			r.Severity, r.CreatedAt.Format("2006-01-02 15:04"), r.Subject, r.Status, r.Description))
	}
	return sb.String(), nil
}
