package incident

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/metrics"
)

// Service is the entry point for submitting and browsing incidents.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store Store, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, metrics: m, logger: logger.Named("incident"), now: time.Now}
}

// Submit validates and records a new incident, returning its ID.
func (s *Service) Submit(ctx context.Context, subject string, severity Severity, description string) (string, error) {
	subject = strings.TrimSpace(subject)
	description = strings.TrimSpace(description)
	switch {
	case subject == "":
		return "", &ValidationError{Field: "subject", Reason: "is required"}
	case description == "":
		return "", &ValidationError{Field: "description", Reason: "is required"}
	case !severity.Valid():
		return "", &ValidationError{Field: "severity", Reason: "must be Low, Medium, High or Critical"}
	}

	rec := Record{
		ID:          uuid.NewString(),
		Subject:     subject,
		Severity:    severity,
		Description: description,
		CreatedAt:   s.now().UTC(),
		Status:      StatusNew,
	}
	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		var verr *ValidationError
		var serr *StoreError
		if !errors.As(err, &verr) && !errors.As(err, &serr) {
			err = &StoreError{Op: "insert", Err: err}
		}
		s.logger.Error("incident not saved", zap.Error(err))
		return "", err
	}
	s.metrics.IncidentSubmitted(string(severity))
	s.logger.Info("incident saved", zap.String("id", id), zap.String("severity", string(severity)))
	return id, nil
}

// Query lists incidents. An empty sort order means newest first.
func (s *Service) Query(ctx context.Context, q Query) ([]Record, error) {
	if q.Sort == "" {
		q.Sort = TimeDesc
	}
	if q.Filter.Severity != "" && !q.Filter.Severity.Valid() {
		return nil, &ValidationError{Field: "severity", Reason: "filter is not on the severity ladder"}
	}
	records, err := s.store.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
