package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// StoreState reports whether a store slot has a built index.
type StoreState interface {
	Built() bool
}

// EmbeddingChecker verifies embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks across the two stores and the embedder.
type Service struct {
	primary   StoreState
	secondary StoreState
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(primary, secondary StoreState, embedding EmbeddingChecker) *Service {
	return &Service{primary: primary, secondary: secondary, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["primary_index"] = builtCheck(s.primary)
	checks["secondary_index"] = builtCheck(s.secondary)

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func builtCheck(s StoreState) CheckResult {
	if s.Built() {
		return CheckOK
	}
	return CheckError
}
