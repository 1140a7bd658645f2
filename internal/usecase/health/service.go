package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the search engine is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckEmpty indicates a component with nothing loaded yet.
	CheckEmpty CheckResult = "empty"
)

// Component names reported in Report.Checks.
const (
	ComponentEngine   = "elasticsearch"
	ComponentProgress = "progress"
	ComponentSchema   = "schema"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Took   time.Duration
}

// Service coordinates health checks.
type Service struct {
	engine   Pinger
	progress Pinger
	schemas  SchemaCache
}

// New creates a Service. progress and schemas can be nil.
func New(engine, progress Pinger, schemas SchemaCache) *Service {
	return &Service{engine: engine, progress: progress, schemas: schemas}
}

// Check runs health checks against all components. The engine is required;
// the progress backend and schema cache only degrade the status.
func (s *Service) Check(ctx context.Context) Report {
	start := time.Now()
	checks := make(map[string]CheckResult)

	checks[ComponentEngine] = ping(ctx, s.engine)
	if s.progress != nil {
		checks[ComponentProgress] = ping(ctx, s.progress)
	}
	if s.schemas != nil {
		checks[ComponentSchema] = CheckOK
		if s.schemas.Len() == 0 {
			checks[ComponentSchema] = CheckEmpty
		}
	}

	status := Healthy
	for name, v := range checks {
		if v == CheckOK {
			continue
		}
		if name == ComponentEngine {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Took: time.Since(start)}
}

func ping(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
