package enrichment

import (
	"log/slog"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/domino"
)

const StageJobs = "jobs"

// NewJobs looks up the job detail and its runtime execution details for each
// distinct job id. Duration falls back to stageTime when absent.
func NewJobs(client audit.Fetcher, opts SourceOptions, log *slog.Logger) *PerID {
	return &PerID{
		stage:  StageJobs,
		client: client,
		opts:   opts.withDefaults(),
		log:    log,
		idOf:   func(e audit.Event) *string { return e.JobID },
		paths: func(id string) []string {
			return []string{domino.JobPath(id), domino.JobRuntimePath(id)}
		},
		stageDuration: true,
	}
}
