package enrichment

import (
	"log/slog"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/domino"
)

const StageRuns = "runs"

// NewRuns looks up /v4/runs/{runId} for each distinct run id.
func NewRuns(client audit.Fetcher, opts SourceOptions, log *slog.Logger) *PerID {
	return &PerID{
		stage:  StageRuns,
		client: client,
		opts:   opts.withDefaults(),
		log:    log,
		idOf:   func(e audit.Event) *string { return e.RunID },
		paths:  func(id string) []string { return []string{domino.RunPath(id)} },
	}
}
