package enrichment

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
)

type SourceOptions struct {
	Host    string
	MaxIDs  int
	Timeout time.Duration
	// Concurrency bounds lookups in flight; 1 is sequential.
	Concurrency int
}

func (o SourceOptions) withDefaults() SourceOptions {
	if o.MaxIDs <= 0 {
		o.MaxIDs = 300
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// PerID looks records up one id at a time and fills matching events.
// Runs and Jobs differ only in the id they key on and the paths they call.
type PerID struct {
	stage  string
	client audit.Fetcher
	opts   SourceOptions
	log    *slog.Logger

	idOf  func(audit.Event) *string
	paths func(id string) []string
	// stageDuration derives duration from stageTime when no direct field exists.
	stageDuration bool
}

func (p *PerID) Name() string { return p.stage }

type lookup struct {
	record map[string]any
	// failed is set when every call failed for a reason other than 404.
	failed bool
}

func (p *PerID) Enrich(ctx context.Context, creds credentials.Credentials, events []audit.Event) ([]audit.Event, audit.StageReport) {
	rep := audit.StageReport{Stage: p.stage}
	if p.opts.Host == "" {
		rep.Status, rep.Detail = StatusSkipped, "DOMINO_API_HOST not set"
		return events, rep
	}
	ids := collectIDs(events, p.idOf, p.opts.MaxIDs)
	rep.IDs = len(ids)
	if len(ids) == 0 {
		rep.Status, rep.Detail = StatusSkipped, "no ids to look up"
		return events, rep
	}

	// One slot per id; goroutines never share a map.
	results := make([]lookup, len(ids))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = p.fetch(ctx, creds, id)
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]map[string]any, len(ids))
	failures := 0
	for i, r := range results {
		if r.record != nil {
			byID[ids[i]] = r.record
		} else if r.failed {
			failures++
		}
	}
	rep.Resolved = len(byID)
	if len(byID) == 0 {
		rep.Status = StatusEmpty
		if failures > 0 {
			rep.Status = StatusUnavailable
		}
		rep.Detail = "no records resolved"
		p.log.Info("enrichment resolved nothing", "stage", p.stage, "ids", len(ids), "failures", failures)
		return events, rep
	}

	out := audit.Clone(events)
	f := &filler{}
	for i := range out {
		id := p.idOf(out[i])
		if id == nil {
			continue
		}
		rec, ok := byID[*id]
		if !ok {
			continue
		}
		rep.Events++
		applyRecord(&out[i], rec, f, p.stageDuration)
	}
	rep.Filled = f.filled
	rep.Status = StatusApplied
	p.log.Info("enrichment applied", "stage", p.stage, "resolved", rep.Resolved, "events", rep.Events, "filled", rep.Filled)
	return out, rep
}

// fetch calls every path for id and merges the payloads, later overwriting
// earlier keys. Individual failures are swallowed.
func (p *PerID) fetch(ctx context.Context, creds credentials.Credentials, id string) lookup {
	var merged map[string]any
	failed := false
	for _, path := range p.paths(id) {
		resp, err := p.client.Get(ctx, creds, domino.Request{
			Target:  p.stage,
			Host:    p.opts.Host,
			Path:    path,
			Timeout: p.opts.Timeout,
		})
		if err != nil || !resp.OK() {
			if err != nil || resp.Status != http.StatusNotFound {
				failed = true
			}
			p.log.Debug("enrichment lookup failed", "stage", p.stage, "id", id, "path", path, "status", resp.Status, "err", err)
			continue
		}
		payload, ok := resp.Payload().(map[string]any)
		if !ok {
			continue
		}
		if merged == nil {
			merged = map[string]any{}
		}
		for k, v := range payload {
			merged[k] = v
		}
	}
	if merged != nil {
		return lookup{record: merged}
	}
	return lookup{failed: failed}
}

// applyRecord fills the run/job field class from one resolved record.
func applyRecord(e *audit.Event, rec map[string]any, f *filler, stageDuration bool) {
	f.str(&e.Command, rec["command"], rec["runCommand"], rec["jobRunCommand"], rec["commandToRun"])
	f.str(&e.Status, rec["status"], rec["executionStatus"], audit.Path(rec, "statuses", "executionStatus"), rec["runStatus"])

	f.num(&e.DurationSec, rec["runDurationInSeconds"], rec["runDurationSec"], rec["durationSec"])
	if stageDuration && e.DurationSec == nil {
		if d, ok := audit.StageDuration(asMap(rec["stageTime"])); ok {
			f.num(&e.DurationSec, d)
		}
	}

	tierID, tierName := tierRef(rec["hardwareTier"])
	f.str(&e.HardwareTier, rec["hardwareTierName"], tierName, rec["hardwareTier"])
	f.ident(&e.HardwareTierID, rec["hardwareTierId"], tierID)

	f.str(&e.EnvironmentName,
		audit.Path(rec, "environmentDetails", "name"),
		audit.Path(rec, "environmentDetails", "environmentName"),
		audit.Path(rec, "environment", "environmentName"),
		audit.Path(rec, "environment", "name"),
		rec["environmentName"],
	)
	f.str(&e.WithinProjectName, rec["projectName"], audit.Path(rec, "project", "name"))
	f.str(&e.ActorName,
		audit.Path(rec, "startedBy", "username"),
		rec["startingUserUsername"],
		rec["startedByUsername"],
	)
	f.str(&e.TargetName, rec["title"], rec["jobTitle"], rec["runName"])
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
