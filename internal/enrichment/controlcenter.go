package enrichment

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"traceability-explorer/internal/audit"
	"traceability-explorer/internal/credentials"
	"traceability-explorer/internal/domino"
)

const (
	StageControlCenter = "control_center"

	dateLayout = "20060102"
	day        = 24 * time.Hour
)

// ControlCenter is the bulk source: one run-utilization query for the
// request's date range, joined to events by runId.
type ControlCenter struct {
	client  audit.Fetcher
	host    string
	timeout time.Duration
	log     *slog.Logger
}

func NewControlCenter(client audit.Fetcher, host string, timeout time.Duration, log *slog.Logger) *ControlCenter {
	return &ControlCenter{client: client, host: host, timeout: timeout, log: log}
}

func (c *ControlCenter) Name() string { return StageControlCenter }

func (c *ControlCenter) Enrich(ctx context.Context, creds credentials.Credentials, events []audit.Event) ([]audit.Event, audit.StageReport) {
	rep := audit.StageReport{Stage: StageControlCenter}
	if c.host == "" {
		rep.Status, rep.Detail = StatusSkipped, "DOMINO_API_HOST not set"
		return events, rep
	}
	start, end, ok := window(events)
	if !ok {
		rep.Status, rep.Detail = StatusSkipped, "no event timestamps"
		return events, rep
	}

	tiers := c.hardwareTiers(ctx, creds)

	q := url.Values{}
	q.Set("startDate", start.Format(dateLayout))
	q.Set("endDate", end.Format(dateLayout))
	resp, err := c.client.Get(ctx, creds, domino.Request{
		Target:  "control_center",
		Host:    c.host,
		Path:    domino.PathRunUtilization,
		Query:   q,
		Timeout: c.timeout,
	})
	if err != nil || !resp.OK() {
		c.log.Warn("control center runs unavailable", "status", resp.Status, "err", err)
		rep.Status, rep.Detail = StatusUnavailable, unavailableDetail(resp, err)
		return events, rep
	}

	byRun := map[string]map[string]any{}
	for _, rec := range domino.Records(resp.Payload(), "runs", "data", "items", "results") {
		if id, ok := audit.Ident(rec["runId"]); ok {
			byRun[id] = rec
		} else if id, ok := audit.Ident(rec["id"]); ok {
			byRun[id] = rec
		}
	}
	rep.IDs = len(byRun)
	if len(byRun) == 0 {
		rep.Status, rep.Detail = StatusEmpty, "no runs between "+q.Get("startDate")+" and "+q.Get("endDate")
		return events, rep
	}

	out := audit.Clone(events)
	matched := map[string]struct{}{}
	f := &filler{}
	for i := range out {
		e := &out[i]
		if audit.Blank(e.RunID) {
			continue
		}
		rec, ok := byRun[*e.RunID]
		if !ok {
			continue
		}
		matched[*e.RunID] = struct{}{}
		rep.Events++

		f.num(&e.DurationSec, rec["runDurationInSeconds"], rec["runDurationSec"], rec["durationSec"])

		tierID, tierName := tierRef(rec["hardwareTier"])
		if id, ok := audit.Ident(rec["hardwareTierId"]); ok {
			tierID = id
		}
		if tierName == "" {
			tierName, _ = audit.Text(rec["hardwareTierName"])
		}
		if tierName == "" && tierID != "" {
			tierName = tiers[tierID]
			if tierName == "" {
				tierName = tierID
			}
		}
		f.str(&e.HardwareTier, tierName)
		f.str(&e.ComputeTier, tierName)
		f.ident(&e.HardwareTierID, tierID)

		f.str(&e.WithinProjectName, rec["projectName"])
		f.str(&e.ActorName, rec["startingUserUsername"], rec["username"], rec["userName"])
		f.str(&e.RunType, rec["runType"], rec["workloadType"])
	}
	rep.Resolved = len(matched)
	rep.Filled = f.filled
	rep.Status = StatusApplied
	return out, rep
}

// hardwareTiers fetches the id -> name table. Failure yields an empty table.
func (c *ControlCenter) hardwareTiers(ctx context.Context, creds credentials.Credentials) map[string]string {
	table := map[string]string{}
	resp, err := c.client.Get(ctx, creds, domino.Request{
		Target:  "hardware_tiers",
		Host:    c.host,
		Path:    domino.PathHardwareTiers,
		Timeout: c.timeout,
	})
	if err != nil || !resp.OK() {
		c.log.Debug("hardware tier table unavailable", "status", resp.Status, "err", err)
		return table
	}
	for _, rec := range domino.Records(resp.Payload(), "hardwareTiers", "data", "items") {
		id, ok := audit.Ident(rec["id"])
		if !ok {
			id, ok = audit.Ident(rec["hardwareTierId"])
		}
		name, hasName := audit.Text(rec["name"])
		if !hasName {
			name, hasName = audit.Text(rec["hardwareTierName"])
		}
		if ok && hasName {
			table[id] = name
		}
	}
	return table
}

// window spans [min - 1 day, max + 1 day] over event timestamps, UTC.
// Values above 1e12 are taken as milliseconds.
func window(events []audit.Event) (start, end time.Time, ok bool) {
	var lo, hi int64
	for _, e := range events {
		if e.Timestamp == nil {
			continue
		}
		secs := *e.Timestamp
		if secs > 1e12 {
			secs /= 1000
		}
		if !ok || secs < lo {
			lo = secs
		}
		if !ok || secs > hi {
			hi = secs
		}
		ok = true
	}
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return time.Unix(lo, 0).UTC().Add(-day), time.Unix(hi, 0).UTC().Add(day), true
}

func unavailableDetail(resp domino.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return domino.SanitizeError(resp.Status, string(resp.Body))
}
