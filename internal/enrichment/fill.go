// Package enrichment backfills blank canonical fields from secondary Domino
// endpoints. Every stage fills blanks only and never fails the request.
package enrichment

import (
	"strings"

	"traceability-explorer/internal/audit"
)

// Report statuses.
const (
	StatusApplied     = "applied"
	StatusSkipped     = "skipped"
	StatusUnavailable = "unavailable"
	StatusEmpty       = "empty"
	StatusDisabled    = "disabled"
)

// filler writes values into blank fields and counts the writes.
type filler struct {
	filled int
}

// str fills *dst with the first non-blank string among values when *dst is
// blank (null, "" or "Unknown").
func (f *filler) str(dst **string, values ...any) {
	if !audit.Blank(*dst) {
		return
	}
	for _, v := range values {
		if s, ok := audit.Text(v); ok {
			*dst = &s
			f.filled++
			return
		}
	}
}

// ident is str that also accepts numeric identifiers.
func (f *filler) ident(dst **string, values ...any) {
	if !audit.Blank(*dst) {
		return
	}
	for _, v := range values {
		if s, ok := audit.Ident(v); ok {
			*dst = &s
			f.filled++
			return
		}
	}
}

func (f *filler) num(dst **float64, values ...any) {
	if *dst != nil {
		return
	}
	for _, v := range values {
		if n, ok := audit.Number(v); ok {
			*dst = &n
			f.filled++
			return
		}
	}
}

// collectIDs returns distinct usable ids in first-seen order, at most max.
func collectIDs(events []audit.Event, idOf func(audit.Event) *string, max int) []string {
	var ids []string
	seen := map[string]struct{}{}
	for _, e := range events {
		p := idOf(e)
		if p == nil {
			continue
		}
		id := strings.TrimSpace(*p)
		if id == "" || strings.EqualFold(id, "unknown") {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if max > 0 && len(ids) >= max {
			break
		}
	}
	return ids
}

// tierRef reads a hardware tier value that may be a name, an id or a
// {id, name} object.
func tierRef(v any) (id, name string) {
	if m, ok := v.(map[string]any); ok {
		id, _ = audit.Ident(m["id"])
		if name, _ = audit.Text(m["name"]); name == "" {
			name, _ = audit.Text(m["hardwareTierName"])
		}
		return id, name
	}
	id, _ = audit.Ident(v)
	return id, ""
}
