package audit

import (
	"math"
	"strings"
)

// Normalize maps one raw upstream record into the canonical Event.
// It is pure and total: absent or mistyped substructures are treated as empty.
func Normalize(raw RawEvent) Event {
	if raw == nil {
		raw = RawEvent{}
	}
	actor := asMap(raw["actor"])
	action := asMap(raw["action"])
	in := asMap(raw["in"])
	target, entity := primaryTarget(raw)

	f := Extract(raw, target, entity, asList(raw["affecting"]))

	e := Event{
		ID:        firstIdent(raw["id"]),
		Event:     Deref(firstText(action["eventName"], raw["event"])),
		Timestamp: timestamp(raw["timestamp"]),

		ActorID:        firstIdent(actor["id"], actor["userId"], raw["actorId"]),
		ActorFirstName: firstText(actor["firstName"]),
		ActorLastName:  firstText(actor["lastName"]),

		TargetType: firstText(entity["entityType"], raw["targetType"]),
		TargetID:   firstIdent(entity["id"], raw["targetId"]),
		TargetName: firstText(entity["name"], raw["targetName"]),

		WithinProjectID:   firstIdent(in["id"], raw["withinProjectId"]),
		WithinProjectName: firstText(in["name"], raw["withinProjectName"]),

		EventSource: firstText(raw["source"], raw["eventSource"]),
		TraceID:     firstText(action["traceId"], raw["traceId"]),

		Metadata: f.Metadata,

		Command:         f.Command,
		Status:          f.Status,
		DurationSec:     f.DurationSec,
		ComputeTier:     f.ComputeTier,
		HardwareTier:    f.HardwareTier,
		HardwareTierID:  f.HardwareTierID,
		EnvironmentName: f.EnvironmentName,
		RunID:           f.RunID,
		JobID:           f.JobID,
		RunType:         f.RunType,
		RunFile:         f.RunFile,
		RunOrigin:       f.RunOrigin,

		Raw: &Snapshot{
			ID:      raw["id"],
			Action:  raw["action"],
			In:      raw["in"],
			Targets: raw["targets"],
			Source:  raw["source"],
		},
	}

	e.ActorName = firstText(actor["name"], fullName(e.ActorFirstName, e.ActorLastName), raw["actorName"])
	if e.ActorName == nil {
		e.ActorName = f.ActorName
	}
	if e.WithinProjectName == nil {
		e.WithinProjectName = f.ProjectName
	}
	if signed, ok := action["electronicallySigned"].(bool); ok {
		e.ElectronicallySigned = ptr(signed)
	}
	return e
}

// NormalizeAll normalizes every record, preserving order.
// ExtractEvent runs Extract against the event's first target, the same way
// Normalize does. Callers use Fields.Sources to see which strategy matched.
func ExtractEvent(raw RawEvent) Fields {
	target, entity := primaryTarget(raw)
	return Extract(raw, target, entity, asList(raw["affecting"]))
}

func primaryTarget(raw RawEvent) (target, entity map[string]any) {
	targets := asList(raw["targets"])
	if len(targets) > 0 {
		target = asMap(targets[0])
		entity = asMap(target["entity"])
	}
	return target, entity
}

func NormalizeAll(raws []RawEvent) []Event {
	out := make([]Event, 0, len(raws))
	for _, r := range raws {
		out = append(out, Normalize(r))
	}
	return out
}

func fullName(first, last *string) any {
	name := strings.TrimSpace(Deref(first) + " " + Deref(last))
	if name == "" {
		return nil
	}
	return name
}

func timestamp(v any) *int64 {
	f, ok := Number(v)
	if !ok {
		return nil
	}
	r := math.Round(f)
	// Out of int64 range (or NaN) has no meaningful millisecond value.
	if !(r >= -(1<<63) && r < 1<<63) {
		return nil
	}
	return ptr(int64(r))
}
