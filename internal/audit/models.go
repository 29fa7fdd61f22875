package audit

// RawEvent is one upstream audit record as decoded JSON. Its shape varies
// across platform versions; nothing in it is guaranteed to be present or
// of the expected type.
type RawEvent map[string]any

// Event is the canonical record served to the frontend.
//
// Optional fields are pointers so that absent values encode as null.
// Once a field is non-blank, enrichment never overwrites it.
type Event struct {
	ID        *string `json:"id"`
	Event     string  `json:"event"`
	Timestamp *int64  `json:"timestamp"`

	ActorID        *string `json:"actorId"`
	ActorName      *string `json:"actorName"`
	ActorFirstName *string `json:"actorFirstName"`
	ActorLastName  *string `json:"actorLastName"`

	TargetType *string `json:"targetType"`
	TargetID   *string `json:"targetId"`
	TargetName *string `json:"targetName"`

	WithinProjectID   *string `json:"withinProjectId"`
	WithinProjectName *string `json:"withinProjectName"`

	EventSource          *string `json:"eventSource"`
	TraceID              *string `json:"traceId"`
	ElectronicallySigned *bool   `json:"electronicallySigned"`

	// Metadata is the merged metadata mapping the fields were extracted from.
	Metadata map[string]any `json:"metadata"`

	Command         *string  `json:"command"`
	Status          *string  `json:"status"`
	DurationSec     *float64 `json:"durationSec"`
	ComputeTier     *string  `json:"computeTier"`
	HardwareTier    *string  `json:"hardwareTier"`
	HardwareTierID  *string  `json:"hardwareTierId"`
	EnvironmentName *string  `json:"environmentName"`
	RunID           *string  `json:"runId"`
	JobID           *string  `json:"jobId"`
	RunType         *string  `json:"runType"`
	RunFile         *string  `json:"runFile"`
	RunOrigin       *string  `json:"runOrigin"`

	Raw *Snapshot `json:"raw,omitempty"`
}

// Snapshot keeps the original nested structures for debugging.
type Snapshot struct {
	ID      any `json:"id"`
	Action  any `json:"action"`
	In      any `json:"in"`
	Targets any `json:"targets"`
	Source  any `json:"source"`
}

// Blank reports whether a canonical string is unset: null, empty or "Unknown".
func Blank(s *string) bool {
	return s == nil || *s == "" || *s == "Unknown"
}

// Clone returns a shallow copy of events. Field pointers are shared; they are
// never written through, so replacing a field on the copy leaves the input
// untouched.
func Clone(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

func ptr[T any](v T) *T { return &v }

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Deref returns *s or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
