package audit

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Strategy tags how a field value was found.
type Strategy string

const (
	StrategyDirect        Strategy = "direct"
	StrategyExact         Strategy = "exact"
	StrategyNested        Strategy = "nested"
	StrategyStageDuration Strategy = "stage-duration"
	StrategyFuzzy         Strategy = "fuzzy"
	StrategyInferred      Strategy = "inferred"
)

// Fields is the canonical field set extracted from one raw event.
// Sources records which strategy produced each non-null field.
type Fields struct {
	Command         *string
	Status          *string
	DurationSec     *float64
	ComputeTier     *string
	HardwareTier    *string
	HardwareTierID  *string
	EnvironmentName *string
	RunID           *string
	JobID           *string
	RunType         *string
	RunFile         *string
	RunOrigin       *string
	ActorName       *string
	ProjectName     *string

	Metadata map[string]any
	Sources  map[string]Strategy
}

// strategy is one named way of finding a field value.
type strategy struct {
	kind   Strategy
	name   string
	lookup func(s *scope) any
}

func direct(key string) strategy {
	return strategy{StrategyDirect, key, func(s *scope) any { return s.raw[key] }}
}

func exact(key string) strategy {
	return strategy{StrategyExact, key, func(s *scope) any { return s.meta.values[key] }}
}

func nested(path ...string) strategy {
	return strategy{StrategyNested, strings.Join(path, "."), func(s *scope) any { return Path(s.meta.values, path...) }}
}

func fuzzy(normalized string) strategy {
	return strategy{StrategyFuzzy, normalized, func(s *scope) any {
		if v, ok := s.index[normalized]; ok {
			return v
		}
		return nil
	}}
}

func stageDuration() strategy {
	return strategy{StrategyStageDuration, "stageTime", func(s *scope) any {
		if d, ok := StageDuration(asMap(s.meta.values["stageTime"])); ok {
			return d
		}
		return nil
	}}
}

// entityID yields the target entity id when its type is one of types.
func entityID(types ...string) strategy {
	return strategy{StrategyNested, "targets.0.entity.id", func(s *scope) any {
		t, _ := Text(s.entity["entityType"])
		for _, want := range types {
			if strings.EqualFold(t, want) {
				return s.entity["id"]
			}
		}
		return nil
	}}
}

func inferred(name string, fn func(s *scope) any) strategy {
	return strategy{StrategyInferred, name, fn}
}

// Candidate lists in priority order. The first strategy yielding a non-empty
// string (or a parseable number for durationSec) wins.
var (
	commandStrategies = []strategy{
		direct("command"),
		exact("runCommand"), exact("command"), exact("jobRunCommand"), exact("commandToRun"), exact("Run Command"),
		fuzzy("runcommand"), fuzzy("command"), fuzzy("jobruncommand"), fuzzy("commandtorun"),
	}
	statusStrategies = []strategy{
		direct("status"),
		exact("status"), exact("runStatus"), exact("executionStatus"), exact("Status"), exact("Run Status"),
		nested("statuses", "executionStatus"), nested("statuses", "status"),
		fuzzy("status"), fuzzy("runstatus"), fuzzy("executionstatus"),
	}
	durationStrategies = []strategy{
		direct("durationSec"),
		exact("runDurationSec"), exact("runDurationSeconds"), exact("runDurationInSeconds"), exact("durationSec"), exact("Duration"),
		stageDuration(),
		fuzzy("rundurationsec"), fuzzy("rundurationseconds"), fuzzy("rundurationinseconds"), fuzzy("durationsec"), fuzzy("duration"),
	}
	computeTierStrategies = []strategy{
		direct("computeTier"),
		exact("computeTier"), exact("computeSize"), exact("tier"), exact("Compute Tier"),
		fuzzy("computetier"), fuzzy("computesize"),
	}
	hardwareTierStrategies = []strategy{
		direct("hardwareTier"),
		exact("hardwareTier"), exact("hardwareTierName"), exact("Hardware Tier"),
		nested("hardwareTier", "name"), nested("hardwareTier", "hardwareTierName"),
		fuzzy("hardwaretier"), fuzzy("hardwaretiername"), fuzzy("hardwaretier1"),
	}
	hardwareTierIDStrategies = []strategy{
		direct("hardwareTierId"),
		exact("hardwareTierId"), exact("Hardware Tier Id"),
		nested("hardwareTier", "id"),
		fuzzy("hardwaretierid"), fuzzy("hardwaretier1id"),
	}
	environmentStrategies = []strategy{
		direct("environmentName"),
		exact("environmentName"), exact("environment"), exact("environmentRevisionName"), exact("Environment"),
		nested("environment", "environmentName"), nested("environment", "name"), nested("environmentDetails", "name"),
		fuzzy("environmentname"), fuzzy("environment"), fuzzy("environment1"),
	}
	runIDStrategies = []strategy{
		direct("runId"),
		entityID("run", "job"),
		exact("runId"), exact("executionId"), exact("Run"), exact("Run Id"),
		fuzzy("runid"), fuzzy("executionid"), fuzzy("run"), fuzzy("run1id"),
	}
	jobIDStrategies = []strategy{
		direct("jobId"),
		entityID("job"),
		exact("jobId"), exact("Job"), exact("Job Id"),
		fuzzy("jobid"), fuzzy("job"), fuzzy("job1id"),
	}
	runTypeStrategies = []strategy{
		direct("runType"),
		exact("runType"), exact("workloadType"), exact("Run Type"),
		fuzzy("runtype"), fuzzy("workloadtype"),
		inferred("keyword", func(s *scope) any { return inferRunType(s) }),
	}
	runFileStrategies = []strategy{
		direct("runFile"),
		exact("runFile"), exact("filename"), exact("Run File"),
		fuzzy("runfile"), fuzzy("filename"),
	}
	runOriginStrategies = []strategy{
		direct("runOrigin"),
		exact("runOrigin"), exact("source"), exact("Run Origin"),
		fuzzy("runorigin"),
	}
	actorNameStrategies = []strategy{
		nested("startedBy", "username"), nested("startedBy", "userName"), nested("startedBy", "name"),
		exact("startingUserUsername"), exact("username"), exact("userName"),
		fuzzy("startedbyusername"), fuzzy("username"),
	}
	projectNameStrategies = []strategy{
		exact("projectName"), exact("Project Name"), exact("Project"),
		nested("project", "name"),
		fuzzy("projectname"), fuzzy("project"), fuzzy("project1"),
	}
)

// runTypeKeywords are checked in order against the entity type and event name.
var runTypeKeywords = []struct{ keyword, runType string }{
	{"workspace", "Workspace"},
	{"job", "Job"},
	{"app", "App"},
	{"run", "Run"},
}

// Extract applies the field strategies to one raw event. target is the first
// targets[] element, entity its "entity" mapping and affecting the raw
// affecting[] list; any of them may be nil. It never panics on odd shapes.
func Extract(raw RawEvent, target, entity map[string]any, affecting []any) Fields {
	s := newScope(raw, target, entity, affecting)
	f := Fields{Metadata: s.meta.values, Sources: map[string]Strategy{}}

	f.Command = s.text("command", commandStrategies)
	f.Status = s.text("status", statusStrategies)
	f.DurationSec = s.number("durationSec", durationStrategies)
	f.ComputeTier = s.text("computeTier", computeTierStrategies)
	f.HardwareTier = s.text("hardwareTier", hardwareTierStrategies)
	f.HardwareTierID = s.ident("hardwareTierId", hardwareTierIDStrategies)
	f.EnvironmentName = s.text("environmentName", environmentStrategies)
	f.RunID = s.ident("runId", runIDStrategies)
	f.JobID = s.ident("jobId", jobIDStrategies)
	f.RunType = s.text("runType", runTypeStrategies)
	f.RunFile = s.text("runFile", runFileStrategies)
	f.RunOrigin = s.text("runOrigin", runOriginStrategies)
	f.ActorName = s.text("actorName", actorNameStrategies)
	f.ProjectName = s.text("withinProjectName", projectNameStrategies)

	for k, v := range s.sources {
		f.Sources[k] = v
	}
	return f
}

type scope struct {
	raw       RawEvent
	entity    map[string]any
	eventName string
	meta      orderedMap
	index     map[string]string
	sources   map[string]Strategy
}

func newScope(raw RawEvent, target, entity map[string]any, affecting []any) *scope {
	s := &scope{raw: raw, entity: entity, sources: map[string]Strategy{}}
	if s.raw == nil {
		s.raw = RawEvent{}
	}
	if name, ok := Text(Path(s.raw, "action", "eventName")); ok {
		s.eventName = name
	} else if name, ok := Text(s.raw["event"]); ok {
		s.eventName = name
	}

	s.meta = orderedMap{values: map[string]any{}}
	s.meta.merge(s.raw["metadata"])
	for _, src := range []map[string]any{target, entity} {
		for _, key := range []string{"customAttributes", "attributes", "properties"} {
			s.meta.merge(src[key])
		}
	}
	expandAffecting(&s.meta, affecting)

	s.index = make(map[string]string, len(s.meta.keys))
	for _, k := range s.meta.keys {
		v, ok := Text(s.meta.values[k])
		if !ok {
			continue
		}
		nk := NormalizeKey(k)
		if _, seen := s.index[nk]; !seen {
			s.index[nk] = v
		}
	}
	return s
}

func (s *scope) text(field string, strategies []strategy) *string {
	for _, st := range strategies {
		if v, ok := Text(st.lookup(s)); ok {
			s.sources[field] = st.kind
			return &v
		}
	}
	return nil
}

// ident is text that also accepts numeric identifiers.
func (s *scope) ident(field string, strategies []strategy) *string {
	for _, st := range strategies {
		if v, ok := Ident(st.lookup(s)); ok {
			s.sources[field] = st.kind
			return &v
		}
	}
	return nil
}

func (s *scope) number(field string, strategies []strategy) *float64 {
	for _, st := range strategies {
		if v, ok := Number(st.lookup(s)); ok {
			s.sources[field] = st.kind
			return &v
		}
	}
	return nil
}

func inferRunType(s *scope) any {
	var tokens []string
	if t, ok := Text(s.entity["entityType"]); ok {
		tokens = append(tokens, words(t)...)
	}
	tokens = append(tokens, words(s.eventName)...)
	for _, kw := range runTypeKeywords {
		for _, tok := range tokens {
			if tok == kw.keyword || tok == kw.keyword+"s" {
				return kw.runType
			}
		}
	}
	return nil
}

// words splits an identifier-ish string into lowercase words on non-letters
// and camelCase boundaries: "StartJob", "jobs.start" and "GPUJob" all yield
// a "job" word.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// orderedMap remembers first-insertion order so that "first occurrence wins"
// in the normalized index does not depend on map iteration.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func (m *orderedMap) set(k string, v any) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// merge accepts a mapping (keys merged in sorted order) or a list of
// {key|name|attribute, value} pairs. Later merges overwrite earlier keys.
func (m *orderedMap) merge(src any) {
	switch v := src.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.set(k, v[k])
		}
	case []any:
		for _, item := range v {
			pair := asMap(item)
			if pair == nil {
				continue
			}
			key, ok := Text(pair["key"])
			if !ok {
				if key, ok = Text(pair["name"]); !ok {
					key, ok = Text(pair["attribute"])
				}
			}
			if !ok {
				continue
			}
			m.set(key, pair["value"])
		}
	}
}

// expandAffecting adds "{entityType}_{n}" (name, or id when unnamed) and
// "{entityType}_{n}_id" for each affecting entry, numbering per type from 1.
func expandAffecting(m *orderedMap, affecting []any) {
	counts := map[string]int{}
	for _, item := range affecting {
		entry := asMap(item)
		if entry == nil {
			continue
		}
		if inner := asMap(entry["entity"]); inner != nil {
			entry = inner
		}
		entityType, ok := Text(entry["entityType"])
		if !ok {
			continue
		}
		counts[entityType]++
		key := fmt.Sprintf("%s_%d", entityType, counts[entityType])

		id, hasID := Ident(entry["id"])
		if name, ok := Text(entry["name"]); ok {
			m.set(key, name)
		} else if hasID {
			m.set(key, id)
		}
		if hasID {
			m.set(key+"_id", id)
		}
	}
}
