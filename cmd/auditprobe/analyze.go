package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"traceability-explorer/internal/audit"
)

// Count is one key and the number of events (or objects) carrying it.
type Count struct {
	Key   string
	Count int
}

// Location reports where an attribute container was found on targets.
type Location struct {
	Name       string
	InTargets  int
	InEntity   int
	SampleKeys []string
}

// Analysis summarizes the shape of a batch of raw events.
type Analysis struct {
	Events       int
	TopLevel     []Count
	TargetKeys   []Count
	EntityKeys   []Count
	MetadataKeys []Count
	// MetadataTypes maps a metadata key to the JSON types seen for it.
	MetadataTypes map[string][]Count
	Locations     []Location
}

var attributeLocations = []string{"customAttributes", "attributes", "properties"}

func Analyze(events []audit.RawEvent) Analysis {
	top := map[string]int{}
	targetKeys := map[string]int{}
	entityKeys := map[string]int{}
	metaKeys := map[string]int{}
	metaTypes := map[string]map[string]int{}

	for _, ev := range events {
		for k := range ev {
			top[k]++
		}
		for _, t := range objects(ev["targets"]) {
			for k := range t {
				targetKeys[k]++
			}
			if ent, ok := t["entity"].(map[string]any); ok {
				for k := range ent {
					entityKeys[k]++
				}
			}
		}
		if meta, ok := ev["metadata"].(map[string]any); ok {
			for k, v := range meta {
				metaKeys[k]++
				if metaTypes[k] == nil {
					metaTypes[k] = map[string]int{}
				}
				metaTypes[k][jsonType(v)]++
			}
		}
	}

	a := Analysis{
		Events:        len(events),
		TopLevel:      ranked(top),
		TargetKeys:    ranked(targetKeys),
		EntityKeys:    ranked(entityKeys),
		MetadataKeys:  ranked(metaKeys),
		MetadataTypes: make(map[string][]Count, len(metaTypes)),
	}
	for k, types := range metaTypes {
		a.MetadataTypes[k] = ranked(types)
	}
	for _, name := range attributeLocations {
		if loc := locate(events, name); loc.InTargets > 0 || loc.InEntity > 0 {
			a.Locations = append(a.Locations, loc)
		}
	}
	return a
}

func locate(events []audit.RawEvent, name string) Location {
	loc := Location{Name: name}
	keys := map[string]struct{}{}
	for _, ev := range events {
		for _, t := range objects(ev["targets"]) {
			if v, ok := t[name]; ok && v != nil {
				loc.InTargets++
				collectKeys(keys, v)
			}
			if ent, ok := t["entity"].(map[string]any); ok {
				if v, ok := ent[name]; ok && v != nil {
					loc.InEntity++
					collectKeys(keys, v)
				}
			}
		}
	}
	for k := range keys {
		loc.SampleKeys = append(loc.SampleKeys, k)
	}
	sort.Strings(loc.SampleKeys)
	if len(loc.SampleKeys) > 20 {
		loc.SampleKeys = loc.SampleKeys[:20]
	}
	return loc
}

// collectKeys gathers keys of a mapping, or of the first few mappings in a list.
func collectKeys(into map[string]struct{}, v any) {
	switch c := v.(type) {
	case map[string]any:
		for k := range c {
			into[k] = struct{}{}
		}
	case []any:
		for i, item := range c {
			if i == 5 {
				break
			}
			if m, ok := item.(map[string]any); ok {
				for k := range m {
					into[k] = struct{}{}
				}
			}
		}
	}
}

func objects(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// ranked orders counts by frequency, then key.
func ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const rule = "======================================================================"

func printAnalysis(w io.Writer, a Analysis) {
	fmt.Fprintf(w, "\n%s\nSTRUCTURE ANALYSIS (%d events)\n%s\n", rule, a.Events, rule)

	fmt.Fprintf(w, "\nTop-level keys (across %d events):\n", a.Events)
	for _, c := range a.TopLevel {
		fmt.Fprintf(w, "  %-30s %4d/%d\n", c.Key, c.Count, a.Events)
	}

	fmt.Fprintln(w, "\n--- targets[] structure ---")
	if len(a.TargetKeys) > 0 {
		fmt.Fprintln(w, "  targets[*] keys:")
		for _, c := range a.TargetKeys {
			fmt.Fprintf(w, "    %-30s %4d\n", c.Key, c.Count)
		}
	}
	if len(a.EntityKeys) > 0 {
		fmt.Fprintln(w, "  targets[*].entity keys:")
		for _, c := range a.EntityKeys {
			fmt.Fprintf(w, "    %-30s %4d\n", c.Key, c.Count)
		}
	}

	fmt.Fprintln(w, "\n--- metadata keys ---")
	if len(a.MetadataKeys) == 0 {
		fmt.Fprintln(w, "  (no metadata object found in any event)")
	}
	for _, c := range a.MetadataKeys {
		types := a.MetadataTypes[c.Key]
		if len(types) > 3 {
			types = types[:3]
		}
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = fmt.Sprintf("%s:%d", t.Key, t.Count)
		}
		fmt.Fprintf(w, "    %-40s %4d/%d  types: %s\n", c.Key, c.Count, a.Events, strings.Join(parts, ", "))
	}

	for _, loc := range a.Locations {
		fmt.Fprintf(w, "\n  * Found '%s' in targets: %d, in entity: %d\n", loc.Name, loc.InTargets, loc.InEntity)
		if len(loc.SampleKeys) > 0 {
			fmt.Fprintf(w, "    Sample keys: %s\n", strings.Join(loc.SampleKeys, ", "))
		}
	}
}

func printSamples(w io.Writer, events []audit.RawEvent, n int) {
	n = min(n, len(events))
	fmt.Fprintf(w, "\n%s\nRAW EVENT SAMPLES (first %d)\n%s\n", rule, n, rule)
	for i, ev := range events[:n] {
		b, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "\n--- Event %d ---\n", i+1)
		if len(b) > 3000 {
			fmt.Fprintf(w, "%s\n  ... (truncated)\n", b[:3000])
			continue
		}
		fmt.Fprintf(w, "%s\n", b)
	}
}

// printCoverage shows, for the first few events, which fields normalization
// filled and the extraction strategy that found each one.
func printCoverage(w io.Writer, raws []audit.RawEvent) {
	events := audit.NormalizeAll(raws)
	fmt.Fprintf(w, "\n%s\nNORMALIZATION (%d events)\n%s\n", rule, len(events), rule)
	for i, e := range events[:min(5, len(events))] {
		sources := audit.ExtractEvent(raws[i]).Sources
		fmt.Fprintf(w, "\n  Event %d: %s | target=%s\n", i+1, e.Event, audit.Deref(e.TargetType))
		for _, field := range audit.CoverageFields {
			if !e.Filled(field) {
				fmt.Fprintf(w, "    - %s\n", field)
				continue
			}
			if src, ok := sources[field]; ok {
				fmt.Fprintf(w, "    + %s (%s)\n", field, src)
				continue
			}
			fmt.Fprintf(w, "    + %s\n", field)
		}
	}

	report := audit.Coverage(events)
	fmt.Fprintf(w, "\nCOVERAGE SUMMARY (%d events)\n", report.Total)
	for _, f := range report.Fields {
		bars := int(f.Percent / 5)
		fmt.Fprintf(w, "  %-20s %4d/%4d (%5.1f%%) %s%s\n",
			f.Field, f.Filled, report.Total, f.Percent, strings.Repeat("#", bars), strings.Repeat(".", 20-bars))
	}
}
