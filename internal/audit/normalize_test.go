package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// want lists expected canonical values; a nil entry means the field must be null.
type want map[string]any

func fieldValue(e Event, name string) any {
	str := func(p *string) any {
		if p == nil {
			return nil
		}
		return *p
	}
	switch name {
	case "command":
		return str(e.Command)
	case "status":
		return str(e.Status)
	case "hardwareTier":
		return str(e.HardwareTier)
	case "environmentName":
		return str(e.EnvironmentName)
	case "runId":
		return str(e.RunID)
	case "jobId":
		return str(e.JobID)
	case "runFile":
		return str(e.RunFile)
	case "runOrigin":
		return str(e.RunOrigin)
	case "runType":
		return str(e.RunType)
	case "actorName":
		return str(e.ActorName)
	case "withinProjectName":
		return str(e.WithinProjectName)
	case "computeTier":
		return str(e.ComputeTier)
	case "durationSec":
		if e.DurationSec == nil {
			return nil
		}
		return *e.DurationSec
	}
	panic("unknown field " + name)
}

func TestNormalize_Scenarios(t *testing.T) {
	cases := []struct {
		name string
		raw  RawEvent
		want want
	}{
		{
			name: "title-case metadata keys",
			raw: RawEvent{
				"id":        "evt-001",
				"timestamp": 1740415405000.0,
				"actor":     map[string]any{"id": "690a9213abfd2c18541c6a98", "name": "integration-test"},
				"action":    map[string]any{"eventName": "Publish App"},
				"in":        map[string]any{"id": "proj-001", "name": "tendler3"},
				"targets":   []any{map[string]any{"entity": map[string]any{"id": "698cef1096d43e5478ae931f", "entityType": "app", "name": "tendler3"}}},
				"metadata": map[string]any{
					"Run Origin":          "User",
					"Run Command":         "App server",
					"Run File":            "App server",
					"Autoscaling Enabled": "true",
					"Run":                 "699deef517b54d3d2b7ddea0",
					"Dataset":             "tendler3",
					"Environment":         "Domino Standard Environment Py3.10 R4.4",
					"Hardware Tier":       "Small",
				},
			},
			want: want{
				"command":           "App server",
				"hardwareTier":      "Small",
				"environmentName":   "Domino Standard Environment Py3.10 R4.4",
				"runId":             "699deef517b54d3d2b7ddea0",
				"runFile":           "App server",
				"runOrigin":         "User",
				"actorName":         "integration-test",
				"withinProjectName": "tendler3",
				"runType":           "App",
			},
		},
		{
			name: "title-case keys in target customAttributes",
			raw: RawEvent{
				"id":     "evt-002",
				"actor":  map[string]any{"id": "user-1", "name": "alice"},
				"action": map[string]any{"eventName": "Start Run"},
				"in":     map[string]any{"id": "proj-002", "name": "my-project"},
				"targets": []any{map[string]any{
					"entity": map[string]any{"id": "run-abc123", "entityType": "Run", "name": "my-project"},
					"customAttributes": map[string]any{
						"Run Command":   "python train.py",
						"Run File":      "train.py",
						"Environment":   "Domino Analytics Env",
						"Hardware Tier": "Medium",
						"Run":           "run-abc123",
						"Run Origin":    "Scheduled",
					},
				}},
				"metadata": map[string]any{},
			},
			want: want{
				"command":         "python train.py",
				"hardwareTier":    "Medium",
				"environmentName": "Domino Analytics Env",
				"runId":           "run-abc123",
				"runFile":         "train.py",
				"runOrigin":       "Scheduled",
				"runType":         "Run",
			},
		},
		{
			name: "camelCase metadata keys",
			raw: RawEvent{
				"id":      "evt-003",
				"actor":   map[string]any{"id": "user-2", "name": "bob"},
				"action":  map[string]any{"eventName": "Start Run"},
				"targets": []any{map[string]any{"entity": map[string]any{"id": "run-def456", "entityType": "Run"}}},
				"metadata": map[string]any{
					"runCommand":       "Rscript analysis.R",
					"runFile":          "analysis.R",
					"environmentName":  "R Analytics Environment",
					"hardwareTierName": "Large-GPU",
					"runId":            "run-def456",
					"executionStatus":  "Succeeded",
					"runDurationSec":   342.5,
				},
			},
			want: want{
				"command":         "Rscript analysis.R",
				"hardwareTier":    "Large-GPU",
				"environmentName": "R Analytics Environment",
				"runId":           "run-def456",
				"status":          "Succeeded",
				"durationSec":     342.5,
			},
		},
		{
			name: "nested jobs-style objects",
			raw: RawEvent{
				"id":      "evt-004",
				"actor":   map[string]any{"id": "user-3"},
				"action":  map[string]any{"eventName": "Complete Job"},
				"in":      map[string]any{"id": "proj-004", "name": "ml-pipeline"},
				"targets": []any{map[string]any{"entity": map[string]any{"id": "job-789", "entityType": "job"}}},
				"metadata": map[string]any{
					"jobRunCommand": "python pipeline.py",
					"startedBy":     map[string]any{"username": "charlie"},
					"environment":   map[string]any{"environmentName": "MLflow Env"},
					"hardwareTier":  map[string]any{"name": "xlarge"},
					"statuses":      map[string]any{"executionStatus": "Succeeded"},
					"stageTime": map[string]any{
						"submissionTime": 1740410000000.0,
						"runStartTime":   1740411000000.0,
						"completedTime":  1740415000000.0,
					},
				},
			},
			want: want{
				"command":         "python pipeline.py",
				"actorName":       "charlie",
				"environmentName": "MLflow Env",
				"hardwareTier":    "xlarge",
				"status":          "Succeeded",
				"durationSec":     4000.0,
				"jobId":           "job-789",
				"runType":         "Job",
			},
		},
		{
			name: "list-form customAttributes",
			raw: RawEvent{
				"id":     "evt-005",
				"actor":  map[string]any{"id": "user-4", "name": "dana"},
				"action": map[string]any{"eventName": "Start Run"},
				"targets": []any{map[string]any{
					"entity": map[string]any{"id": "run-list-test", "entityType": "Run"},
					"customAttributes": []any{
						map[string]any{"key": "Run Command", "value": "jupyter notebook"},
						map[string]any{"key": "Hardware Tier", "value": "GPU-Large"},
						map[string]any{"key": "Environment", "value": "Jupyter Data Science Env"},
						map[string]any{"key": "Run", "value": "run-list-test"},
					},
				}},
				"metadata": map[string]any{},
			},
			want: want{
				"command":         "jupyter notebook",
				"hardwareTier":    "GPU-Large",
				"environmentName": "Jupyter Data Science Env",
				"runId":           "run-list-test",
			},
		},
		{
			name: "mixed-case keys use the normalized fallback",
			raw: RawEvent{
				"id":      "evt-006",
				"actor":   map[string]any{"id": "user-5", "name": "eve"},
				"action":  map[string]any{"eventName": "Start Run"},
				"targets": []any{map[string]any{"entity": map[string]any{"id": "run-mixed", "entityType": "Run"}}},
				"metadata": map[string]any{
					"run_command":   "bash run.sh",
					"hardware_tier": "Spot-Medium",
					"ENVIRONMENT":   "Custom Env v2",
				},
			},
			want: want{
				"command":         "bash run.sh",
				"hardwareTier":    "Spot-Medium",
				"environmentName": "Custom Env v2",
			},
		},
		{
			name: "minimal event",
			raw: RawEvent{
				"id":       "evt-007",
				"actor":    map[string]any{},
				"action":   map[string]any{"eventName": "Unknown Event"},
				"targets":  []any{},
				"metadata": map[string]any{},
			},
			want: want{
				"command":         nil,
				"hardwareTier":    nil,
				"environmentName": nil,
				"runId":           nil,
				"runType":         nil,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw)
			for field, exp := range tc.want {
				assert.Equal(t, exp, fieldValue(got, field), field)
			}
		})
	}
}

func TestNormalize_EndToEndCamelCase(t *testing.T) {
	var raw RawEvent
	body := `{"metadata": {"runCommand":"Rscript analysis.R","hardwareTierName":"Large-GPU","runId":"run-def456","executionStatus":"Succeeded","runDurationSec":342.5},
	          "targets":[{"entity":{"id":"run-def456","entityType":"Run"}}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &raw))

	e := Normalize(raw)
	assert.Equal(t, "Rscript analysis.R", Deref(e.Command))
	assert.Equal(t, "Large-GPU", Deref(e.HardwareTier))
	assert.Equal(t, "run-def456", Deref(e.RunID))
	assert.Equal(t, "Succeeded", Deref(e.Status))
	require.NotNil(t, e.DurationSec)
	assert.Equal(t, 342.5, *e.DurationSec)
}

func TestNormalize_EmptyShapesNeverPanic(t *testing.T) {
	inputs := []RawEvent{
		nil,
		{},
		{"actor": "not-a-map", "action": 5, "targets": "x", "metadata": []any{1, 2}, "affecting": "y"},
		{"targets": []any{nil, "x"}, "in": []any{}},
		{"targets": []any{map[string]any{"entity": "str", "customAttributes": 3}}},
	}
	for _, raw := range inputs {
		e := Normalize(raw)
		assert.Nil(t, e.Command)
		assert.Nil(t, e.RunID)
		assert.Nil(t, e.DurationSec)
		assert.Nil(t, e.ActorName)
		assert.Nil(t, e.TargetID)
		assert.Equal(t, "", e.Event)
	}
}

func TestNormalize_IdentifierPrecedence(t *testing.T) {
	raw := RawEvent{
		"runId":    "explicit-run",
		"targets":  []any{map[string]any{"entity": map[string]any{"id": "job-1", "entityType": "Job"}}},
		"metadata": map[string]any{"runId": "meta-run", "jobId": "meta-job"},
	}
	e := Normalize(raw)
	assert.Equal(t, "explicit-run", Deref(e.RunID))
	assert.Equal(t, "job-1", Deref(e.JobID))

	delete(raw, "runId")
	e = Normalize(raw)
	assert.Equal(t, "job-1", Deref(e.RunID), "entity id of a job target beats metadata")

	raw["targets"] = []any{map[string]any{"entity": map[string]any{"id": "proj", "entityType": "project"}}}
	e = Normalize(raw)
	assert.Equal(t, "meta-run", Deref(e.RunID))
	assert.Equal(t, "meta-job", Deref(e.JobID))
}

func TestNormalize_ActorAndContext(t *testing.T) {
	raw := RawEvent{
		"id":        json.Number("42"),
		"timestamp": json.Number("1740415405000"),
		"actor":     map[string]any{"userId": "u-9", "firstName": "Ada", "lastName": "Lovelace"},
		"action":    map[string]any{"eventName": "Start Run", "traceId": "tr-1", "electronicallySigned": true},
		"in":        map[string]any{"id": "p-1"},
		"metadata":  map[string]any{"projectName": "from-meta"},
		"source":    "API",
	}
	e := Normalize(raw)
	assert.Equal(t, "42", Deref(e.ID))
	require.NotNil(t, e.Timestamp)
	assert.Equal(t, int64(1740415405000), *e.Timestamp)
	assert.Equal(t, "u-9", Deref(e.ActorID))
	assert.Equal(t, "Ada Lovelace", Deref(e.ActorName))
	assert.Equal(t, "tr-1", Deref(e.TraceID))
	require.NotNil(t, e.ElectronicallySigned)
	assert.True(t, *e.ElectronicallySigned)
	assert.Equal(t, "from-meta", Deref(e.WithinProjectName))
	assert.Equal(t, "API", Deref(e.EventSource))
	assert.Equal(t, "Start Run", e.Event)
	require.NotNil(t, e.Raw)
	assert.Equal(t, "API", e.Raw.Source)
}

func TestNormalize_JSONShape(t *testing.T) {
	b, err := json.Marshal(Normalize(RawEvent{"id": "e"}))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"command", "status", "durationSec", "hardwareTier", "runId", "jobId", "actorId"} {
		v, ok := m[k]
		assert.True(t, ok, "missing key %s", k)
		assert.Nil(t, v, k)
	}
}

func TestNormalize_TimestampOutOfRange(t *testing.T) {
	for _, v := range []any{1e20, -1e20, json.Number("9223372036854775808")} {
		e := Normalize(RawEvent{"timestamp": v})
		assert.Nil(t, e.Timestamp, "%v", v)
	}

	e := Normalize(RawEvent{"timestamp": 1740415405000.4})
	require.NotNil(t, e.Timestamp)
	assert.Equal(t, int64(1740415405000), *e.Timestamp)
}
