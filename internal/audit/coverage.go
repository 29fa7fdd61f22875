package audit

// CoverageFields are the extracted fields tracked in coverage reports.
var CoverageFields = []string{
	"command", "status", "hardwareTier", "environmentName", "runId",
	"durationSec", "computeTier", "runType", "runFile", "runOrigin",
	"actorName", "withinProjectName", "jobId",
}

type FieldCoverage struct {
	Field   string  `json:"field"`
	Filled  int     `json:"filled"`
	Percent float64 `json:"percent"`
}

type CoverageReport struct {
	Total  int             `json:"total"`
	Fields []FieldCoverage `json:"fields"`
}

// Coverage counts, per tracked field, how many events carry a non-blank value.
func Coverage(events []Event) CoverageReport {
	out := CoverageReport{Total: len(events), Fields: make([]FieldCoverage, 0, len(CoverageFields))}
	for _, name := range CoverageFields {
		fc := FieldCoverage{Field: name}
		for _, e := range events {
			if e.Filled(name) {
				fc.Filled++
			}
		}
		if out.Total > 0 {
			fc.Percent = float64(fc.Filled) / float64(out.Total) * 100
		}
		out.Fields = append(out.Fields, fc)
	}
	return out
}

// Filled reports whether the named canonical field is non-blank.
// Unknown names report false.
func (e Event) Filled(field string) bool {
	switch field {
	case "command":
		return !Blank(e.Command)
	case "status":
		return !Blank(e.Status)
	case "durationSec":
		return e.DurationSec != nil
	case "computeTier":
		return !Blank(e.ComputeTier)
	case "hardwareTier":
		return !Blank(e.HardwareTier)
	case "hardwareTierId":
		return !Blank(e.HardwareTierID)
	case "environmentName":
		return !Blank(e.EnvironmentName)
	case "runId":
		return !Blank(e.RunID)
	case "jobId":
		return !Blank(e.JobID)
	case "runType":
		return !Blank(e.RunType)
	case "runFile":
		return !Blank(e.RunFile)
	case "runOrigin":
		return !Blank(e.RunOrigin)
	case "actorName":
		return !Blank(e.ActorName)
	case "withinProjectName":
		return !Blank(e.WithinProjectName)
	case "targetName":
		return !Blank(e.TargetName)
	}
	return false
}
