package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// MockMaxLimit bounds the mock dataset regardless of the requested limit.
const MockMaxLimit = 100000

// Mock CSV columns, as exported from the audit trail UI.
const (
	mockColTime    = "DATE & TIME"
	mockColEvent   = "EVENT"
	mockColUser    = "USER NAME"
	mockColTarget  = "TARGET NAME"
	mockColProject = "PROJECT NAME"
)

type MockQuery struct {
	// Limit <= 0 means all rows, up to MockMaxLimit.
	Limit int
	// From and To filter by timestamp (ms, inclusive) when both are set.
	From, To *int64
}

// LoadMock reads canonical events from a CSV export. A missing file yields
// no events and no error.
func LoadMock(path string, q MockQuery) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, err
	}
	defer f.Close()

	events, err := ReadMock(f, q.Limit)
	if err != nil {
		return nil, err
	}
	if q.From == nil || q.To == nil {
		return events, nil
	}
	out := events[:0]
	for _, e := range events {
		if e.Timestamp != nil && *e.Timestamp >= *q.From && *e.Timestamp <= *q.To {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReadMock parses mock rows; ids are "mock-<row>" starting at 0.
func ReadMock(r io.Reader, limit int) ([]Event, error) {
	if limit <= 0 || limit > MockMaxLimit {
		limit = MockMaxLimit
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mock header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	events := []Event{}
	for i := 0; len(events) < limit; i++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mock row %d: %w", i, err)
		}
		user := cell(row, mockColUser)
		target := cell(row, mockColTarget)
		project := cell(row, mockColProject)
		events = append(events, Event{
			ID:                ptr(fmt.Sprintf("mock-%d", i)),
			Event:             cell(row, mockColEvent),
			Timestamp:         parseMockTime(cell(row, mockColTime)),
			ActorID:           ptr(user),
			ActorName:         ptr(user),
			TargetID:          String(target),
			TargetName:        String(target),
			WithinProjectID:   String(project),
			WithinProjectName: String(project),
			Metadata:          map[string]any{},
		})
	}
	return events, nil
}

var mockTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseMockTime accepts ISO-8601 variants; naive times are read as UTC.
func parseMockTime(s string) *int64 {
	if s == "" {
		return nil
	}
	for _, layout := range mockTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ptr(t.UnixMilli())
		}
	}
	return nil
}
