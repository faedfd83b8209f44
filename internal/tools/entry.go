package tools

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"crewsheet/internal/events"
	"crewsheet/internal/timesheet"
	"crewsheet/internal/validate"
)

// --------------------- submit_entry ---------------------

type submitEntryTool struct{ host Host }

func (t *submitEntryTool) Spec() Spec {
	return Spec{
		Name:        SubmitEntry,
		Description: "Submit one employee's hours for one day. A second submission for the same employee and date updates the existing entry.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["employee", "date", "hours"],
  "properties": {
    "employee": {"type": "string", "description": "Employee full name as configured."},
    "date": {"type": "string", "description": "YYYY-MM-DD or a phrase such as \"yesterday\"."},
    "hours": {"type": "number", "minimum": 0},
    "project": {"type": "string", "description": "Jobsite code or name. Required when jobsites are configured."},
    "notes": {"type": "string"}
  }
}`),
		Mutates: true,
	}
}

type entryArgs struct {
	Employee string           `json:"employee"`
	Date     string           `json:"date"`
	Hours    *decimal.Decimal `json:"hours"`
	Project  string           `json:"project"`
	Notes    string           `json:"notes"`
}

type entryOutput struct {
	Entry      timesheet.Entry `json:"entry"`
	Annotation string          `json:"annotation,omitempty"`
	Count      int             `json:"count"`
}

func (t *submitEntryTool) Call(_ context.Context, input json.RawMessage) Result {
	var in entryArgs
	if err := decodeArgs("timesheet entry", input, &in); err != nil {
		return t.host.fail(SubmitEntry, err)
	}
	e, err := t.host.Validator.Entry(validate.EntryInput{
		Employee: in.Employee,
		Date:     in.Date,
		Hours:    in.Hours,
		Project:  in.Project,
		Notes:    in.Notes,
	})
	if err != nil {
		return t.host.fail(SubmitEntry, err)
	}
	stored, change := t.host.upsert(e)
	entries, _, _ := t.host.Store.Counts()
	res := success(SubmitEntry, entryOutput{
		Entry:      stored,
		Annotation: stored.Annotation(t.host.Exporter.FullDay).String(),
		Count:      entries,
	})
	res.Key = stored.Key().String()
	res.Change = change
	return res
}

// upsert stores e and emits entry_created or entry_updated.
func (h Host) upsert(e timesheet.Entry) (timesheet.Entry, timesheet.Change) {
	stored, change := h.Store.UpsertEntry(e)
	typ := events.EntryCreated
	if change == timesheet.Updated {
		typ = events.EntryUpdated
	}
	h.emit(events.Event{Type: typ, Key: stored.Key().String(), Fields: h.entryFields(stored)})
	return stored, change
}

func (h Host) entryFields(e timesheet.Entry) map[string]any {
	fields := map[string]any{
		"employee": e.Employee,
		"date":     e.Date,
		"hours":    e.Hours.String(),
	}
	if e.Project != "" {
		fields["project"] = e.Project
	}
	if e.Notes != "" {
		fields["notes"] = e.Notes
	}
	if a := e.Annotation(h.Exporter.FullDay); !a.IsNone() {
		fields["annotation"] = a.String()
	}
	return fields
}
