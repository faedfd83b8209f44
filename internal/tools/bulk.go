package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"crewsheet/internal/hours"
	"crewsheet/internal/timesheet"
	"crewsheet/internal/validate"
)

// --------------------- bulk_submit_entries ---------------------

// BatchRejectedError reports every employee whose entry failed validation.
// Nothing from the batch was applied.
type BatchRejectedError struct {
	Employees []string
	Fields    []validate.FieldError
}

func (e *BatchRejectedError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("tools: batch rejected (%s): %s", strings.Join(e.Employees, ", "), strings.Join(parts, "; "))
}

type bulkSubmitTool struct{ host Host }

func (t *bulkSubmitTool) Spec() Spec {
	return Spec{
		Name:        BulkSubmitEntries,
		Description: "Submit entries for several employees sharing date, hours and project. Per-person note overrides replace the general note; partial-day overrides add a standardized note. The batch is applied only if every entry is valid.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["employees", "date", "hours"],
  "properties": {
    "employees": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "date": {"type": "string"},
    "hours": {"type": "number", "minimum": 0},
    "project": {"type": "string"},
    "notes": {"type": "string"},
    "notes_overrides": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["employee", "note"],
        "properties": {"employee": {"type": "string"}, "note": {"type": "string"}}
      }
    },
    "partial_overrides": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["employee"],
        "properties": {
          "employee": {"type": "string"},
          "other_site_hours": {"type": "number", "minimum": 0},
          "other_site_name": {"type": "string"},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`),
		Mutates: true,
	}
}

type noteOverride struct {
	Employee string `json:"employee"`
	Note     string `json:"note"`
}

type partialOverride struct {
	Employee       string           `json:"employee"`
	OtherSiteHours *decimal.Decimal `json:"other_site_hours"`
	OtherSiteName  string           `json:"other_site_name"`
	Reason         string           `json:"reason"`
}

// Note renders the standardized partial-day note, or "" when the override
// carries no details.
func (p partialOverride) Note() string {
	var parts []string
	if r := strings.TrimSpace(p.Reason); r != "" {
		parts = append(parts, "Reason: "+r)
	}
	if p.OtherSiteHours != nil {
		if name := strings.TrimSpace(p.OtherSiteName); name != "" {
			parts = append(parts, fmt.Sprintf("Other site: %sh at %s", p.OtherSiteHours.String(), name))
		} else {
			parts = append(parts, fmt.Sprintf("Other site: %sh", p.OtherSiteHours.String()))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Partial day — " + strings.Join(parts, " | ")
}

type bulkArgs struct {
	Employees        []string          `json:"employees"`
	Date             string            `json:"date"`
	Hours            *decimal.Decimal  `json:"hours"`
	Project          string            `json:"project"`
	Notes            string            `json:"notes"`
	NotesOverrides   []noteOverride    `json:"notes_overrides"`
	PartialOverrides []partialOverride `json:"partial_overrides"`
}

type bulkApplied struct {
	Key    string           `json:"key"`
	Change timesheet.Change `json:"change"`
}

type bulkOutput struct {
	Applied []bulkApplied `json:"applied"`
	Count   int           `json:"count"`
}

func (t *bulkSubmitTool) Call(_ context.Context, input json.RawMessage) Result {
	var in bulkArgs
	if err := decodeArgs("bulk entries", input, &in); err != nil {
		return t.host.fail(BulkSubmitEntries, err)
	}
	batch, err := t.plan(in)
	if err != nil {
		return t.host.fail(BulkSubmitEntries, err)
	}

	out := bulkOutput{Applied: make([]bulkApplied, 0, len(batch))}
	for _, e := range batch {
		stored, change := t.host.upsert(e)
		out.Applied = append(out.Applied, bulkApplied{Key: stored.Key().String(), Change: change})
	}
	out.Count, _, _ = t.host.Store.Counts()
	res := success(BulkSubmitEntries, out)
	keys := make([]string, 0, len(out.Applied))
	for _, a := range out.Applied {
		keys = append(keys, a.Key)
	}
	res.Key = strings.Join(keys, ",")
	return res
}

// plan validates every entry of the batch without touching the store.
func (t *bulkSubmitTool) plan(in bulkArgs) ([]timesheet.Entry, error) {
	c := &validate.Collector{Kind: "bulk entries"}
	names := make([]string, 0, len(in.Employees))
	listed := map[string]bool{}
	for _, n := range in.Employees {
		n = strings.TrimSpace(n)
		if n == "" || listed[strings.ToLower(n)] {
			continue
		}
		listed[strings.ToLower(n)] = true
		names = append(names, n)
	}
	if len(names) == 0 {
		c.Missing("employees", "At least one employee")
	}

	var failed []string
	noteFor := map[string]string{}
	for _, o := range in.NotesOverrides {
		key := strings.ToLower(strings.TrimSpace(o.Employee))
		if key == "" || strings.TrimSpace(o.Note) == "" {
			continue
		}
		if !listed[key] {
			c.Add(validate.FieldError{Field: "notes_overrides", Code: validate.UnknownReference, Employee: o.Employee,
				Message: fmt.Sprintf("note override names %s, who is not in this batch", o.Employee), Value: o.Employee, Choices: names})
			failed = append(failed, o.Employee)
			continue
		}
		noteFor[key] = strings.TrimSpace(o.Note)
	}
	partialFor := map[string]string{}
	for _, p := range in.PartialOverrides {
		key := strings.ToLower(strings.TrimSpace(p.Employee))
		if key == "" {
			continue
		}
		if !listed[key] {
			c.Add(validate.FieldError{Field: "partial_overrides", Code: validate.UnknownReference, Employee: p.Employee,
				Message: fmt.Sprintf("partial-day override names %s, who is not in this batch", p.Employee), Value: p.Employee, Choices: names})
			failed = append(failed, p.Employee)
			continue
		}
		if p.OtherSiteHours != nil && !validate.Bounded(*p.OtherSiteHours) {
			c.Add(validate.FieldError{Field: "other_site_hours", Code: validate.OutOfRange, Employee: p.Employee,
				Message: "Other site hours are out of range"})
			failed = append(failed, p.Employee)
			continue
		}
		if p.OtherSiteHours != nil && p.OtherSiteHours.IsNegative() {
			c.Add(validate.FieldError{Field: "other_site_hours", Code: validate.OutOfRange, Employee: p.Employee,
				Message: "Other site hours cannot be negative", Value: p.OtherSiteHours.String()})
			failed = append(failed, p.Employee)
			continue
		}
		partialFor[key] = p.Note()
	}

	batch := make([]timesheet.Entry, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		note := in.Notes
		if o, ok := noteFor[key]; ok {
			note = o
		}
		e, err := t.host.Validator.Entry(validate.EntryInput{
			Employee: name,
			Date:     in.Date,
			Hours:    in.Hours,
			Project:  in.Project,
			Notes:    hours.MergeNotes(note, partialFor[key]),
		})
		if err != nil {
			failed = append(failed, name)
			var ve *validate.Error
			if errors.As(err, &ve) {
				for _, f := range ve.Fields {
					f.Employee = name
					c.Add(f)
				}
			}
			continue
		}
		batch = append(batch, e)
	}

	if err := c.Err(); err != nil {
		return nil, &BatchRejectedError{Employees: failed, Fields: err.(*validate.Error).Fields}
	}
	return batch, nil
}
