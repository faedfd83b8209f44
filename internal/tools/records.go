package tools

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"crewsheet/internal/events"
	"crewsheet/internal/validate"
)

// --------------------- submit_labor_record ---------------------

type laborTool struct{ host Host }

func (t *laborTool) Spec() Spec {
	return Spec{
		Name:        SubmitLaborRecord,
		Description: "Record a labor activity on a jobsite. Quantity and unit default from the activity's configuration. Every call adds a new record.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["date", "job", "activity"],
  "properties": {
    "date": {"type": "string"},
    "job": {"type": "string", "description": "Jobsite code or name."},
    "activity": {"type": "string", "description": "Labor activity key or label."},
    "quantity": {"type": "number", "minimum": 0},
    "unit": {"type": "string"},
    "notes": {"type": "string"}
  }
}`),
		Mutates: true,
	}
}

type laborArgs struct {
	Date     string           `json:"date"`
	Job      string           `json:"job"`
	Activity string           `json:"activity"`
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     string           `json:"unit"`
	Notes    string           `json:"notes"`
}

func (t *laborTool) Call(_ context.Context, input json.RawMessage) Result {
	var in laborArgs
	if err := decodeArgs("labor record", input, &in); err != nil {
		return t.host.fail(SubmitLaborRecord, err)
	}
	r, err := t.host.Validator.Labor(validate.LaborInput{
		Date:     in.Date,
		Job:      in.Job,
		Activity: in.Activity,
		Quantity: in.Quantity,
		Unit:     in.Unit,
		Notes:    in.Notes,
	})
	if err != nil {
		return t.host.fail(SubmitLaborRecord, err)
	}
	r = t.host.Store.AppendLabor(r)
	fields := map[string]any{
		"date":     r.Date,
		"job":      r.Job,
		"activity": r.Activity,
		"quantity": r.Quantity.String(),
		"unit":     r.Unit,
	}
	if r.Notes != "" {
		fields["notes"] = r.Notes
	}
	t.host.emit(events.Event{Type: events.LaborRecorded, Key: r.Key(), Fields: fields})
	res := success(SubmitLaborRecord, map[string]any{"record": r, "count": len(t.host.Store.Labor())})
	res.Key = r.Key()
	return res
}

// --------------------- submit_material_record ---------------------

type materialTool struct{ host Host }

func (t *materialTool) Spec() Spec {
	return Spec{
		Name:        SubmitMaterialRecord,
		Description: "Record material usage on a jobsite. Every call adds a new record.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["date", "job", "category", "quantity", "unit"],
  "properties": {
    "date": {"type": "string"},
    "job": {"type": "string", "description": "Jobsite code or name."},
    "category": {"type": "string", "description": "Material key or label."},
    "quantity": {"type": "number", "minimum": 0},
    "unit": {"type": "string"},
    "notes": {"type": "string"}
  }
}`),
		Mutates: true,
	}
}

type materialArgs struct {
	Date     string           `json:"date"`
	Job      string           `json:"job"`
	Category string           `json:"category"`
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     string           `json:"unit"`
	Notes    string           `json:"notes"`
}

func (t *materialTool) Call(_ context.Context, input json.RawMessage) Result {
	var in materialArgs
	if err := decodeArgs("material record", input, &in); err != nil {
		return t.host.fail(SubmitMaterialRecord, err)
	}
	r, err := t.host.Validator.Material(validate.MaterialInput{
		Date:     in.Date,
		Job:      in.Job,
		Category: in.Category,
		Quantity: in.Quantity,
		Unit:     in.Unit,
		Notes:    in.Notes,
	})
	if err != nil {
		return t.host.fail(SubmitMaterialRecord, err)
	}
	r = t.host.Store.AppendMaterial(r)
	fields := map[string]any{
		"date":     r.Date,
		"job":      r.Job,
		"category": r.Category,
		"quantity": r.Quantity.String(),
		"unit":     r.Unit,
	}
	if r.Notes != "" {
		fields["notes"] = r.Notes
	}
	t.host.emit(events.Event{Type: events.MaterialRecorded, Key: r.Key(), Fields: fields})
	res := success(SubmitMaterialRecord, map[string]any{"record": r, "count": len(t.host.Store.Materials())})
	res.Key = r.Key()
	return res
}
