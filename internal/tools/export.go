package tools

import (
	"context"
	"encoding/json"

	"crewsheet/internal/csvexport"
	"crewsheet/internal/events"
)

// --------------------- export_csv / export_labor_csv / export_materials_csv ---------------------

type exportTool struct {
	host Host
	name string
	kind csvexport.Kind
}

func newExportTool(h Host, name string, kind csvexport.Kind) *exportTool {
	return &exportTool{host: h, name: name, kind: kind}
}

var exportDescriptions = map[csvexport.Kind]string{
	csvexport.Timesheet: "Export all timesheet entries as CSV with headers: employee,date,hours,project,notes.",
	csvexport.Labor:     "Export all labor records as CSV with headers: date,job,activity,quantity,unit,notes.",
	csvexport.Materials: "Export all material records as CSV with headers: date,job,category,quantity,unit,notes.",
}

// ExportTool names the tool that renders kind.
func ExportTool(kind csvexport.Kind) string {
	switch kind {
	case csvexport.Labor:
		return ExportLaborCSV
	case csvexport.Materials:
		return ExportMaterialsCSV
	default:
		return ExportCSV
	}
}

func (t *exportTool) Spec() Spec {
	return Spec{
		Name:        t.name,
		Description: exportDescriptions[t.kind],
		InputSchema: json.RawMessage(`{"type": "object", "additionalProperties": false, "properties": {}}`),
		Export:      t.kind,
	}
}

type exportOutput struct {
	Kind     csvexport.Kind `json:"kind"`
	Rows     int            `json:"rows"`
	CSV      string         `json:"csv"`
	Location string         `json:"location,omitempty"`
}

// Call renders the collection and, when a sink is configured, persists it.
// A failed write is reported as a warning; the rendered CSV is still returned.
func (t *exportTool) Call(ctx context.Context, input json.RawMessage) Result {
	var in struct{}
	if err := decodeArgs("export", input, &in); err != nil {
		return t.host.fail(t.name, err)
	}
	doc, err := t.host.Exporter.Render(t.kind, t.host.Store)
	if err != nil {
		return t.host.fail(t.name, err)
	}
	out := exportOutput{Kind: doc.Kind, Rows: doc.Rows, CSV: doc.Text}
	var writeErr error
	if t.host.Sink != nil {
		out.Location, writeErr = t.host.Sink.Write(ctx, t.host.SessionID, doc)
		if writeErr != nil {
			t.host.logger().Printf("tools: %s export write failed: %v", doc.Kind, writeErr)
		}
	}

	fields := map[string]any{"rows": doc.Rows, "bytes": len(doc.Text)}
	if out.Location != "" {
		fields["location"] = out.Location
	}
	if writeErr != nil {
		fields["write_error"] = writeErr.Error()
	}
	t.host.emit(events.Event{Type: events.ExportProduced, Key: string(doc.Kind), Fields: fields})

	res := success(t.name, out)
	res.Key = string(doc.Kind)
	if writeErr != nil {
		res.Warning = writeErr.Error()
		res.err = writeErr
	}
	return res
}
