package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"crewsheet/internal/company"
	"crewsheet/internal/csvexport"
	"crewsheet/internal/events"
	"crewsheet/internal/exportsink"
	"crewsheet/internal/timesheet"
	"crewsheet/internal/validate"
)

// Tool names. The set is closed: anything else is rejected.
const (
	SubmitEntry          = "submit_entry"
	BulkSubmitEntries    = "bulk_submit_entries"
	SubmitLaborRecord    = "submit_labor_record"
	SubmitMaterialRecord = "submit_material_record"
	ExportCSV            = "export_csv"
	ExportLaborCSV       = "export_labor_csv"
	ExportMaterialsCSV   = "export_materials_csv"
	ResolveDate          = "resolve_date"
	ListCompanyInfo      = "list_company_info"
)

var toolOrder = []string{
	SubmitEntry,
	BulkSubmitEntries,
	SubmitLaborRecord,
	SubmitMaterialRecord,
	ExportCSV,
	ExportLaborCSV,
	ExportMaterialsCSV,
	ResolveDate,
	ListCompanyInfo,
}

// Spec documents a tool's contract.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
	// Mutates is set for tools that write to the record store.
	Mutates bool `json:"mutates,omitempty"`
	// Export names the collection an export tool renders.
	Export csvexport.Kind `json:"export,omitempty"`
}

// Tool is one named operation. Validation problems are reported in the
// Result, never as a panic or a returned error.
type Tool interface {
	Spec() Spec
	Call(ctx context.Context, input json.RawMessage) Result
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the structured outcome handed back to the parsing layer.
type Result struct {
	Tool   string                `json:"tool"`
	Status Status                `json:"status"`
	Key    string                `json:"key,omitempty"`
	Change timesheet.Change      `json:"change,omitempty"`
	Output json.RawMessage       `json:"output,omitempty"`
	Errors []validate.FieldError `json:"errors,omitempty"`
	// Warning carries a non-fatal problem such as a failed export write.
	Warning string `json:"warning,omitempty"`

	err error
}

func (r Result) OK() bool { return r.Status == StatusOK }

// Err returns the typed error behind a failed or degraded result:
// *validate.Error, *BatchRejectedError or an export sink error.
func (r Result) Err() error { return r.err }

// Host wires session state into the tools.
type Host struct {
	SessionID string
	Company   *company.Config
	Store     *timesheet.Store
	Events    events.Emitter
	Validator validate.Validator
	Exporter  csvexport.Exporter
	// Sink is optional; when nil exports are only returned.
	Sink   exportsink.Sink
	Logger *log.Logger
}

func (h Host) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func (h Host) emit(ev events.Event) {
	if h.Events == nil {
		return
	}
	if _, err := h.Events.Emit(ev); err != nil {
		h.logger().Printf("tools: emit %s %s: %v", ev.Type, ev.Key, err)
	}
}

// Dispatcher holds the session's tools and routes calls by name.
type Dispatcher struct {
	mu    sync.RWMutex
	host  Host
	tools map[string]Tool
}

// NewDispatcher registers the full tool set against h.
func NewDispatcher(h Host) *Dispatcher {
	if h.Store == nil {
		h.Store = timesheet.NewStore()
	}
	if h.Company == nil {
		h.Company = h.Validator.Company
	}
	d := &Dispatcher{host: h, tools: map[string]Tool{}}
	d.register(&submitEntryTool{host: h})
	d.register(&bulkSubmitTool{host: h})
	d.register(&laborTool{host: h})
	d.register(&materialTool{host: h})
	d.register(newExportTool(h, ExportCSV, csvexport.Timesheet))
	d.register(newExportTool(h, ExportLaborCSV, csvexport.Labor))
	d.register(newExportTool(h, ExportMaterialsCSV, csvexport.Materials))
	d.register(&resolveDateTool{host: h})
	d.register(&companyInfoTool{host: h})
	return d
}

func (d *Dispatcher) register(t Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[t.Spec().Name] = t
}

func (d *Dispatcher) Host() Host { return d.host }

// Call dispatches one tool call. An unrecognized name yields an
// unknown_tool field error and a validation_failed event.
func (d *Dispatcher) Call(ctx context.Context, name string, input json.RawMessage) Result {
	if d == nil {
		return Result{Tool: name, Status: StatusError, err: errors.New("tools: dispatcher is nil")}
	}
	name = strings.TrimSpace(name)
	d.mu.RLock()
	t, ok := d.tools[name]
	d.mu.RUnlock()
	if !ok {
		return d.host.fail(name, &validate.Error{Kind: "tool call", Fields: []validate.FieldError{{
			Field:   "tool",
			Code:    validate.UnknownTool,
			Message: fmt.Sprintf("Unknown tool: %q", name),
			Value:   name,
			Choices: d.Names(),
		}}})
	}
	return t.Call(ctx, input)
}

// Lookup returns the spec of a registered tool.
func (d *Dispatcher) Lookup(name string) (Spec, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tools[strings.TrimSpace(name)]
	if !ok {
		return Spec{}, false
	}
	return t.Spec(), true
}

// Specs returns the tool specs in their fixed order.
func (d *Dispatcher) Specs() []Spec {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Spec, 0, len(d.tools))
	for _, name := range toolOrder {
		if t, ok := d.tools[name]; ok {
			out = append(out, t.Spec())
		}
	}
	return out
}

func (d *Dispatcher) Names() []string {
	return append([]string(nil), toolOrder...)
}

// Specs lists the tool contracts without a session.
func Specs() []Spec {
	return NewDispatcher(Host{}).Specs()
}

// fail records a validation failure and turns it into a result.
func (h Host) fail(tool string, err error) Result {
	res := Result{Tool: tool, Status: StatusError, err: err}
	var ve *validate.Error
	var be *BatchRejectedError
	switch {
	case errors.As(err, &be):
		res.Errors = be.Fields
	case errors.As(err, &ve):
		res.Errors = ve.Fields
	default:
		res.Errors = []validate.FieldError{{Field: "", Code: validate.InvalidValue, Message: err.Error()}}
	}
	h.emit(events.Event{Type: events.ValidationFailed, Key: tool, Errors: res.Errors})
	return res
}

func success(tool string, output any) Result {
	res := Result{Tool: tool, Status: StatusOK}
	if output != nil {
		raw, err := json.Marshal(output)
		if err == nil {
			res.Output = raw
		}
	}
	return res
}

// decodeArgs strictly decodes input into v. Empty input is treated as {}.
func decodeArgs(kind string, input json.RawMessage, v any) error {
	if len(bytes.TrimSpace(input)) == 0 || bytes.Equal(bytes.TrimSpace(input), []byte("null")) {
		input = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	fe := validate.FieldError{Code: validate.InvalidValue, Message: "Arguments are not valid JSON: " + err.Error()}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		fe.Field = typeErr.Field
		fe.Message = fmt.Sprintf("%s has the wrong type (expected %s)", typeErr.Field, typeErr.Type)
	}
	if f, found := strings.CutPrefix(err.Error(), "json: unknown field "); found {
		fe.Field = strings.Trim(f, `"`)
		fe.Message = fmt.Sprintf("Unknown argument %s", f)
	}
	return &validate.Error{Kind: kind, Fields: []validate.FieldError{fe}}
}
