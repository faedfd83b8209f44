package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"crewsheet/internal/company"
	"crewsheet/internal/csvexport"
	"crewsheet/internal/dates"
	"crewsheet/internal/events"
	"crewsheet/internal/exportsink"
	"crewsheet/internal/timesheet"
	"crewsheet/internal/validate"
)

const companyJSON = `{
  "company": {"name": "Acme Glazing"},
  "employees": ["Alex Doe", {"name": "Bea Smith", "role": "Glazier", "apprentice_period": "Year 1"}, "Cy Lee"],
  "jobsites": [{"code": "M567", "name": "Main Street"}, {"code": "P100", "name": "Project A"}, {"code": "P200", "name": "Project B"}],
  "materials": [{"key": "glass", "label": "Glass Panels"}],
  "labor_activities": [{"key": "stretch", "label": "Group Stretch & Flex", "default_quantity": 0.25, "default_unit": "hours"}]
}`

type fixture struct {
	d     *Dispatcher
	store *timesheet.Store
	log   *events.Log
	sink  *exportsink.Memory
}

func newFixture(t *testing.T, cfg *company.Config) fixture {
	t.Helper()
	store := timesheet.NewStore()
	log := events.NewLog()
	sink := exportsink.NewMemory()
	d := NewDispatcher(Host{
		SessionID: "s1",
		Store:     store,
		Events:    log,
		Validator: validate.Validator{Company: cfg, Dates: dates.Resolver{BaseDate: "2025-09-10"}},
		Exporter:  csvexport.Exporter{FullDay: decimal.NewFromInt(8)},
		Sink:      sink,
	})
	return fixture{d: d, store: store, log: log, sink: sink}
}

func loadCompany(t *testing.T) *company.Config {
	t.Helper()
	cfg, err := company.Parse([]byte(companyJSON))
	require.NoError(t, err)
	return cfg
}

func call(t *testing.T, d *Dispatcher, name string, args any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return d.Call(context.Background(), name, raw)
}

func eventTypes(l *events.Log) []events.Type {
	var out []events.Type
	for ev := range l.Events() {
		out = append(out, ev.Type)
	}
	return out
}

func TestSubmitEntryIdempotent(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	args := map[string]any{"employee": "Alex Doe", "date": "2025-09-01", "hours": 8, "project": "Project A", "notes": "glazing"}

	first := call(t, f.d, SubmitEntry, args)
	require.True(t, first.OK(), "%+v", first)
	require.Equal(t, timesheet.Created, first.Change)
	require.Equal(t, "Alex Doe@2025-09-01", first.Key)

	second := call(t, f.d, SubmitEntry, args)
	require.True(t, second.OK())
	require.Equal(t, timesheet.Updated, second.Change)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "glazing", entries[0].Notes)
	require.Equal(t, []events.Type{events.EntryCreated, events.EntryUpdated}, eventTypes(f.log))
}

func TestSubmitEntryUpdatesNotDuplicates(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	call(t, f.d, SubmitEntry, map[string]any{"employee": "Alex Doe", "date": "2025-09-01", "hours": 8, "project": "Project A"})
	res := call(t, f.d, SubmitEntry, map[string]any{"employee": "alex doe", "date": "2025-09-01", "hours": 7, "project": "Project B"})
	require.True(t, res.OK())
	require.Equal(t, timesheet.Updated, res.Change)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "7", entries[0].Hours.String())
	require.Equal(t, "Project B", entries[0].Project)

	var out entryOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	require.Equal(t, "Partial day — 1h short of 8h", out.Annotation)
}

func TestSubmitEntryProjectRequiredOnlyWithJobsites(t *testing.T) {
	args := map[string]any{"employee": "Alex Doe", "date": "2025-09-01", "hours": 8}

	f := newFixture(t, loadCompany(t))
	res := call(t, f.d, SubmitEntry, args)
	require.False(t, res.OK())
	require.Len(t, res.Errors, 1)
	require.Equal(t, validate.MissingField, res.Errors[0].Code)
	require.Equal(t, "project", res.Errors[0].Field)
	require.Empty(t, f.store.Entries())
	require.Equal(t, []events.Type{events.ValidationFailed}, eventTypes(f.log))

	var ve *validate.Error
	require.True(t, errors.As(res.Err(), &ve))

	noSites := newFixture(t, &company.Config{Employees: []company.Employee{{Name: "Alex Doe"}}})
	res = call(t, noSites.d, SubmitEntry, args)
	require.True(t, res.OK(), "%+v", res.Errors)
}

func TestBulkSubmitIsAtomic(t *testing.T) {
	f := newFixture(t, loadCompany(t))

	res := call(t, f.d, BulkSubmitEntries, map[string]any{
		"employees": []string{"Alex Doe", "Bogus Person"},
		"date":      "2025-09-01",
		"hours":     8,
		"project":   "Main Street",
	})
	require.False(t, res.OK())
	require.Empty(t, f.store.Entries())

	var be *BatchRejectedError
	require.True(t, errors.As(res.Err(), &be))
	require.Equal(t, []string{"Bogus Person"}, be.Employees)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Bogus Person", res.Errors[0].Employee)
	require.Equal(t, validate.UnknownReference, res.Errors[0].Code)
	require.Equal(t, []events.Type{events.ValidationFailed}, eventTypes(f.log))
}

func TestBulkSubmitUnknownProjectNamesEveryEmployee(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	res := call(t, f.d, BulkSubmitEntries, map[string]any{
		"employees": []string{"Alex Doe", "Bea Smith"},
		"date":      "2025-09-01",
		"hours":     8,
		"project":   "Nowhere",
	})
	require.False(t, res.OK())
	require.Empty(t, f.store.Entries())
	var be *BatchRejectedError
	require.True(t, errors.As(res.Err(), &be))
	require.Contains(t, be.Employees, "Bea Smith")
	require.Contains(t, be.Error(), "Bea Smith")
}

func TestBulkSubmitComposesNotes(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	res := call(t, f.d, BulkSubmitEntries, map[string]any{
		"employees": []string{"Alex Doe", "Bea Smith", "Cy Lee"},
		"date":      "yesterday",
		"hours":     6,
		"project":   "M567",
		"notes":     "windows east side",
		"notes_overrides": []map[string]any{
			{"employee": "Bea Smith", "note": "doors"},
		},
		"partial_overrides": []map[string]any{
			{"employee": "Bea Smith", "reason": "sick", "other_site_hours": 2, "other_site_name": "P100"},
			{"employee": "Cy Lee", "reason": "appointment"},
		},
	})
	require.True(t, res.OK(), "%+v", res.Errors)

	var out bulkOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	require.Len(t, out.Applied, 3)
	require.Equal(t, 3, out.Count)

	byName := map[string]timesheet.Entry{}
	for _, e := range f.store.Entries() {
		require.Equal(t, "2025-09-09", e.Date)
		require.Equal(t, "M567", e.Project)
		byName[e.Employee] = e
	}
	require.Equal(t, "windows east side", byName["Alex Doe"].Notes)
	require.Equal(t, "doors | Partial day — Reason: sick | Other site: 2h at P100", byName["Bea Smith"].Notes)
	require.Equal(t, "windows east side | Partial day — Reason: appointment", byName["Cy Lee"].Notes)
}

func TestBulkOverrideForUnlistedEmployeeRejects(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	res := call(t, f.d, BulkSubmitEntries, map[string]any{
		"employees":       []string{"Alex Doe"},
		"date":            "2025-09-01",
		"hours":           8,
		"project":         "M567",
		"notes_overrides": []map[string]any{{"employee": "Cy Lee", "note": "x"}},
	})
	require.False(t, res.OK())
	require.Equal(t, "notes_overrides", res.Errors[0].Field)
	require.Empty(t, f.store.Entries())
}

func TestLaborAndMaterialAppend(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	for i := 0; i < 2; i++ {
		res := call(t, f.d, SubmitLaborRecord, map[string]any{"date": "2025-09-01", "job": "M567", "activity": "stretch"})
		require.True(t, res.OK(), "%+v", res.Errors)
	}
	labor := f.store.Labor()
	require.Len(t, labor, 2)
	require.Equal(t, "Group Stretch & Flex", labor[1].Activity)
	require.Equal(t, "0.25", labor[1].Quantity.String())
	require.Equal(t, "labor#2", labor[1].Key())

	res := call(t, f.d, SubmitMaterialRecord, map[string]any{"date": "2025-09-01", "job": "Main Street", "category": "glass", "quantity": 4, "unit": "panels"})
	require.True(t, res.OK(), "%+v", res.Errors)
	require.Equal(t, "material#1", res.Key)

	res = call(t, f.d, SubmitMaterialRecord, map[string]any{"date": "2025-09-01", "job": "M567", "category": "glass", "quantity": -1, "unit": "panels"})
	require.False(t, res.OK())
	require.Equal(t, validate.OutOfRange, res.Errors[0].Code)
	require.Len(t, f.store.Materials(), 1)

	require.Equal(t, []events.Type{events.LaborRecorded, events.LaborRecorded, events.MaterialRecorded, events.ValidationFailed}, eventTypes(f.log))
}

func TestExportIsDeterministic(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	empty := call(t, f.d, ExportLaborCSV, nil)
	require.True(t, empty.OK())
	var out exportOutput
	require.NoError(t, json.Unmarshal(empty.Output, &out))
	require.Equal(t, "date,job,activity,quantity,unit,notes\n", out.CSV)
	require.Equal(t, "memory:s1/labor.csv", out.Location)

	call(t, f.d, SubmitEntry, map[string]any{"employee": "Alex Doe", "date": "2025-09-01", "hours": 9.5, "project": "M567"})
	a := call(t, f.d, ExportCSV, map[string]any{})
	b := call(t, f.d, ExportCSV, map[string]any{})
	require.Equal(t, string(a.Output), string(b.Output))
	require.NoError(t, json.Unmarshal(a.Output, &out))
	require.Equal(t, "employee,date,hours,project,notes\nAlex Doe,2025-09-01,9.5,M567,Overtime — +1.5h over 8h\n", out.CSV)

	stored, err := f.sink.Read(context.Background(), "s1", csvexport.Timesheet)
	require.NoError(t, err)
	require.Equal(t, out.CSV, stored)
	require.Len(t, f.store.Entries(), 1)
}

func TestExportWriteFailureKeepsDocument(t *testing.T) {
	f := newFixture(t, nil)
	f.sink.Err = errors.New("disk full")
	res := call(t, f.d, ExportMaterialsCSV, nil)
	require.True(t, res.OK())
	require.Contains(t, res.Warning, "disk full")
	var ioErr *exportsink.IOError
	require.True(t, errors.As(res.Err(), &ioErr))

	var out exportOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	require.Equal(t, "date,job,category,quantity,unit,notes\n", out.CSV)

	var last events.Event
	for ev := range f.log.Events() {
		last = ev
	}
	require.Equal(t, events.ExportProduced, last.Type)
	require.Equal(t, "disk full", strings.TrimPrefix(last.Fields["write_error"].(string), "exportsink: memory write of materials export failed: "))
}

func TestResolveDatePinned(t *testing.T) {
	d := NewDispatcher(Host{Validator: validate.Validator{Dates: dates.Resolver{
		Now: func() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) },
	}}})
	res := call(t, d, ResolveDate, map[string]any{"phrase": "today", "timezone": "America/Los_Angeles", "base_date": "2025-09-10"})
	require.True(t, res.OK(), "%+v", res.Errors)
	require.Equal(t, "2025-09-10", res.Key)

	res = call(t, d, ResolveDate, map[string]any{"phrase": "today"})
	require.Equal(t, "2031-01-01", res.Key)

	res = call(t, d, ResolveDate, map[string]any{"phrase": "the day after the party"})
	require.False(t, res.OK())
	require.Equal(t, validate.UnparseableDate, res.Errors[0].Code)
	require.Equal(t, "phrase", res.Errors[0].Field)

	res = call(t, d, ResolveDate, map[string]any{"phrase": "yesterday", "base_date": "09/10/2025"})
	require.False(t, res.OK())
	require.Equal(t, "base_date", res.Errors[0].Field)
	require.Equal(t, validate.InvalidValue, res.Errors[0].Code)
	require.Equal(t, "09/10/2025", res.Errors[0].Value)
}

func TestUnknownToolAndBadArguments(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	res := f.d.Call(context.Background(), "delete_everything", nil)
	require.False(t, res.OK())
	require.Equal(t, validate.UnknownTool, res.Errors[0].Code)
	require.Equal(t, toolOrder, res.Errors[0].Choices)

	res = call(t, f.d, SubmitEntry, map[string]any{"employee": "Alex Doe", "date": "2025-09-01", "hours": 8, "project": "M567", "overtime": true})
	require.False(t, res.OK())
	require.Equal(t, validate.InvalidValue, res.Errors[0].Code)
	require.Equal(t, "overtime", res.Errors[0].Field)

	res = call(t, f.d, BulkSubmitEntries, map[string]any{"employees": "Alex Doe", "date": "2025-09-01", "hours": 8})
	require.False(t, res.OK())
	require.Equal(t, "employees", res.Errors[0].Field)
	require.Empty(t, f.store.Entries())
}

func TestListCompanyInfo(t *testing.T) {
	f := newFixture(t, nil)
	res := call(t, f.d, ListCompanyInfo, nil)
	var info CompanyInfo
	require.NoError(t, json.Unmarshal(res.Output, &info))
	require.Equal(t, "empty", info.Status)
	require.Empty(t, info.Employees)

	f = newFixture(t, loadCompany(t))
	res = call(t, f.d, ListCompanyInfo, nil)
	require.NoError(t, json.Unmarshal(res.Output, &info))
	require.Equal(t, "ok", info.Status)
	require.Equal(t, "Acme Glazing", info.Company)
	require.Equal(t, []string{"Alex Doe", "Bea Smith", "Cy Lee"}, info.Employees)
	require.Equal(t, "Year 1", info.EmployeesDetailed[1].ApprenticePeriod)
	require.Len(t, info.Jobsites, 3)
}

func TestSpecsFollowFixedOrder(t *testing.T) {
	specs := Specs()
	require.Len(t, specs, len(toolOrder))
	for i, s := range specs {
		require.Equal(t, toolOrder[i], s.Name)
		require.True(t, json.Valid(s.InputSchema), s.Name)
	}
	spec, ok := NewDispatcher(Host{}).Lookup(ExportLaborCSV)
	require.True(t, ok)
	require.Equal(t, csvexport.Labor, spec.Export)
}

func TestHugeAmountsAreRejectedBeforeRendering(t *testing.T) {
	f := newFixture(t, loadCompany(t))
	ctx := context.Background()

	res := f.d.Call(ctx, SubmitEntry, json.RawMessage(`{"employee":"Alex Doe","date":"2025-09-01","hours":1e30000000,"project":"M567"}`))
	require.False(t, res.OK())
	require.Len(t, res.Errors, 1)
	require.Equal(t, "hours", res.Errors[0].Field)
	require.Equal(t, validate.OutOfRange, res.Errors[0].Code)

	res = f.d.Call(ctx, SubmitMaterialRecord, json.RawMessage(`{"date":"2025-09-01","job":"M567","category":"glass","quantity":1e2000000000,"unit":"pcs"}`))
	require.False(t, res.OK())

	res = f.d.Call(ctx, BulkSubmitEntries, json.RawMessage(`{"employees":["Alex Doe","Bea Smith"],"date":"2025-09-01","hours":6,"project":"M567",
		"partial_overrides":[{"employee":"Bea Smith","other_site_hours":1e30000000}]}`))
	require.False(t, res.OK())
	require.Equal(t, "other_site_hours", res.Errors[0].Field)
	require.Empty(t, f.store.Entries())
}
