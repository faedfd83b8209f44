// Package csvexport renders the record collections as CSV. Output depends
// only on the records passed in, so the same store state always renders to
// the same bytes.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"

	"crewsheet/internal/hours"
	"crewsheet/internal/timesheet"
)

// Kind names one exportable collection.
type Kind string

const (
	Timesheet Kind = "timesheet"
	Labor     Kind = "labor"
	Materials Kind = "materials"
)

var (
	TimesheetHeader = []string{"employee", "date", "hours", "project", "notes"}
	LaborHeader     = []string{"date", "job", "activity", "quantity", "unit", "notes"}
	MaterialsHeader = []string{"date", "job", "category", "quantity", "unit", "notes"}
)

// ParseKind accepts the collection names used by the export tools and routes.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Timesheet, Labor, Materials:
		return Kind(s), nil
	case "entries", "time":
		return Timesheet, nil
	case "material":
		return Materials, nil
	}
	return "", fmt.Errorf("csvexport: unknown kind %q", s)
}

// Document is one rendered export.
type Document struct {
	Kind Kind   `json:"kind"`
	Rows int    `json:"rows"`
	Text string `json:"csv"`
}

// Exporter renders store snapshots. FullDay feeds the hours annotation that
// is merged into the timesheet notes column.
type Exporter struct {
	FullDay decimal.Decimal
}

func (x Exporter) fullDay() decimal.Decimal {
	if !x.FullDay.IsPositive() {
		return hours.DefaultFullDay
	}
	return x.FullDay
}

// Render reads the requested collection from s. It never mutates s.
func (x Exporter) Render(kind Kind, s *timesheet.Store) (Document, error) {
	switch kind {
	case Timesheet:
		return x.Entries(s.Entries())
	case Labor:
		return x.Labor(s.Labor())
	case Materials:
		return x.Materials(s.Materials())
	}
	return Document{}, fmt.Errorf("csvexport: unknown kind %q", kind)
}

func (x Exporter) Entries(entries []timesheet.Entry) (Document, error) {
	full := x.fullDay()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Employee, e.Date, e.Hours.String(), e.Project, e.PayrollNotes(full)})
	}
	return render(Timesheet, TimesheetHeader, rows)
}

func (x Exporter) Labor(records []timesheet.LaborRecord) (Document, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Date, r.Job, r.Activity, r.Quantity.String(), r.Unit, r.Notes})
	}
	return render(Labor, LaborHeader, rows)
}

func (x Exporter) Materials(records []timesheet.MaterialRecord) (Document, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Date, r.Job, r.Category, r.Quantity.String(), r.Unit, r.Notes})
	}
	return render(Materials, MaterialsHeader, rows)
}

func render(kind Kind, header []string, rows [][]string) (Document, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return Document{}, fmt.Errorf("csvexport: write %s header: %w", kind, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return Document{}, fmt.Errorf("csvexport: write %s rows: %w", kind, err)
	}
	return Document{Kind: kind, Rows: len(rows), Text: buf.String()}, nil
}
