// Package timesheet defines the session record types and the in-memory
// record store that owns their upsert and append semantics.
package timesheet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"crewsheet/internal/hours"
)

// Entry is one employee's hours for one day. Identity is (Employee, Date).
type Entry struct {
	Employee string          `json:"employee"`
	Date     string          `json:"date"`
	Hours    decimal.Decimal `json:"hours"`
	Project  string          `json:"project,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

// Key returns the entry's identity.
func (e Entry) Key() EntryKey { return EntryKey{Employee: e.Employee, Date: e.Date} }

// Annotation is derived from the current hours every time it is asked for.
func (e Entry) Annotation(fullDay decimal.Decimal) hours.Annotation {
	return hours.Classify(e.Hours, fullDay)
}

// PayrollNotes appends the annotation to the user notes.
func (e Entry) PayrollNotes(fullDay decimal.Decimal) string {
	return hours.MergeNotes(e.Notes, e.Annotation(fullDay).String())
}

// EntryKey identifies a TimesheetEntry.
type EntryKey struct {
	Employee string `json:"employee"`
	Date     string `json:"date"`
}

func (k EntryKey) String() string { return k.Employee + "@" + k.Date }

func (k EntryKey) fold() EntryKey {
	return EntryKey{Employee: strings.ToLower(strings.TrimSpace(k.Employee)), Date: k.Date}
}

// LaborRecord is append-only; Seq is its 1-based position in the session.
type LaborRecord struct {
	Seq      int             `json:"seq"`
	Date     string          `json:"date"`
	Job      string          `json:"job"`
	Activity string          `json:"activity"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Notes    string          `json:"notes,omitempty"`
}

func (r LaborRecord) Key() string { return fmt.Sprintf("labor#%d", r.Seq) }

// MaterialRecord is append-only; Seq is its 1-based position in the session.
type MaterialRecord struct {
	Seq      int             `json:"seq"`
	Date     string          `json:"date"`
	Job      string          `json:"job"`
	Category string          `json:"category"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Notes    string          `json:"notes,omitempty"`
}

func (r MaterialRecord) Key() string { return fmt.Sprintf("material#%d", r.Seq) }
