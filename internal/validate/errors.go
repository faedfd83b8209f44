package validate

import (
	"fmt"
	"strings"
)

// Code classifies a field error.
type Code string

const (
	MissingField     Code = "missing_field"
	UnknownReference Code = "unknown_reference"
	OutOfRange       Code = "out_of_range"
	UnparseableDate  Code = "unparseable_date"
	InvalidValue     Code = "invalid_value"
	UnknownTool      Code = "unknown_tool"
	// ExportNotConfirmed rejects an export that needs approval first.
	ExportNotConfirmed Code = "export_not_confirmed"
)

// FieldError is one recoverable problem with one argument.
type FieldError struct {
	Field    string   `json:"field"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Value    string   `json:"value,omitempty"`
	Employee string   `json:"employee,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

func (f FieldError) String() string {
	if f.Employee != "" {
		return fmt.Sprintf("%s: %s", f.Employee, f.Message)
	}
	return f.Message
}

// Error carries every field error found for one record.
type Error struct {
	Kind   string
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("validate %s: %s", e.Kind, strings.Join(parts, "; "))
}

// Collector accumulates field errors in discovery order.
type Collector struct {
	Kind   string
	fields []FieldError
}

func (c *Collector) Add(f FieldError) { c.fields = append(c.fields, f) }

func (c *Collector) Missing(field, what string) {
	c.Add(FieldError{Field: field, Code: MissingField, Message: what + " is required"})
}

func (c *Collector) Len() int { return len(c.fields) }

// Err returns nil when nothing was collected.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Kind: c.Kind, Fields: append([]FieldError(nil), c.fields...)}
}
