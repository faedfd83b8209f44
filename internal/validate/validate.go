// Package validate checks tool arguments against the company config and
// returns normalized records. All field errors are reported together.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"crewsheet/internal/company"
	"crewsheet/internal/dates"
	"crewsheet/internal/timesheet"
)

// EntryInput is a raw timesheet entry submission. Empty strings and nil
// pointers mean the argument was omitted.
type EntryInput struct {
	Employee string
	Date     string
	Hours    *decimal.Decimal
	Project  string
	Notes    string
}

type LaborInput struct {
	Date     string
	Job      string
	Activity string
	Quantity *decimal.Decimal
	Unit     string
	Notes    string
}

type MaterialInput struct {
	Date     string
	Job      string
	Category string
	Quantity *decimal.Decimal
	Unit     string
	Notes    string
}

// Validator is side-effect free. A nil Company disables referential checks.
type Validator struct {
	Company *company.Config
	Dates   dates.Resolver
}

// Entry validates a timesheet entry. The project is required and must
// resolve to a jobsite only when jobsites are configured.
func (v Validator) Entry(in EntryInput) (timesheet.Entry, error) {
	c := &Collector{Kind: "timesheet entry"}
	out := timesheet.Entry{Notes: strings.TrimSpace(in.Notes)}

	out.Employee = v.employee(c, in.Employee)
	out.Date = v.date(c, "date", in.Date)
	if h, ok := nonNegative(c, "hours", "Hours", in.Hours); ok {
		out.Hours = h
	}
	project := strings.TrimSpace(in.Project)
	switch {
	case v.Company.HasJobsites() && project == "":
		c.Add(FieldError{Field: "project", Code: MissingField, Message: "Project is required (company has configured jobsites)"})
	case v.Company.HasJobsites():
		if _, matched, ok := v.Company.FindJobsite(project); ok {
			out.Project = matched
		} else {
			c.Add(FieldError{
				Field:   "project",
				Code:    UnknownReference,
				Message: fmt.Sprintf("Unknown jobsite/project: %s (not in config)", project),
				Value:   project,
				Choices: v.Company.JobsiteChoices(),
			})
		}
	default:
		out.Project = project
	}
	if err := c.Err(); err != nil {
		return timesheet.Entry{}, err
	}
	return out, nil
}

// Labor validates a labor record, filling quantity and unit from the
// activity defaults when omitted.
func (v Validator) Labor(in LaborInput) (timesheet.LaborRecord, error) {
	c := &Collector{Kind: "labor record"}
	out := timesheet.LaborRecord{Notes: strings.TrimSpace(in.Notes), Unit: strings.TrimSpace(in.Unit)}
	out.Date = v.date(c, "date", in.Date)
	out.Job = v.job(c, in.Job)

	qty := in.Quantity
	activity := strings.TrimSpace(in.Activity)
	switch {
	case activity == "":
		c.Missing("activity", "Activity")
	case v.Company != nil && len(v.Company.LaborActivities) > 0:
		act, matched, ok := v.Company.FindActivity(activity)
		if !ok {
			c.Add(FieldError{
				Field:   "activity",
				Code:    UnknownReference,
				Message: fmt.Sprintf("Unknown labor activity: %s", activity),
				Value:   activity,
				Choices: v.Company.ActivityChoices(),
			})
			break
		}
		out.Activity = matched
		if qty == nil && act.DefaultQuantity != nil {
			d := *act.DefaultQuantity
			qty = &d
		}
		if out.Unit == "" {
			out.Unit = act.DefaultUnit
		}
	default:
		out.Activity = activity
	}

	if qty == nil {
		c.Add(FieldError{Field: "quantity", Code: MissingField, Message: "Quantity is required (or set a default in config)"})
	} else if q, ok := nonNegative(c, "quantity", "Quantity", qty); ok {
		out.Quantity = q
	}
	if out.Unit == "" {
		c.Add(FieldError{Field: "unit", Code: MissingField, Message: "Unit is required (or set a default in config)"})
	}
	if err := c.Err(); err != nil {
		return timesheet.LaborRecord{}, err
	}
	return out, nil
}

// Material validates a material usage record.
func (v Validator) Material(in MaterialInput) (timesheet.MaterialRecord, error) {
	c := &Collector{Kind: "material record"}
	out := timesheet.MaterialRecord{Notes: strings.TrimSpace(in.Notes), Unit: strings.TrimSpace(in.Unit)}
	out.Date = v.date(c, "date", in.Date)
	out.Job = v.job(c, in.Job)

	category := strings.TrimSpace(in.Category)
	switch {
	case category == "":
		c.Missing("category", "Category")
	case v.Company != nil && len(v.Company.Materials) > 0:
		if _, matched, ok := v.Company.FindMaterial(category); ok {
			out.Category = matched
		} else {
			c.Add(FieldError{
				Field:   "category",
				Code:    UnknownReference,
				Message: fmt.Sprintf("Unknown material category: %s", category),
				Value:   category,
				Choices: v.Company.MaterialChoices(),
			})
		}
	default:
		out.Category = category
	}
	if q, ok := nonNegative(c, "quantity", "Quantity", in.Quantity); ok {
		out.Quantity = q
	}
	if out.Unit == "" {
		c.Missing("unit", "Unit")
	}
	if err := c.Err(); err != nil {
		return timesheet.MaterialRecord{}, err
	}
	return out, nil
}

func (v Validator) employee(c *Collector, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		c.Missing("employee", "Employee")
		return ""
	}
	if v.Company == nil || len(v.Company.Employees) == 0 {
		return name
	}
	e, ok := v.Company.FindEmployee(name)
	if !ok {
		c.Add(FieldError{
			Field:   "employee",
			Code:    UnknownReference,
			Message: fmt.Sprintf("Unknown employee: %s (not in roster)", name),
			Value:   name,
			Choices: v.Company.EmployeeNames(),
		})
		return ""
	}
	return e.Name
}

func (v Validator) job(c *Collector, job string) string {
	job = strings.TrimSpace(job)
	if job == "" {
		c.Missing("job", "Job")
		return ""
	}
	if !v.Company.HasJobsites() {
		return job
	}
	_, matched, ok := v.Company.FindJobsite(job)
	if !ok {
		c.Add(FieldError{
			Field:   "job",
			Code:    UnknownReference,
			Message: fmt.Sprintf("Unknown jobsite: %s", job),
			Value:   job,
			Choices: v.Company.JobsiteChoices(),
		})
		return ""
	}
	return matched
}

func (v Validator) date(c *Collector, field, phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		c.Missing(field, "Date")
		return ""
	}
	iso, err := v.Dates.Resolve(phrase, "", "")
	if err != nil {
		msg := fmt.Sprintf("Could not understand date %q", phrase)
		if !errors.Is(err, dates.ErrUnparseable) || errors.Is(err, dates.ErrBaseDate) {
			msg = err.Error()
		}
		c.Add(FieldError{Field: field, Code: UnparseableDate, Message: msg, Value: phrase})
		return ""
	}
	return iso
}

// Amounts are kept below 10^MaxIntegerDigits with at most MaxFractionDigits
// decimal places.
const (
	MaxIntegerDigits  = 6
	MaxFractionDigits = 6
)

// Bounded reports whether v fits the amount limits. It only inspects the
// coefficient length and exponent, so huge exponents are never expanded.
func Bounded(v decimal.Decimal) bool {
	if v.IsZero() {
		return true
	}
	exp := int64(v.Exponent())
	if exp < -MaxFractionDigits {
		return false
	}
	return int64(v.NumDigits())+exp <= MaxIntegerDigits
}

func nonNegative(c *Collector, field, label string, v *decimal.Decimal) (decimal.Decimal, bool) {
	if v == nil {
		c.Missing(field, label)
		return decimal.Decimal{}, false
	}
	if !Bounded(*v) {
		c.Add(FieldError{
			Field:   field,
			Code:    OutOfRange,
			Message: fmt.Sprintf("%s must be below 1000000 with at most %d decimal places", label, MaxFractionDigits),
		})
		return decimal.Decimal{}, false
	}
	if v.IsZero() {
		return decimal.Zero, true
	}
	if v.IsNegative() {
		c.Add(FieldError{
			Field:   field,
			Code:    OutOfRange,
			Message: fmt.Sprintf("%s must not be negative", label),
			Value:   v.String(),
		})
		return decimal.Decimal{}, false
	}
	return *v, true
}
