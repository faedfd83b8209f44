package orchestrator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"crewsheet/internal/tools"
	"crewsheet/internal/validate"
)

const maxChoices = 8

// FollowUp composes one question covering every field error in results.
// Errors that name an employee are grouped under that employee.
func FollowUp(results []tools.Result) string {
	var general []string
	byEmployee := map[string][]string{}
	var employees []string
	seen := map[string]bool{}

	for _, r := range results {
		for _, fe := range r.Errors {
			line := describe(fe)
			if fe.Employee == "" {
				if !seen[line] {
					seen[line] = true
					general = append(general, line)
				}
				continue
			}
			if _, ok := byEmployee[fe.Employee]; !ok {
				employees = append(employees, fe.Employee)
			}
			byEmployee[fe.Employee] = append(byEmployee[fe.Employee], line)
		}
	}
	if len(general) == 0 && len(employees) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("I couldn't record everything yet. Could you help with the following?")
	for _, line := range general {
		b.WriteString("\n- ")
		b.WriteString(line)
	}
	for _, emp := range employees {
		fmt.Fprintf(&b, "\n- %s: %s", emp, strings.Join(byEmployee[emp], "; "))
	}
	return b.String()
}

func describe(fe validate.FieldError) string {
	msg := strings.TrimSpace(fe.Message)
	if msg == "" {
		msg = fmt.Sprintf("%s is invalid", fe.Field)
	}
	if fe.Code != validate.UnknownReference && fe.Code != validate.UnknownTool {
		return msg
	}
	if len(fe.Choices) == 0 {
		return msg
	}
	choices := fe.Choices
	more := ""
	if len(choices) > maxChoices {
		more = fmt.Sprintf(", and %d more", len(choices)-maxChoices)
		choices = choices[:maxChoices]
	}
	return fmt.Sprintf("%s. Valid options: %s%s", strings.TrimSuffix(msg, "."), strings.Join(choices, ", "), more)
}

func summaryText(s Summary, fullDay decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d time entries, %d labor records, %d material records.", len(s.Entries), len(s.Labor), len(s.Materials))
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "\n- %s on %s: %sh", e.Employee, e.Date, e.Hours.String())
		if e.Project != "" {
			fmt.Fprintf(&b, " at %s", e.Project)
		}
		if notes := e.PayrollNotes(fullDay); notes != "" {
			fmt.Fprintf(&b, " (%s)", notes)
		}
	}
	for _, r := range s.Labor {
		fmt.Fprintf(&b, "\n- %s %s at %s: %s %s", r.Date, r.Activity, r.Job, r.Quantity.String(), r.Unit)
	}
	for _, r := range s.Materials {
		fmt.Fprintf(&b, "\n- %s %s at %s: %s %s", r.Date, r.Category, r.Job, r.Quantity.String(), r.Unit)
	}
	b.WriteString("\nReply to confirm, or tell me what to change.")
	return b.String()
}
