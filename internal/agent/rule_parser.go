package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"crewsheet/internal/dates"
	"crewsheet/internal/orchestrator"
	"crewsheet/internal/tools"
)

// Hint is the reply given when nothing in the utterance could be used.
const Hint = `I didn't catch a time entry. Try something like "Alex Doe 7.5 hours on 2025-09-01 for Project A notes: rough-in", or say "done" to export.`

const monthNames = `(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`

var (
	notesRe   = regexp.MustCompile(`(?i)\bnotes?\s*:\s*(.*)$`)
	projectRe = regexp.MustCompile(`(?i)\bfor\s+(.+)$`)
	hoursRe   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours|hour|hrs|hr|h)\b`)
	numberRe  = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
	resolveRe = regexp.MustCompile(`(?i)^(?:resolve(?:\s+date)?|what\s+(?:date|day)\s+is)\s+(.+?)\??$`)

	// Ordered most specific first; the optional "on" is consumed with the phrase.
	datePhraseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:\bon\s+)?\b(\d{4}-\d{2}-\d{2})\b`),
		regexp.MustCompile(`(?i)(?:\bon\s+)?\b(\d{1,2}/\d{1,2}/\d{4})\b`),
		regexp.MustCompile(`(?i)(?:\bon\s+)?\b(` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?\s*,?\s*\d{4})\b`),
		regexp.MustCompile(`(?i)(?:\bon\s+)?\b(\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthNames + `\.?\s*,?\s*\d{4})\b`),
		regexp.MustCompile(`(?i)(?:\bon\s+)?\b((?:this|next|last)\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`),
		regexp.MustCompile(`(?i)\b(\d+\s+days?\s+ago)\b`),
		regexp.MustCompile(`(?i)\b(today|yesterday|tomorrow)\b`),
	}

	employeeStops = map[string]bool{
		"on": true, "for": true, "at": true, "worked": true, "work": true, "did": true,
		"h": true, "hr": true, "hrs": true, "hour": true, "hours": true,
	}
)

// Draft is what the freeform heuristics pull out of one line. Hours is kept
// as the literal number so it survives the round trip to the validator.
type Draft struct {
	Employee string      `json:"employee,omitempty"`
	Date     string      `json:"date,omitempty"`
	Hours    json.Number `json:"hours,omitempty"`
	Project  string      `json:"project,omitempty"`
	Notes    string      `json:"notes,omitempty"`
}

// Empty reports whether neither hours nor a date were found; a name alone
// is too weak to act on.
func (d Draft) Empty() bool { return d.Hours == "" && d.Date == "" }

// ParseFreeform extracts a timesheet entry from text such as
// "Alex Doe 7.5 hours on 2025-09-01 for Project A notes: framing". The
// date is returned as the phrase found in the text.
func ParseFreeform(text string) Draft {
	var d Draft
	rest := strings.TrimSpace(text)

	if loc := notesRe.FindStringSubmatchIndex(rest); loc != nil {
		d.Notes = strings.TrimSpace(rest[loc[2]:loc[3]])
		rest = rest[:loc[0]]
	}
	for _, re := range datePhraseRes {
		loc := re.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}
		d.Date = rest[loc[2]:loc[3]]
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
		break
	}
	if loc := projectRe.FindStringSubmatchIndex(rest); loc != nil {
		d.Project = strings.Trim(strings.TrimSpace(rest[loc[2]:loc[3]]), ".,;")
		rest = rest[:loc[0]]
	}
	if m := hoursRe.FindStringSubmatch(rest); m != nil {
		d.Hours = json.Number(m[1])
	} else if m := numberRe.FindStringSubmatch(rest); m != nil {
		d.Hours = json.Number(m[1])
	}
	d.Employee = leadingName(rest)
	return d
}

// leadingName takes up to three leading words before a number, a stop word
// or an hour marker.
func leadingName(s string) string {
	var name []string
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, ",;:")
		if tok == "" {
			continue
		}
		if strings.ContainsAny(tok[:1], "0123456789") || employeeStops[strings.ToLower(tok)] {
			break
		}
		name = append(name, tok)
		if len(name) == 3 {
			break
		}
	}
	return strings.Join(name, " ")
}

// RuleParser proposes calls from fixed phrases and the freeform heuristics,
// so a session can run without a model.
type RuleParser struct {
	Dates dates.Resolver
}

func (p RuleParser) Propose(_ context.Context, in orchestrator.ParseInput) (orchestrator.Proposal, error) {
	text := strings.TrimSpace(in.Utterance)
	if text == "" {
		return orchestrator.Proposal{Reply: Hint, Calls: []orchestrator.Call{}}, nil
	}
	if prop, ok := p.command(text); ok {
		return prop, nil
	}

	d := ParseFreeform(text)
	if d.Empty() {
		return orchestrator.Proposal{Reply: Hint, Calls: []orchestrator.Call{}}, nil
	}
	if d.Date != "" {
		if iso, err := p.Dates.Resolve(d.Date, "", ""); err == nil {
			d.Date = iso
		}
	}
	args, err := json.Marshal(d)
	if err != nil {
		return orchestrator.Proposal{}, fmt.Errorf("agent: encode entry: %w", err)
	}
	return orchestrator.Proposal{
		Reply: describe(d),
		Calls: []orchestrator.Call{{Tool: tools.SubmitEntry, Args: args}},
	}, nil
}

func (p RuleParser) command(text string) (orchestrator.Proposal, bool) {
	if m := resolveRe.FindStringSubmatch(text); m != nil {
		args, _ := json.Marshal(map[string]string{"phrase": strings.TrimSpace(m[1])})
		return orchestrator.Proposal{
			Reply: "Resolving " + strings.TrimSpace(m[1]) + ".",
			Calls: []orchestrator.Call{{Tool: tools.ResolveDate, Args: args}},
		}, true
	}

	norm := strings.ToLower(strings.TrimRight(text, ".!? "))
	call := func(names ...string) []orchestrator.Call {
		out := make([]orchestrator.Call, 0, len(names))
		for _, n := range names {
			out = append(out, orchestrator.Call{Tool: n, Args: json.RawMessage(`{}`)})
		}
		return out
	}
	switch norm {
	case "done", "finish", "finished", "that's all", "that's it", "export", "export csv", "export timesheet":
		return orchestrator.Proposal{Reply: "Exporting the timesheet.", Calls: call(tools.ExportCSV)}, true
	case "export labor", "export labor csv":
		return orchestrator.Proposal{Reply: "Exporting labor records.", Calls: call(tools.ExportLaborCSV)}, true
	case "export materials", "export material", "export materials csv":
		return orchestrator.Proposal{Reply: "Exporting material records.", Calls: call(tools.ExportMaterialsCSV)}, true
	case "export all":
		return orchestrator.Proposal{
			Reply: "Exporting every record set.",
			Calls: call(tools.ExportCSV, tools.ExportLaborCSV, tools.ExportMaterialsCSV),
		}, true
	case "company info", "list company info", "who", "roster", "jobsites", "company":
		return orchestrator.Proposal{Reply: "Here is the company configuration.", Calls: call(tools.ListCompanyInfo)}, true
	}
	return orchestrator.Proposal{}, false
}

func describe(d Draft) string {
	var b strings.Builder
	b.WriteString("Recording")
	if d.Hours != "" {
		fmt.Fprintf(&b, " %sh", d.Hours)
	}
	if d.Employee != "" {
		fmt.Fprintf(&b, " for %s", d.Employee)
	}
	if d.Date != "" {
		fmt.Fprintf(&b, " on %s", d.Date)
	}
	if d.Project != "" {
		fmt.Fprintf(&b, " at %s", d.Project)
	}
	b.WriteString(".")
	return b.String()
}
