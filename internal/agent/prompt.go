package agent

import (
	"bytes"
	"fmt"
	"strings"

	"crewsheet/internal/orchestrator"
	"crewsheet/internal/tools"
	"crewsheet/internal/util/jsonutil"
)

// Instructions is the base system prompt for the timesheet assistant.
const Instructions = `You are a timesheet assistant for construction crews. Turn what the supervisor says into tool calls that record daily time entries, labor activities and material usage.

Rules:
- Each time entry needs employee, date, hours and, when the company has jobsites, a project that matches a jobsite code or name.
- When several employees worked the same day on the same job, use bulk_submit_entries once instead of repeated submit_entry calls. Use partial_overrides for anyone who left early or split the day between sites, and notes_overrides for per-person notes.
- Dates may be passed as the supervisor said them ("yesterday", "last friday", "September 9 2025"); they are resolved server-side. Call resolve_date only when the supervisor asks what date a phrase means.
- Call list_company_info when you need the roster, jobsites, material categories or labor activities. The snapshot below is current.
- Labor records may omit quantity and unit when the activity defines defaults.
- Never invent employees, jobsites or categories that are not configured. If something is missing or ambiguous, ask in "reply" and make no call for that record.
- When the supervisor says they are done, call export_csv (and export_labor_csv / export_materials_csv when labor or material records exist).
- Earlier tool results are in the transcript. If a call failed, ask the supervisor for exactly the fields that were rejected.`

// ResponseFormat describes the JSON reply contract.
const ResponseFormat = `Respond with a single JSON object and nothing else:
{"reply": "<short message to the supervisor>", "calls": [{"tool": "<tool name>", "args": {<arguments matching the tool input_schema>}}]}
Use an empty "calls" array when no tool should run.`

// FormatToolSpecs renders a compact JSON block of tool specs for prompt inclusion.
func FormatToolSpecs(specs []tools.Spec) string {
	if specs == nil {
		specs = []tools.Spec{}
	}
	return encodeBlock(specs)
}

// FormatCompany renders the company snapshot.
func FormatCompany(info tools.CompanyInfo) string {
	return encodeBlock(info)
}

// FormatTranscript renders one line per message, oldest first.
func FormatTranscript(msgs []orchestrator.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case orchestrator.RoleTool:
			fmt.Fprintf(&b, "tool(%s): %s\n", m.Tool, m.Content)
		default:
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	return b.String()
}

// BuildPrompt assembles the instructions, tool specs, company snapshot,
// transcript and the current utterance.
func BuildPrompt(base string, in orchestrator.ParseInput) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("agent: base prompt is empty")
	}
	var buf bytes.Buffer
	buf.WriteString(base)
	buf.WriteString("\n\n[TOOLS]\n")
	buf.WriteString(FormatToolSpecs(in.Tools))
	buf.WriteString("\n[COMPANY]\n")
	buf.WriteString(FormatCompany(in.Company))
	if len(in.Transcript) > 0 {
		buf.WriteString("\n[TRANSCRIPT]\n")
		buf.WriteString(FormatTranscript(in.Transcript))
	}
	buf.WriteString("\n[SUPERVISOR]\n")
	buf.WriteString(in.Utterance)
	buf.WriteString("\n\n[RESPONSE FORMAT]\n")
	buf.WriteString(ResponseFormat)
	return buf.String(), nil
}

func encodeBlock(v any) string {
	out, _ := jsonutil.MarshalNoEscape(v)
	return string(out) + "\n"
}
