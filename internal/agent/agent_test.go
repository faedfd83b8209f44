package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"crewsheet/internal/company"
	"crewsheet/internal/dates"
	"crewsheet/internal/llm"
	"crewsheet/internal/orchestrator"
	"crewsheet/internal/tools"
)

func TestParseFreeform(t *testing.T) {
	cases := []struct {
		in   string
		want Draft
	}{
		{
			in:   "Alex Doe 7.5 hours on 2025-09-01 for Project A notes: framing, level 2",
			want: Draft{Employee: "Alex Doe", Date: "2025-09-01", Hours: "7.5", Project: "Project A", Notes: "framing, level 2"},
		},
		{
			in:   "yesterday Bea 8h for M567",
			want: Draft{Employee: "Bea", Date: "yesterday", Hours: "8", Project: "M567"},
		},
		{
			in:   "Bea Smith worked 6 hrs for Main Street on last friday",
			want: Draft{Employee: "Bea Smith", Date: "last friday", Hours: "6", Project: "Main Street"},
		},
		{
			in:   "Alex 9 on September 9th, 2025",
			want: Draft{Employee: "Alex", Date: "September 9th, 2025", Hours: "9"},
		},
		{
			in:   "notes: nothing else",
			want: Draft{Notes: "nothing else"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, ParseFreeform(tc.in))
		})
	}
}

func TestLeadingNameCapsAtThreeWords(t *testing.T) {
	require.Equal(t, "Mary Ann De", leadingName("Mary Ann De Souza 8 hours"))
}

func TestRuleParserSubmitEntry(t *testing.T) {
	p := RuleParser{Dates: dates.Resolver{BaseDate: "2025-09-10"}}
	prop, err := p.Propose(context.Background(), orchestrator.ParseInput{Utterance: "Alex Doe 8 hours yesterday for M567"})
	require.NoError(t, err)
	require.Len(t, prop.Calls, 1)
	require.Equal(t, tools.SubmitEntry, prop.Calls[0].Tool)

	var args map[string]any
	require.NoError(t, json.Unmarshal(prop.Calls[0].Args, &args))
	require.Equal(t, "Alex Doe", args["employee"])
	require.Equal(t, "2025-09-09", args["date"])
	require.Equal(t, float64(8), args["hours"])
	require.Equal(t, "M567", args["project"])
	require.NotContains(t, args, "notes")
	require.Contains(t, prop.Reply, "Alex Doe")
}

func TestRuleParserLeavesUnresolvedDatePhrase(t *testing.T) {
	p := RuleParser{Dates: dates.Resolver{BaseDate: "2025-09-10"}}
	prop, err := p.Propose(context.Background(), orchestrator.ParseInput{Utterance: "Alex 8h on 2025-02-30"})
	require.NoError(t, err)
	require.Len(t, prop.Calls, 1)
	require.Contains(t, string(prop.Calls[0].Args), `"date":"2025-02-30"`)
}

func TestRuleParserCommands(t *testing.T) {
	cases := map[string][]string{
		"done":                  {tools.ExportCSV},
		"Export.":               {tools.ExportCSV},
		"export labor":          {tools.ExportLaborCSV},
		"export materials":      {tools.ExportMaterialsCSV},
		"export all":            {tools.ExportCSV, tools.ExportLaborCSV, tools.ExportMaterialsCSV},
		"company info":          {tools.ListCompanyInfo},
		"what date is tomorrow": {tools.ResolveDate},
	}
	p := RuleParser{}
	for text, want := range cases {
		prop, err := p.Propose(context.Background(), orchestrator.ParseInput{Utterance: text})
		require.NoError(t, err, text)
		got := make([]string, 0, len(prop.Calls))
		for _, c := range prop.Calls {
			got = append(got, c.Tool)
			require.True(t, json.Valid(c.Args), text)
		}
		require.Equal(t, want, got, text)
	}
}

func TestRuleParserNothingUsable(t *testing.T) {
	prop, err := RuleParser{}.Propose(context.Background(), orchestrator.ParseInput{Utterance: "hello there"})
	require.NoError(t, err)
	require.Empty(t, prop.Calls)
	require.Equal(t, Hint, prop.Reply)
}

func TestParseProposalShapes(t *testing.T) {
	p, err := ParseProposal(json.RawMessage(`{"reply":"ok","calls":[{"tool":"submit_entry","args":{"employee":"Alex"}}]}`))
	require.NoError(t, err)
	require.Equal(t, "ok", p.Reply)
	require.Equal(t, "submit_entry", p.Calls[0].Tool)
	require.JSONEq(t, `{"employee":"Alex"}`, string(p.Calls[0].Args))

	p, err = ParseProposal(json.RawMessage(`{"tool_name":"export_csv","tool_input":"{}"}`))
	require.NoError(t, err)
	require.Len(t, p.Calls, 1)
	require.Equal(t, "export_csv", p.Calls[0].Tool)
	require.JSONEq(t, `{}`, string(p.Calls[0].Args))

	p, err = ParseProposal(json.RawMessage(`[{"name":"list_company_info"}]`))
	require.NoError(t, err)
	require.Equal(t, "list_company_info", p.Calls[0].Tool)

	p, err = ParseProposal(json.RawMessage(`{"reply":"Which date?"}`))
	require.NoError(t, err)
	require.Empty(t, p.Calls)

	_, err = ParseProposal(json.RawMessage(`{"calls":[{"args":{}}]}`))
	require.Error(t, err)

	_, err = ParseProposal(json.RawMessage(`{"calls":[{"tool":"x","args":"not json"}]}`))
	require.Error(t, err)
}

func TestLLMParserPromptCarriesContext(t *testing.T) {
	cfg, err := company.Parse([]byte(`{"company": {"name": "Acme"}, "employees": ["Alex Doe"], "jobsites": [{"code": "M567", "name": "Main Street"}]}`))
	require.NoError(t, err)

	client := llm.NewFakeClient(`{"reply":"Recorded.","calls":[{"tool":"submit_entry","args":{"employee":"Alex Doe","date":"today","hours":8,"project":"M567"}}]}`)
	var logs bytes.Buffer
	p := NewLLMParser(client, log.New(&logs, "", 0))

	prop, err := p.Propose(context.Background(), orchestrator.ParseInput{
		Utterance: "Alex did a full day at Main Street",
		Transcript: []orchestrator.Message{
			{Role: orchestrator.RoleUser, Content: "hi"},
			{Role: orchestrator.RoleTool, Tool: "list_company_info", Content: `{"status":"ok"}`},
		},
		Tools:   tools.Specs(),
		Company: tools.Snapshot(cfg),
	})
	require.NoError(t, err)
	require.Equal(t, "Recorded.", prop.Reply)
	require.Len(t, prop.Calls, 1)

	require.Len(t, client.Prompts, 1)
	prompt := client.Prompts[0]
	for _, want := range []string{
		"[TOOLS]", `"name":"bulk_submit_entries"`,
		"[COMPANY]", `"company":"Acme"`, "Alex Doe",
		"[TRANSCRIPT]", "user: hi", "tool(list_company_info):",
		"[SUPERVISOR]\nAlex did a full day at Main Street",
		"[RESPONSE FORMAT]",
	} {
		require.Contains(t, prompt, want)
	}
	require.Empty(t, logs.String())
}

func TestLLMParserErrors(t *testing.T) {
	_, err := (&LLMParser{}).Propose(context.Background(), orchestrator.ParseInput{})
	require.ErrorIs(t, err, ErrNoClient)

	client := llm.NewFakeClient(`{"calls":[{"args":{}}]}`)
	var logs bytes.Buffer
	_, err = NewLLMParser(client, log.New(&logs, "", 0)).Propose(context.Background(), orchestrator.ParseInput{Utterance: "x"})
	require.Error(t, err)
	require.True(t, strings.Contains(logs.String(), "agent: unusable response from FakeLLM"))

	bad := llm.NewFakeClient(`not json`)
	_, err = NewLLMParser(bad, log.New(&logs, "", 0)).Propose(context.Background(), orchestrator.ParseInput{Utterance: "x"})
	require.True(t, errors.Is(err, llm.ErrInvalidJSON))
}

func TestRuleParserDrivesOrchestrator(t *testing.T) {
	o := orchestrator.New(orchestrator.Options{
		SessionID: "s1",
		Dates:     dates.Resolver{BaseDate: "2025-09-10"},
		Parser:    RuleParser{Dates: dates.Resolver{BaseDate: "2025-09-10"}},
		Logger:    log.New(&bytes.Buffer{}, "", 0),
	})
	res, err := o.HandleTurn(context.Background(), "Alex Doe 7.5 hours on 2025-09-01 for Project A notes: framing")
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, orchestrator.AwaitingInput, res.State)

	res, err = o.HandleTurn(context.Background(), "done")
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Len(t, o.Store().Entries(), 1)
	require.Equal(t, "Partial day — 0.5h short of 8h", o.Store().Entries()[0].Annotation(decimal.NewFromInt(8)).String())
}

func TestParseProposalToleratesFencesAndQuoting(t *testing.T) {
	p, err := ParseProposal(json.RawMessage("```json\n{\"reply\":\"ok\",\"calls\":[{\"tool\":\"export_csv\"}]}\n```"))
	require.NoError(t, err)
	require.Equal(t, "export_csv", p.Calls[0].Tool)

	p, err = ParseProposal(json.RawMessage(`"{\"reply\":\"Which job?\",\"calls\":[]}"`))
	require.NoError(t, err)
	require.Equal(t, "Which job?", p.Reply)
	require.Empty(t, p.Calls)
}
