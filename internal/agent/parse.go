package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"crewsheet/internal/orchestrator"
	"crewsheet/internal/util/jsonutil"
)

// envelope accepts the documented {"reply","calls"} shape and the single
// call shapes models tend to fall back to.
type envelope struct {
	Reply     string          `json:"reply,omitempty"`
	Message   string          `json:"message,omitempty"`
	Calls     []rawCall       `json:"calls,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
}

type rawCall struct {
	Tool      string          `json:"tool"`
	Name      string          `json:"name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ParseProposal decodes a model response into a proposal. A JSON array is
// read as a bare list of calls.
func ParseProposal(raw json.RawMessage) (orchestrator.Proposal, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return orchestrator.Proposal{}, fmt.Errorf("agent: empty response")
	}
	trimmed, err := jsonutil.Clean(raw)
	if err != nil {
		return orchestrator.Proposal{}, fmt.Errorf("agent: decode response: %w", err)
	}
	if trimmed[0] == '[' {
		var calls []rawCall
		if err := json.Unmarshal(trimmed, &calls); err != nil {
			return orchestrator.Proposal{}, fmt.Errorf("agent: decode calls: %w", err)
		}
		return proposalFrom("", calls)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return orchestrator.Proposal{}, fmt.Errorf("agent: decode response: %w", err)
	}
	reply := env.Reply
	if reply == "" {
		reply = env.Message
	}
	calls := env.Calls
	if len(calls) == 0 {
		name := firstNonEmpty(env.Tool, env.ToolName)
		if name != "" {
			calls = []rawCall{{Tool: name, Args: firstRaw(env.Args, env.ToolInput)}}
		}
	}
	return proposalFrom(reply, calls)
}

func proposalFrom(reply string, calls []rawCall) (orchestrator.Proposal, error) {
	p := orchestrator.Proposal{Reply: strings.TrimSpace(reply), Calls: make([]orchestrator.Call, 0, len(calls))}
	for i, c := range calls {
		name := strings.TrimSpace(firstNonEmpty(c.Tool, c.Name))
		if name == "" {
			return orchestrator.Proposal{}, fmt.Errorf("agent: call %d has no tool name", i)
		}
		args, err := normalizeArgs(firstRaw(c.Args, c.Arguments))
		if err != nil {
			return orchestrator.Proposal{}, fmt.Errorf("agent: call %d (%s): %w", i, name, err)
		}
		p.Calls = append(p.Calls, orchestrator.Call{Tool: name, Args: args})
	}
	return p, nil
}

// normalizeArgs unwraps arguments that arrive as a JSON-encoded string.
func normalizeArgs(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("arguments are not JSON")
	}
	return json.RawMessage(s), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstRaw(vals ...json.RawMessage) json.RawMessage {
	for _, v := range vals {
		if len(bytes.TrimSpace(v)) > 0 {
			return v
		}
	}
	return nil
}
