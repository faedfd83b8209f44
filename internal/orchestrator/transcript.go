package orchestrator

import (
	"encoding/json"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one line of the conversation kept for the parser.
type Message struct {
	Role    string `json:"role"`
	Tool    string `json:"tool,omitempty"`
	Content string `json:"content"`
}

func (o *Orchestrator) record(m Message) {
	if strings.TrimSpace(m.Content) == "" {
		return
	}
	o.transcript = append(o.transcript, m)
}

// recordTurn appends the tool results and the assistant's reply.
func (o *Orchestrator) recordTurn(res TurnResult) {
	for _, r := range res.Results {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		o.record(Message{Role: RoleTool, Tool: r.Tool, Content: string(raw)})
	}
	reply := strings.TrimSpace(strings.Join([]string{res.Reply, res.FollowUp}, "\n\n"))
	o.record(Message{Role: RoleAssistant, Content: reply})
}

func (o *Orchestrator) recentTranscript() []Message {
	n := len(o.transcript)
	start := 0
	if n > o.opts.MaxTranscript {
		start = n - o.opts.MaxTranscript
	}
	return append([]Message(nil), o.transcript[start:]...)
}
