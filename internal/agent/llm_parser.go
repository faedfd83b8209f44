// Package agent holds the parsing layer adapters that turn a supervisor's
// utterance into tool-call proposals for the orchestrator.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crewsheet/internal/llm"
	"crewsheet/internal/orchestrator"
)

var ErrNoClient = errors.New("agent: llm client is nil")

// LLMParser asks a model for a proposal.
type LLMParser struct {
	Client llm.Client
	// Instructions overrides the base prompt; empty means Instructions.
	Instructions string
	Logger       *log.Logger
}

func NewLLMParser(client llm.Client, logger *log.Logger) *LLMParser {
	return &LLMParser{Client: client, Logger: logger}
}

func (p *LLMParser) Propose(ctx context.Context, in orchestrator.ParseInput) (orchestrator.Proposal, error) {
	if p == nil || p.Client == nil {
		return orchestrator.Proposal{}, ErrNoClient
	}
	base := p.Instructions
	if base == "" {
		base = Instructions
	}
	prompt, err := BuildPrompt(base, in)
	if err != nil {
		return orchestrator.Proposal{}, err
	}
	raw, err := p.Client.GenerateJSON(ctx, prompt, map[string]any{"utterance": in.Utterance})
	if err != nil {
		return orchestrator.Proposal{}, fmt.Errorf("agent: generate: %w", err)
	}
	prop, err := ParseProposal(raw)
	if err != nil {
		p.logger().Printf("agent: unusable response from %s: %v", p.Client.Name(), err)
		return orchestrator.Proposal{}, err
	}
	return prop, nil
}

func (p *LLMParser) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}
