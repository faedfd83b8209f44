package commands

import (
	"context"
	"log"
	"time"

	"crewsheet/internal/agent"
	"crewsheet/internal/config"
	"crewsheet/internal/dates"
	"crewsheet/internal/llm"
	"crewsheet/internal/orchestrator"
)

// newParser picks the Gemini parser when an API key is configured and the
// rule parser otherwise. The returned func releases the model client.
func newParser(ctx context.Context, cfg config.LLMConfig, resolver dates.Resolver, logger *log.Logger) (orchestrator.Parser, func(), error) {
	if cfg.APIKey == "" {
		logger.Printf("parser: rule-based")
		return agent.RuleParser{Dates: resolver}, func() {}, nil
	}
	gemini, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	client := llm.Wrap(gemini,
		llm.WithLogging(logger),
		llm.Retry(3, 500*time.Millisecond),
		llm.RateLimit(cfg.RPS, cfg.Burst),
	)
	logger.Printf("parser: %s", client.Name())
	return agent.NewLLMParser(client, logger), func() { _ = client.Close() }, nil
}
