package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by an LLM request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// ExecutionMeta holds operational metadata for a single engine or extractor run.
type ExecutionMeta struct {
	Operation string
	Usage     TokenUsage
	Latency   time.Duration
}
