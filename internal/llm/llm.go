package llm

import "context"

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	// Answer replies to a customer message using contextText as the only
	// knowledge source. The float is a heuristic confidence in [0, 1].
	Answer(ctx context.Context, question, contextText string) (string, float32, error)
	// Model names the model used for replies.
	Model() string
}
