package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model  openai.ChatModel
	client *openai.Client
}

const (
	defaultChatTimeout     = 30 * time.Second
	defaultChatTemperature = 0.2

	systemPrompt = "You are the customer support assistant of a company CRM. " +
		"Answer in the customer's language, briefly and politely, using only the provided company documents. " +
		"If the documents do not contain the answer, say so and offer to connect the customer with an agent."
)

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(apiKey string, model openai.ChatModel, opts ...option.RequestOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIClient{
		model:  model,
		client: &cli,
	}, nil
}

func (c *OpenAIClient) Model() string { return string(c.model) }

func (c *OpenAIClient) Answer(ctx context.Context, question, contextText string) (string, float32, error) {
	if c == nil || c.client == nil {
		return "", 0, fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	defer cancel()

	if contextText == "" {
		contextText = "(no matching documents)"
	}
	messages := buildMessages(
		systemPrompt,
		fmt.Sprintf("Company documents:\n%s\n\nCustomer message: %s", contextText, question),
	)
	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(defaultChatTemperature),
	})
	if err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", 0, fmt.Errorf("openai: no choices returned")
	}
	answer := resp.Choices[0].Message.Content
	return answer, deriveConfidence(answer), nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}

// deriveConfidence returns a simple heuristic confidence based on answer length.
// This is not a model-provided probability; it just scales with content size.
func deriveConfidence(answer string) float32 {
	if answer == "" {
		return 0
	}
	score := 0.5 + 0.5*math.Tanh(float64(len(answer))/200.0)
	return float32(score)
}
