package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You help staff of a textile trading business fill in invoice fields.
Given a partial entry and a list of known values, reply with a JSON object
{"suggestions": [...]} holding the known values the user most likely means,
best match first. Only return values from the list. Return an empty array
when nothing fits.`

// OpenAICompleter asks a chat model to rank the candidates.
type OpenAICompleter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAICompleter(client *openai.Client, model string, timeout time.Duration) *OpenAICompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenAICompleter{client: client, model: model, timeout: timeout}
}

type completionResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (c *OpenAICompleter) Complete(ctx context.Context, partial string, candidates []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Partial entry: %q\nKnown values:\n", partial)
	for _, cand := range candidates {
		fmt.Fprintf(&prompt, "- %s\n", cand)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.String(),
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "suggest: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("suggest: no completion choices")
	}

	var out completionResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, errors.Wrap(err, "suggest: parse completion")
	}
	return keepKnown(out.Suggestions, candidates), nil
}
