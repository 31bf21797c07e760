package agent

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scof256/hellodoctor-sub006/internal/intake"
)

// Client calls the chat completion API that drives the intake conversation.
// It returns raw text of arbitrary format; the validator deals with whatever
// comes back.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient constructs a chat client. Model defaults to gpt-4o-mini when
// empty.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate sends the persona system prompt plus the conversation so far and
// returns the model's raw reply text.
func (c *Client) Generate(ctx context.Context, currentAgent intake.AgentRole, history []intake.Message, userMessage string) (string, error) {
	if c.client == nil {
		return "", errors.New("model client not initialized")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+3)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: "Current persona: " + string(currentAgent),
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
