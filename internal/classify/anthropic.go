// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// maxResponseTokens is enough for the longest label; the answer is a
// single category name.
const maxResponseTokens = 64

// ClaudeBackend classifies prompts with the Anthropic Messages API.
type ClaudeBackend struct {
	client sdk.Client
	model  string
}

// NewClaudeBackend creates a backend for model. Extra request options are
// applied after the API key, so tests can point the client at a local
// server.
func NewClaudeBackend(apiKey, model string, opts ...option.RequestOption) *ClaudeBackend {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeBackend{
		client: sdk.NewClient(all...),
		model:  model,
	}
}

// Classify sends prompt as a single user message and returns the first
// text block of the reply.
func (c *ClaudeBackend) Classify(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxResponseTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in Claude API response")
}
