// Package llm asks an OpenAI-compatible model to explain why students chose
// the wrong answers of a question.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examreports/internal/llm/prompts"
	"github.com/pavelanni/examreports/internal/model"
)

// ErrNoWrongAnswers is returned when there is nothing to explain.
var ErrNoWrongAnswers = errors.New("question has no wrong answers")

// Insight is the model's reading of a wrong-answer distribution.
type Insight struct {
	Summary        string   `json:"summary"`
	Misconceptions []string `json:"misconceptions"`
	Suggestions    []string `json:"suggestions"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. An unknown variant falls back to brief.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	v := prompts.VariantBrief
	if prompts.IsValidVariant(variant) {
		v = prompts.Variant(variant)
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: v,
	}, nil
}

// ExplainWrongAnswers returns the likely misconceptions behind records, the
// wrong answers chosen for question.
func (c *Client) ExplainWrongAnswers(ctx context.Context, question model.QuestionSummary, records []model.WrongAnswerRecord) (*Insight, error) {
	if len(records) == 0 {
		return nil, ErrNoWrongAnswers
	}
	prompt, err := prompts.BuildInsightPrompt(c.variant, question, records)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question", question.ID, "raw", raw)
	return parseInsight(raw)
}

func parseInsight(raw string) (*Insight, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var in Insight
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if in.Misconceptions == nil {
		in.Misconceptions = []string{}
	}
	if in.Suggestions == nil {
		in.Suggestions = []string{}
	}
	return &in, nil
}
