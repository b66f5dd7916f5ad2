package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Stream yields completion fragments in order. Recv returns io.EOF after the last fragment.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Completer starts a streamed completion for a message history.
type Completer interface {
	Stream(ctx context.Context, messages []Message) (Stream, error)
}

// OpenAICompleter streams chat completions from an OpenAI-compatible endpoint.
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAICompleter creates a completer for model at baseURL (empty means api.openai.com).
func NewOpenAICompleter(baseURL, apiKey, model string, maxTokens int) (*OpenAICompleter, error) {
	if model == "" {
		return nil, errors.New("llm: no model configured")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Stream opens a streaming chat completion.
func (c *OpenAICompleter) Stream(ctx context.Context, messages []Message) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		Messages:  make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm (%s): %w", c.model, err)
	}
	return &openaiStream{stream: stream, model: c.model}, nil
}

type openaiStream struct {
	stream *openai.ChatCompletionStream
	model  string
}

func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("llm (%s): %w", s.model, err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}
