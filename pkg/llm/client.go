// Package llm provides a client for an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"paydash-go/internal/config"

	"github.com/sashabaranov/go-openai"
)

// Roles understood by the completion endpoint.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends a conversation to the completion endpoint and returns the generated text.
// It never retries; every failure is reported as a *ServiceError.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, utterance string) (string, error)
	// Stream behaves like Complete but reports every content delta to onDelta as it arrives.
	Stream(ctx context.Context, systemPrompt string, history []Message, utterance string, onDelta func(string) error) (string, error)
}

type openaiClient struct {
	cfg    config.LLMConfig
	client *openai.Client
}

// NewClient creates a completion client from the llm config section.
// httpClient may be nil.
func NewClient(cfg config.LLMConfig, httpClient *http.Client) Client {
	c := &openaiClient{cfg: cfg}
	if cfg.APIKey == "" {
		return c
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	c.client = openai.NewClientWithConfig(oc)
	return c
}

// BuildMessages 组装 system 提示、历史与本轮用户输入。
func BuildMessages(systemPrompt string, history []Message, utterance string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: utterance})
	return msgs
}

func (c *openaiClient) request(systemPrompt string, history []Message, utterance string, stream bool) openai.ChatCompletionRequest {
	msgs := BuildMessages(systemPrompt, history, utterance)
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    oaMsgs,
		MaxTokens:   c.cfg.Generation.MaxTokens,
		Temperature: c.cfg.Generation.Temperature,
		Stream:      stream,
	}
}

func (c *openaiClient) Complete(ctx context.Context, systemPrompt string, history []Message, utterance string) (string, error) {
	if c.client == nil {
		return "", &ServiceError{Kind: KindMissingCredential}
	}
	resp, err := c.client.CreateChatCompletion(ctx, c.request(systemPrompt, history, utterance, false))
	if err != nil {
		return "", &ServiceError{Kind: KindRequestFailed, Err: fmt.Errorf("failed to create chat completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{Kind: KindEmptyContent, Err: errors.New("response has no choices")}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &ServiceError{Kind: KindEmptyContent, Err: errors.New("first choice has no content")}
	}
	return content, nil
}

func (c *openaiClient) Stream(ctx context.Context, systemPrompt string, history []Message, utterance string, onDelta func(string) error) (string, error) {
	if c.client == nil {
		return "", &ServiceError{Kind: KindMissingCredential}
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(systemPrompt, history, utterance, true))
	if err != nil {
		return "", &ServiceError{Kind: KindRequestFailed, Err: fmt.Errorf("failed to open chat stream: %w", err)}
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", &ServiceError{Kind: KindRequestFailed, Err: fmt.Errorf("failed to read from stream: %w", err)}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", fmt.Errorf("failed to forward delta: %w", err)
			}
		}
	}
	if strings.TrimSpace(answer.String()) == "" {
		return "", &ServiceError{Kind: KindEmptyContent, Err: errors.New("stream produced no content")}
	}
	return answer.String(), nil
}
