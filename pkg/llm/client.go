// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cora-trainer-go/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 以 role-based 消息与可选生成参数调用聊天接口，返回完整回复与 token 用量。
	Chat(ctx context.Context, messages []Message, gen *GenerationParams) (*Completion, error)
	// Model 返回当前使用的模型（Azure 下为部署名）。
	Model() string
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	// JSONSchema 非空时要求模型按严格 JSON Schema 输出。
	JSONSchema *JSONSchema
}

// JSONSchema 描述结构化输出的格式约束。
type JSONSchema struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// Usage 是一次调用的 token 计数。
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Completion 是一次非流式聊天调用的结果。
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

// ErrEmptyResponse is returned when the API answers without any choice content.
var ErrEmptyResponse = errors.New("llm: empty response")

type openAIClient struct {
	cfg    config.LLMConfig
	client openai.Client
}

// NewClient creates a new LLM client based on the provider in the config.
// SDK 自带的重试被关闭：生成调用不是幂等读操作，失败由调用方的降级逻辑处理。
func NewClient(cfg config.LLMConfig) Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	switch cfg.Provider {
	case "azure":
		opts = append(opts,
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	default:
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}
	return &openAIClient{cfg: cfg, client: openai.NewClient(opts...)}
}

func (c *openAIClient) Model() string {
	return c.cfg.Model
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (*Completion, error) {
	if len(messages) == 0 {
		return nil, errors.New("llm: no messages to send")
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.cfg.Model),
		Messages: toChatMessages(messages),
	}
	if gen != nil {
		if gen.Temperature != nil {
			params.Temperature = openai.Float(*gen.Temperature)
		}
		if gen.TopP != nil {
			params.TopP = openai.Float(*gen.TopP)
		}
		if gen.MaxTokens != nil {
			params.MaxTokens = openai.Int(int64(*gen.MaxTokens))
		}
		if gen.JSONSchema != nil {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:        gen.JSONSchema.Name,
						Description: openai.String(gen.JSONSchema.Description),
						Schema:      gen.JSONSchema.Schema,
						Strict:      openai.Bool(true),
					},
				},
			}
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
