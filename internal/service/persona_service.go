// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/llm"
)

// ErrEngine 表示 persona 模型调用失败。调用方应以 ApologyMessage 代替回复，不做重试。
var ErrEngine = errors.New("persona engine failure")

// ApologyMessage 是 persona 生成失败时展示给用户的固定文本。
const ApologyMessage = "I apologize, but I'm having trouble processing your request right now."

const (
	emotionalStateHeader = "\n\nCUSTOMER EMOTIONAL STATE: "
	openingSuffix        = " Start the conversation naturally as a customer would when contacting support."
)

// PersonaReply 是模拟客户的一条回复。
type PersonaReply struct {
	Content  string
	Metadata model.MessageMetadata
}

// AgentInfo 描述当前配置的模拟客户。
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`
	Status      string `json:"status"`
}

// PersonaService 定义了模拟客户回复生成的接口。
type PersonaService interface {
	Generate(ctx context.Context, transcript []model.ChatMessage, mood model.Mood, triggerText string, isOpening bool) (*PersonaReply, error)
	AgentInfo() AgentInfo
}

type personaService struct {
	llmClient   llm.Client
	agent       config.AgentConfig
	temperature float64
	maxTokens   int
}

// NewPersonaService 创建一个新的 PersonaService 实例。
func NewPersonaService(llmClient llm.Client, agent config.AgentConfig, llmCfg config.LLMConfig) PersonaService {
	return &personaService{
		llmClient:   llmClient,
		agent:       agent,
		temperature: llmCfg.Temperature,
		maxTokens:   llmCfg.MaxTokens,
	}
}

// Generate 以当前对话与情绪生成模拟客户的下一句话。
// transcript 不应包含 triggerText，triggerText 总是作为最后一条 user 消息发送。
func (s *personaService) Generate(ctx context.Context, transcript []model.ChatMessage, mood model.Mood, triggerText string, isOpening bool) (*PersonaReply, error) {
	messages := s.buildMessages(transcript, mood, triggerText, isOpening)
	completion, err := s.llmClient.Chat(ctx, messages, s.generationParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return &PersonaReply{
		Content: completion.Content,
		Metadata: model.MessageMetadata{
			AgentName: s.agent.Name,
			Model:     completion.Model,
			Usage: model.TokenUsage{
				PromptTokens:     completion.Usage.PromptTokens,
				CompletionTokens: completion.Usage.CompletionTokens,
				TotalTokens:      completion.Usage.TotalTokens,
			},
		},
	}, nil
}

func (s *personaService) buildMessages(transcript []model.ChatMessage, mood model.Mood, triggerText string, isOpening bool) []llm.Message {
	directive := mood.Directive()
	if isOpening {
		directive += " " + triggerText + openingSuffix
	}
	var sys strings.Builder
	sys.WriteString(s.agent.SystemPrompt)
	sys.WriteString(emotionalStateHeader)
	sys.WriteString(directive)

	msgs := make([]llm.Message, 0, len(transcript)+2)
	msgs = append(msgs, llm.Message{Role: model.RoleSystem, Content: sys.String()})
	for _, m := range transcript {
		if m.Role == model.RoleSystem {
			continue
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	// 开场时触发语只作为场景放进系统指令，不作为用户发言
	if !isOpening {
		msgs = append(msgs, llm.Message{Role: model.RoleUser, Content: triggerText})
	}
	return msgs
}

func (s *personaService) generationParams() *llm.GenerationParams {
	t := s.temperature
	m := s.maxTokens
	return &llm.GenerationParams{Temperature: &t, MaxTokens: &m}
}

// AgentInfo 返回模拟客户的名称、描述与模型。
func (s *personaService) AgentInfo() AgentInfo {
	info := AgentInfo{Name: s.agent.Name, Description: s.agent.Description, Status: "inactive"}
	if s.llmClient != nil {
		info.Model = s.llmClient.Model()
		info.Status = "active"
	}
	return info
}
