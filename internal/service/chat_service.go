package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/pkg/log"
)

// ErrInvalidMessage 表示请求缺少对话 ID 或消息内容。
var ErrInvalidMessage = errors.New("missing conversation_id or message")

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// SendMessage 记录用户消息并生成模拟客户的回复。
	// isScenarioPrompt 为 true 时 text 只作为开场触发语，不写入对话记录。
	// persona 失败时返回包装了 ErrEngine 的错误，用户消息仍保留在记录中。
	SendMessage(ctx context.Context, conversationID, text string, isScenarioPrompt bool) (*model.ChatMessage, error)
}

type chatService struct {
	persona          PersonaService
	conversationRepo repository.ConversationRepository
	now              func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(persona PersonaService, conversationRepo repository.ConversationRepository) ChatService {
	return &chatService{
		persona:          persona,
		conversationRepo: conversationRepo,
		now:              time.Now,
	}
}

func (s *chatService) SendMessage(ctx context.Context, conversationID, text string, isScenarioPrompt bool) (*model.ChatMessage, error) {
	if conversationID == "" || strings.TrimSpace(text) == "" {
		return nil, ErrInvalidMessage
	}

	// 1. 取发送前的对话快照，本轮用户消息作为触发语单独发送，不会重复出现
	conv, err := s.conversationRepo.Get(conversationID)
	if err != nil {
		return nil, err
	}

	// 2. 记录用户消息（开场触发语除外）
	if !isScenarioPrompt {
		userMsg := model.ChatMessage{Role: model.RoleUser, Content: text, Timestamp: s.now().UTC()}
		if err := s.conversationRepo.Append(conversationID, userMsg); err != nil {
			return nil, err
		}
	}

	// 3. 生成模拟客户回复
	reply, err := s.persona.Generate(ctx, conv.Messages, conv.Mood, text, isScenarioPrompt)
	if err != nil {
		log.Errorf("[ChatService] 生成回复失败, conversation=%s: %v", conversationID, err)
		if !errors.Is(err, ErrEngine) {
			err = fmt.Errorf("%w: %v", ErrEngine, err)
		}
		return nil, err
	}

	// 4. 记录回复
	metadata := reply.Metadata
	assistantMsg := model.ChatMessage{
		Role:      model.RoleAssistant,
		Content:   reply.Content,
		Timestamp: s.now().UTC(),
		Metadata:  &metadata,
	}
	if err := s.conversationRepo.Append(conversationID, assistantMsg); err != nil {
		return nil, err
	}
	log.Infof("[ChatService] 回复已生成, conversation=%s, tokens=%d", conversationID, metadata.Usage.TotalTokens)
	return &assistantMsg, nil
}
