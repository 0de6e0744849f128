package service

import (
	"context"
	"time"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/pkg/events"
	"cora-trainer-go/pkg/log"

	"github.com/google/uuid"
)

// TranscriptArchiver 把分析完成的对话写入归档。
type TranscriptArchiver interface {
	Put(ctx context.Context, record model.TranscriptRecord) error
}

// ScoreEventPublisher 发布评分事件。
type ScoreEventPublisher interface {
	PublishScoreEvent(ctx context.Context, event events.ScoreRecordedEvent) error
}

// AnalysisResult 是一次分析请求的结果。
type AnalysisResult struct {
	model.ScoreCore
	ConversationID string `json:"conversation_id"`
	Persisted      bool   `json:"persisted"`
}

// ConversationService 定义了对话生命周期相关的操作。
type ConversationService interface {
	Start(mood string) (conversationID string, parsed model.Mood)
	Messages(conversationID string) ([]model.ChatMessage, error)
	Analyze(ctx context.Context, conversationID string, principal model.Principal) (*AnalysisResult, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	scoring          ScoringService
	scores           ScoreService
	archive          TranscriptArchiver
	publisher        ScoreEventPublisher
	now              func() time.Time
}

// NewConversationService 创建一个新的 ConversationService 实例。archive 与 publisher 可为 nil。
func NewConversationService(
	conversationRepo repository.ConversationRepository,
	scoring ScoringService,
	scores ScoreService,
	archive TranscriptArchiver,
	publisher ScoreEventPublisher,
) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		scoring:          scoring,
		scores:           scores,
		archive:          archive,
		publisher:        publisher,
		now:              time.Now,
	}
}

// Start 以给定情绪开始一段新对话，未知情绪按 neutral 处理。
func (s *conversationService) Start(mood string) (string, model.Mood) {
	parsed := model.ParseMood(mood)
	id := s.conversationRepo.Start(parsed)
	log.Infof("[ConversationService] 新对话已创建, id=%s, mood=%s", id, parsed)
	return id, parsed
}

// Messages 返回对话的全部消息。
func (s *conversationService) Messages(conversationID string) ([]model.ChatMessage, error) {
	conv, err := s.conversationRepo.Get(conversationID)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

// Analyze 评估对话、保存评分并结束对话。
// 评估失败时得到兜底评分；保存失败只体现在 Persisted 上，不影响返回的评分。
func (s *conversationService) Analyze(ctx context.Context, conversationID string, principal model.Principal) (*AnalysisResult, error) {
	conv, err := s.conversationRepo.Get(conversationID)
	if err != nil {
		return nil, err
	}

	core := s.scoring.Evaluate(ctx, conv.Messages)
	persisted := s.scores.Save(ctx, principal.Identity, conversationID, principal.AuthMethod, core, len(conv.Messages))
	if err := s.conversationRepo.Close(conversationID); err != nil {
		log.Warnf("[ConversationService] 结束对话失败, id=%s: %v", conversationID, err)
	}

	if persisted {
		s.afterSave(ctx, conv, principal, core)
	}
	return &AnalysisResult{ScoreCore: core, ConversationID: conversationID, Persisted: persisted}, nil
}

// afterSave 执行归档与事件发布，失败只记录日志。
func (s *conversationService) afterSave(ctx context.Context, conv *model.Conversation, principal model.Principal, core model.ScoreCore) {
	now := s.now().UTC()
	userKey := model.NormalizeUserKey(principal.Identity)

	if s.archive != nil {
		record := model.TranscriptRecord{
			ConversationID: conv.ID,
			UserKey:        userKey,
			Mood:           conv.Mood,
			Messages:       conv.Messages,
			Score:          core,
			ArchivedAt:     now,
		}
		if err := s.archive.Put(ctx, record); err != nil {
			log.Warnf("[ConversationService] 对话归档失败, id=%s: %v", conv.ID, err)
		}
	}

	if s.publisher != nil {
		event := events.ScoreRecordedEvent{
			EventID:    uuid.NewString(),
			Mood:       string(conv.Mood),
			OccurredAt: now,
			Record: model.ScoreRecord{
				UserKey:        userKey,
				ConversationID: conv.ID,
				CreatedAt:      now,
				AuthMethod:     principal.AuthMethod,
				MessageCount:   len(conv.Messages),
				ScoreCore:      core,
			},
		}
		if err := s.publisher.PublishScoreEvent(ctx, event); err != nil {
			log.Warnf("[ConversationService] 发布评分事件失败, id=%s: %v", conv.ID, err)
		}
	}
}
