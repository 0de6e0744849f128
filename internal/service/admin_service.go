package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/events"
	"cora-trainer-go/pkg/log"

	"github.com/google/uuid"
)

// ErrAnalyticsDisabled 表示分析索引未配置。
var ErrAnalyticsDisabled = errors.New("score analytics is not configured")

// DemoUsers 是种子数据使用的示例账户。
var DemoUsers = []string{"testuser1@example.com", "testuser2@example.com"}

const demoConversationsPerUser = 5

// SeedResult 是一条种子记录的写入结果。
type SeedResult struct {
	User           string `json:"user"`
	Conversation   int    `json:"conversation"`
	ConversationID string `json:"conversation_id"`
	Total          int    `json:"total"`
	Success        bool   `json:"success"`
}

// ScoreSearcher 是分析索引的检索接口。
type ScoreSearcher interface {
	SearchScores(ctx context.Context, q model.ScoreSearchQuery) ([]model.ScoreDocument, int64, error)
}

// AdminService 接口定义了管理员相关的业务操作。
type AdminService interface {
	SeedDemoData(ctx context.Context) []SeedResult
	SearchScores(ctx context.Context, q model.ScoreSearchQuery) ([]model.ScoreDocument, int64, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	scores    ScoreService
	searcher  ScoreSearcher
	publisher ScoreEventPublisher

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAdminService 创建一个新的 AdminService 实例。searcher 与 publisher 可为 nil。
func NewAdminService(scores ScoreService, searcher ScoreSearcher, publisher ScoreEventPublisher) AdminService {
	return &adminService{
		scores:    scores,
		searcher:  searcher,
		publisher: publisher,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SeedDemoData 为示例账户写入一组逐步提高的评分记录，用于演示历史趋势。
func (s *adminService) SeedDemoData(ctx context.Context) []SeedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]SeedResult, 0, len(DemoUsers)*demoConversationsPerUser)
	for _, user := range DemoUsers {
		for i := 0; i < demoConversationsPerUser; i++ {
			core := s.demoScore(i)
			id := uuid.NewString()
			count := 8 + s.rnd.Intn(18)
			ok := s.scores.Save(ctx, user, id, model.AuthFederated, core, count)
			if ok {
				s.publishSeed(ctx, user, id, core, count)
			}
			results = append(results, SeedResult{
				User:           user,
				Conversation:   i + 1,
				ConversationID: id,
				Total:          core.TotalScore,
				Success:        ok,
			})
		}
	}
	return results
}

// publishSeed 把种子记录同样送入评分事件流，分析索引与历史保持一致。
func (s *adminService) publishSeed(ctx context.Context, user, id string, core model.ScoreCore, count int) {
	if s.publisher == nil {
		return
	}
	now := time.Now().UTC()
	event := events.ScoreRecordedEvent{
		EventID:    uuid.NewString(),
		Mood:       string(model.MoodNeutral),
		OccurredAt: now,
		Record: model.ScoreRecord{
			UserKey:        user,
			ConversationID: id,
			CreatedAt:      now,
			AuthMethod:     model.AuthFederated,
			MessageCount:   count,
			ScoreCore:      core,
		},
	}
	if err := s.publisher.PublishScoreEvent(ctx, event); err != nil {
		log.Warnf("[AdminService] 发布种子评分事件失败, id=%s: %v", id, err)
	}
}

// demoScore 生成第 step 次练习的评分，分数随 step 增长并带少量随机波动，始终落在 [1,5]。
func (s *adminService) demoScore(step int) model.ScoreCore {
	criterion := func() int {
		return clampScore(2 + step/2 + s.rnd.Intn(2))
	}
	scores := model.CriteriaScores{
		Professionalism:   criterion(),
		Communication:     criterion(),
		ProblemResolution: criterion(),
		Empathy:           criterion(),
		Efficiency:        criterion(),
	}
	total := scores.Sum()
	improvement := "Continue practicing"
	if total >= 22 {
		improvement = "Excellent work"
	}
	return model.ScoreCore{
		Scores:          scores,
		TotalScore:      total,
		Strengths:       []string{"Good performance", "Steady improvement"},
		Improvements:    []string{improvement},
		OverallFeedback: fmt.Sprintf("Score: %d/%d", total, model.MaxCriterionScore*model.CriteriaCount),
	}
}

func clampScore(n int) int {
	if n < model.MinCriterionScore {
		return model.MinCriterionScore
	}
	if n > model.MaxCriterionScore {
		return model.MaxCriterionScore
	}
	return n
}

// SearchScores 在分析索引中检索评分。
func (s *adminService) SearchScores(ctx context.Context, q model.ScoreSearchQuery) ([]model.ScoreDocument, int64, error) {
	if s.searcher == nil {
		return nil, 0, ErrAnalyticsDisabled
	}
	return s.searcher.SearchScores(ctx, q)
}
