package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/pkg/log"
)

// DefaultHistoryLimit 是历史列表的默认条数。
const DefaultHistoryLimit = 10

const (
	defaultStoreTimeout = 5 * time.Second
	readRetryBackoff    = 200 * time.Millisecond
)

// ScoreService 定义了评分记录的持久化与查询接口。
// 存储不可用时所有操作降级：Save 返回 false，查询返回空结果，从不向调用方报错。
type ScoreService interface {
	Save(ctx context.Context, userIdentity, conversationID string, authMethod model.AuthMethod, core model.ScoreCore, messageCount int) bool
	GetByUser(ctx context.Context, userIdentity string, limit int) []model.ScoreRecord
	GetOne(ctx context.Context, userIdentity, conversationID string) *model.ScoreRecord
	Available() bool
}

type scoreService struct {
	table   repository.ScoreTable
	timeout time.Duration
	retries int
	backoff time.Duration
	now     func() time.Time
}

// NewScoreService 创建一个新的 ScoreService 实例。table 为 nil 表示存储不可用。
func NewScoreService(table repository.ScoreTable, cfg config.ScoreStoreConfig) ScoreService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	retries := cfg.ReadRetries
	if retries < 0 {
		retries = 0
	}
	return &scoreService{
		table:   table,
		timeout: timeout,
		retries: retries,
		backoff: readRetryBackoff,
		now:     time.Now,
	}
}

func (s *scoreService) Available() bool {
	return s.table != nil
}

// Save 以 (小写身份, 对话 ID) 为键写入评分记录，同键再次写入时覆盖。写操作不重试。
func (s *scoreService) Save(ctx context.Context, userIdentity, conversationID string, authMethod model.AuthMethod, core model.ScoreCore, messageCount int) bool {
	if s.table == nil {
		log.Warnf("[ScoreService] 评分存储不可用，跳过保存 conversation=%s", conversationID)
		return false
	}
	entity, err := toEntity(userIdentity, conversationID, authMethod, core, messageCount, s.now().UTC())
	if err != nil {
		log.Errorf("[ScoreService] 序列化评分记录失败 conversation=%s: %v", conversationID, err)
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.table.Upsert(cctx, entity); err != nil {
		log.Errorf("[ScoreService] 保存评分记录失败 user=%s conversation=%s: %v", entity.PartitionKey, conversationID, err)
		return false
	}
	log.Infof("[ScoreService] 评分记录已保存 user=%s conversation=%s total=%d", entity.PartitionKey, conversationID, core.TotalScore)
	return true
}

// GetByUser 返回用户最近的评分摘要，按时间倒序，最多 limit 条。没有 created_at 的历史行被跳过。
func (s *scoreService) GetByUser(ctx context.Context, userIdentity string, limit int) []model.ScoreRecord {
	if s.table == nil {
		return []model.ScoreRecord{}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	pk := model.NormalizeUserKey(userIdentity)

	var rows []model.ScoreEntity
	err := s.withReadRetry(ctx, "query partition", func(cctx context.Context) error {
		var err error
		rows, err = s.table.QueryPartition(cctx, pk, model.SummaryFields)
		return err
	})
	if err != nil {
		log.Errorf("[ScoreService] 查询评分历史失败 user=%s: %v", pk, err)
		return []model.ScoreRecord{}
	}

	records := make([]model.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		if row.CreatedAt == nil {
			continue
		}
		records = append(records, toSummaryRecord(pk, row))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

// GetOne 返回一条完整的评分记录；不存在或出错时返回 nil。
func (s *scoreService) GetOne(ctx context.Context, userIdentity, conversationID string) *model.ScoreRecord {
	if s.table == nil {
		return nil
	}
	pk := model.NormalizeUserKey(userIdentity)

	var entity *model.ScoreEntity
	err := s.withReadRetry(ctx, "get", func(cctx context.Context) error {
		var err error
		entity, err = s.table.Get(cctx, pk, conversationID)
		return err
	})
	if errors.Is(err, repository.ErrEntityNotFound) {
		return nil
	}
	if err != nil {
		log.Errorf("[ScoreService] 读取评分记录失败 user=%s conversation=%s: %v", pk, conversationID, err)
		return nil
	}
	record := toFullRecord(pk, *entity)
	return &record
}

// withReadRetry 为读操作加上超时与有限次数的线性退避重试；未命中不重试。
func (s *scoreService) withReadRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err = fn(cctx)
		cancel()
		if err == nil || errors.Is(err, repository.ErrEntityNotFound) {
			return err
		}
		log.Warnf("[ScoreService] %s 第 %d 次尝试失败: %v", op, attempt+1, err)
	}
	return err
}

func toEntity(userIdentity, conversationID string, authMethod model.AuthMethod, core model.ScoreCore, messageCount int, at time.Time) (*model.ScoreEntity, error) {
	strengths, err := encodeList(core.Strengths)
	if err != nil {
		return nil, err
	}
	improvements, err := encodeList(core.Improvements)
	if err != nil {
		return nil, err
	}
	return &model.ScoreEntity{
		PartitionKey:      model.NormalizeUserKey(userIdentity),
		RowKey:            conversationID,
		CreatedAt:         &at,
		UserIdentity:      userIdentity,
		AuthMethod:        string(authMethod),
		ConversationID:    conversationID,
		MessageCount:      messageCount,
		TotalScore:        core.TotalScore,
		Professionalism:   core.Scores.Professionalism,
		Communication:     core.Scores.Communication,
		ProblemResolution: core.Scores.ProblemResolution,
		Empathy:           core.Scores.Empathy,
		Efficiency:        core.Scores.Efficiency,
		Strengths:         strengths,
		Improvements:      improvements,
		OverallFeedback:   core.OverallFeedback,
	}, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeList 解析 JSON 文本列表，格式错误时返回空列表。
func decodeList(raw string) []string {
	var items []string
	if raw == "" || json.Unmarshal([]byte(raw), &items) != nil || items == nil {
		return []string{}
	}
	return items
}

func toSummaryRecord(pk string, e model.ScoreEntity) model.ScoreRecord {
	return model.ScoreRecord{
		UserKey:        pk,
		ConversationID: e.RowKey,
		CreatedAt:      e.CreatedAt.UTC(),
		MessageCount:   e.MessageCount,
		ScoreCore: model.ScoreCore{
			Scores:       criteriaOf(e),
			TotalScore:   e.TotalScore,
			Strengths:    []string{},
			Improvements: []string{},
		},
	}
}

func toFullRecord(pk string, e model.ScoreEntity) model.ScoreRecord {
	r := model.ScoreRecord{
		UserKey:        pk,
		ConversationID: e.RowKey,
		AuthMethod:     model.AuthMethod(e.AuthMethod),
		MessageCount:   e.MessageCount,
		ScoreCore: model.ScoreCore{
			Scores:          criteriaOf(e),
			TotalScore:      e.TotalScore,
			Strengths:       decodeList(e.Strengths),
			Improvements:    decodeList(e.Improvements),
			OverallFeedback: e.OverallFeedback,
		},
	}
	if e.CreatedAt != nil {
		r.CreatedAt = e.CreatedAt.UTC()
	}
	return r
}

func criteriaOf(e model.ScoreEntity) model.CriteriaScores {
	return model.CriteriaScores{
		Professionalism:   e.Professionalism,
		Communication:     e.Communication,
		ProblemResolution: e.ProblemResolution,
		Empathy:           e.Empathy,
		Efficiency:        e.Efficiency,
	}
}
