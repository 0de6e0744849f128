package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cora-trainer-go/internal/model"
)

// ErrEntityNotFound 表示按 (分区键, 行键) 点查未命中。
var ErrEntityNotFound = errors.New("score entity not found")

// ScoreTable 是评分记录的外部持久化存储。
// 它只提供按两段式主键 upsert、分区内扫描（可选择字段）与点查，
// 不支持跨分区查询、事务和列表类型。
type ScoreTable interface {
	Upsert(ctx context.Context, entity *model.ScoreEntity) error
	QueryPartition(ctx context.Context, partitionKey string, fields []string) ([]model.ScoreEntity, error)
	Get(ctx context.Context, partitionKey, rowKey string) (*model.ScoreEntity, error)
}

// memoryScoreTable 是进程内实现，用于本地开发（driver: memory）与测试。
type memoryScoreTable struct {
	mu         sync.RWMutex
	partitions map[string]map[string]model.ScoreEntity
}

// NewMemoryScoreTable 创建一个内存评分表。
func NewMemoryScoreTable() ScoreTable {
	return &memoryScoreTable{partitions: make(map[string]map[string]model.ScoreEntity)}
}

func (t *memoryScoreTable) Upsert(ctx context.Context, entity *model.ScoreEntity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rows, ok := t.partitions[entity.PartitionKey]
	if !ok {
		rows = make(map[string]model.ScoreEntity)
		t.partitions[entity.PartitionKey] = rows
	}
	rows[entity.RowKey] = cloneEntity(*entity)
	return nil
}

func (t *memoryScoreTable) QueryPartition(ctx context.Context, partitionKey string, fields []string) ([]model.ScoreEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := t.partitions[partitionKey]
	out := make([]model.ScoreEntity, 0, len(rows))
	for _, e := range rows {
		out = append(out, selectFields(e, fields))
	}
	// map 遍历无序，按行键排序使结果稳定；调用方仍需自行按时间排序。
	sort.Slice(out, func(i, j int) bool { return out[i].RowKey < out[j].RowKey })
	return out, nil
}

func (t *memoryScoreTable) Get(ctx context.Context, partitionKey, rowKey string) (*model.ScoreEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.partitions[partitionKey][rowKey]
	if !ok {
		return nil, ErrEntityNotFound
	}
	c := cloneEntity(e)
	return &c, nil
}

func cloneEntity(e model.ScoreEntity) model.ScoreEntity {
	if e.CreatedAt != nil {
		ts := *e.CreatedAt
		e.CreatedAt = &ts
	}
	return e
}

// selectFields 只保留 fields 中列出的字段；分区键与行键总是保留。fields 为空时返回完整行。
func selectFields(e model.ScoreEntity, fields []string) model.ScoreEntity {
	if len(fields) == 0 {
		return cloneEntity(e)
	}
	out := model.ScoreEntity{PartitionKey: e.PartitionKey, RowKey: e.RowKey}
	for _, f := range fields {
		switch f {
		case model.FieldCreatedAt:
			if e.CreatedAt != nil {
				ts := *e.CreatedAt
				out.CreatedAt = &ts
			}
		case model.FieldUserIdentity:
			out.UserIdentity = e.UserIdentity
		case model.FieldAuthMethod:
			out.AuthMethod = e.AuthMethod
		case model.FieldConversationID:
			out.ConversationID = e.ConversationID
		case model.FieldMessageCount:
			out.MessageCount = e.MessageCount
		case model.FieldTotalScore:
			out.TotalScore = e.TotalScore
		case model.FieldProfessionalism:
			out.Professionalism = e.Professionalism
		case model.FieldCommunication:
			out.Communication = e.Communication
		case model.FieldProblemResolution:
			out.ProblemResolution = e.ProblemResolution
		case model.FieldEmpathy:
			out.Empathy = e.Empathy
		case model.FieldEfficiency:
			out.Efficiency = e.Efficiency
		case model.FieldStrengths:
			out.Strengths = e.Strengths
		case model.FieldImprovements:
			out.Improvements = e.Improvements
		case model.FieldOverallFeedback:
			out.OverallFeedback = e.OverallFeedback
		}
	}
	return out
}
