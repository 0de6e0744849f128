package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cora-trainer-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// redisScoreTable 把每行存为一个 hash，分区内的行键集合存为一个 set。
//
//	{table}:{partition}:{row}  -> hash
//	{table}:{partition}:rows   -> set of row keys
type redisScoreTable struct {
	client *redis.Client
	prefix string
}

// NewRedisScoreTable 创建一个新的 Redis 评分表，table 作为键前缀。
func NewRedisScoreTable(client *redis.Client, table string) ScoreTable {
	if table == "" {
		table = model.ScoreEntity{}.TableName()
	}
	return &redisScoreTable{client: client, prefix: table}
}

func (t *redisScoreTable) rowKey(partitionKey, rowKey string) string {
	return fmt.Sprintf("%s:%s:%s", t.prefix, partitionKey, rowKey)
}

func (t *redisScoreTable) rowsKey(partitionKey string) string {
	return fmt.Sprintf("%s:%s:rows", t.prefix, partitionKey)
}

// Upsert 在一个 MULTI 事务中替换整行并登记行键。
func (t *redisScoreTable) Upsert(ctx context.Context, entity *model.ScoreEntity) error {
	key := t.rowKey(entity.PartitionKey, entity.RowKey)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, entityToHash(entity))
		pipe.SAdd(ctx, t.rowsKey(entity.PartitionKey), entity.RowKey)
		return nil
	})
	return err
}

func (t *redisScoreTable) QueryPartition(ctx context.Context, partitionKey string, fields []string) ([]model.ScoreEntity, error) {
	rowKeys, err := t.client.SMembers(ctx, t.rowsKey(partitionKey)).Result()
	if err != nil {
		return nil, err
	}
	if len(rowKeys) == 0 {
		return []model.ScoreEntity{}, nil
	}
	if len(fields) == 0 {
		fields = allScoreFields
	}

	pipe := t.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(rowKeys))
	for i, rk := range rowKeys {
		cmds[i] = pipe.HMGet(ctx, t.rowKey(partitionKey, rk), fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]model.ScoreEntity, 0, len(rowKeys))
	for i, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		h := make(map[string]string, len(fields))
		for j, f := range fields {
			if s, ok := values[j].(string); ok {
				h[f] = s
			}
		}
		// set 中登记了但 hash 已不存在的行跳过
		if len(h) == 0 {
			continue
		}
		e := hashToEntity(h)
		e.PartitionKey = partitionKey
		e.RowKey = rowKeys[i]
		out = append(out, e)
	}
	return out, nil
}

func (t *redisScoreTable) Get(ctx context.Context, partitionKey, rowKey string) (*model.ScoreEntity, error) {
	h, err := t.client.HGetAll(ctx, t.rowKey(partitionKey, rowKey)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrEntityNotFound
	}
	e := hashToEntity(h)
	e.PartitionKey = partitionKey
	e.RowKey = rowKey
	return &e, nil
}

var allScoreFields = []string{
	model.FieldRowKey, model.FieldCreatedAt, model.FieldUserIdentity, model.FieldAuthMethod,
	model.FieldConversationID, model.FieldMessageCount, model.FieldTotalScore, model.FieldProfessionalism,
	model.FieldCommunication, model.FieldProblemResolution, model.FieldEmpathy, model.FieldEfficiency,
	model.FieldStrengths, model.FieldImprovements, model.FieldOverallFeedback,
}

func entityToHash(e *model.ScoreEntity) map[string]interface{} {
	h := map[string]interface{}{
		model.FieldRowKey:            e.RowKey,
		model.FieldUserIdentity:      e.UserIdentity,
		model.FieldAuthMethod:        e.AuthMethod,
		model.FieldConversationID:    e.ConversationID,
		model.FieldMessageCount:      e.MessageCount,
		model.FieldTotalScore:        e.TotalScore,
		model.FieldProfessionalism:   e.Professionalism,
		model.FieldCommunication:     e.Communication,
		model.FieldProblemResolution: e.ProblemResolution,
		model.FieldEmpathy:           e.Empathy,
		model.FieldEfficiency:        e.Efficiency,
		model.FieldStrengths:         e.Strengths,
		model.FieldImprovements:      e.Improvements,
		model.FieldOverallFeedback:   e.OverallFeedback,
	}
	if e.CreatedAt != nil {
		h[model.FieldCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return h
}

func hashToEntity(h map[string]string) model.ScoreEntity {
	atoi := func(k string) int {
		n, _ := strconv.Atoi(h[k])
		return n
	}
	e := model.ScoreEntity{
		RowKey:            h[model.FieldRowKey],
		UserIdentity:      h[model.FieldUserIdentity],
		AuthMethod:        h[model.FieldAuthMethod],
		ConversationID:    h[model.FieldConversationID],
		MessageCount:      atoi(model.FieldMessageCount),
		TotalScore:        atoi(model.FieldTotalScore),
		Professionalism:   atoi(model.FieldProfessionalism),
		Communication:     atoi(model.FieldCommunication),
		ProblemResolution: atoi(model.FieldProblemResolution),
		Empathy:           atoi(model.FieldEmpathy),
		Efficiency:        atoi(model.FieldEfficiency),
		Strengths:         h[model.FieldStrengths],
		Improvements:      h[model.FieldImprovements],
		OverallFeedback:   h[model.FieldOverallFeedback],
	}
	if s, ok := h[model.FieldCreatedAt]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.CreatedAt = &ts
		}
	}
	return e
}
