// Package pipeline 定义了评分事件进入分析索引的处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/events"
	"cora-trainer-go/pkg/log"
)

// ScoreIndexer 是分析索引的写入接口。
type ScoreIndexer interface {
	IndexScore(ctx context.Context, doc model.ScoreDocument) error
}

// Processor 消费评分事件并写入分析索引。
type Processor struct {
	indexer ScoreIndexer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(indexer ScoreIndexer) *Processor {
	return &Processor{indexer: indexer}
}

// Process 把一条评分事件转换为分析文档并写入索引。
func (p *Processor) Process(ctx context.Context, event events.ScoreRecordedEvent) error {
	rec := event.Record
	if rec.UserKey == "" || rec.ConversationID == "" {
		return errors.New("score event is missing user or conversation id")
	}
	log.Infof("[Processor] 索引评分事件, event=%s, user=%s, conversation=%s", event.EventID, rec.UserKey, rec.ConversationID)

	doc := ToScoreDocument(event)
	if err := p.indexer.IndexScore(ctx, doc); err != nil {
		log.Errorf("[Processor] 写入分析索引失败, DocID: %s, Error: %v", doc.DocID, err)
		return fmt.Errorf("写入分析索引失败: %w", err)
	}
	return nil
}

// ToScoreDocument 把评分事件扁平化为分析文档。同一用户同一对话的文档 ID 相同，重复分析时覆盖。
func ToScoreDocument(event events.ScoreRecordedEvent) model.ScoreDocument {
	rec := event.Record
	userKey := model.NormalizeUserKey(rec.UserKey)
	return model.ScoreDocument{
		DocID:             userKey + ":" + rec.ConversationID,
		UserKey:           userKey,
		ConversationID:    rec.ConversationID,
		AuthMethod:        string(rec.AuthMethod),
		Mood:              event.Mood,
		MessageCount:      rec.MessageCount,
		TotalScore:        rec.TotalScore,
		Professionalism:   rec.Scores.Professionalism,
		Communication:     rec.Scores.Communication,
		ProblemResolution: rec.Scores.ProblemResolution,
		Empathy:           rec.Scores.Empathy,
		Efficiency:        rec.Scores.Efficiency,
		Strengths:         rec.Strengths,
		Improvements:      rec.Improvements,
		OverallFeedback:   rec.OverallFeedback,
		CreatedAt:         rec.CreatedAt,
	}
}
