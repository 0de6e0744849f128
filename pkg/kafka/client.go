// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/pkg/events"
	"cora-trainer-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// maxAttempts 是单条事件放弃前的最大处理次数。
const maxAttempts = 3

// EventProcessor 处理一条评分事件，把消费者与具体的索引实现解耦。
type EventProcessor interface {
	Process(ctx context.Context, event events.ScoreRecordedEvent) error
}

// Producer 发布评分事件。
type Producer struct {
	writer *kafka.Writer
}

// Brokers 把逗号分隔的 broker 列表拆开。
func Brokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(Brokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// PublishScoreEvent 发送一条评分事件，按用户分区。
func (p *Producer) PublishScoreEvent(ctx context.Context, event events.ScoreRecordedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: b,
	})
}

// Close 刷新并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 消费评分事件直到 ctx 取消。
// 每条事件在原地重试，最多 maxAttempts 次；仍失败则记录日志并提交 offset，避免阻塞分区。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor) {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "cora-trainer-go-consumer"
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  Brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("从 Kafka 读取消息失败: %v", err)
			if !sleepCtx(ctx, fetchErrorBackoff) {
				log.Info("Kafka 消费者已停止")
				return
			}
			continue
		}

		if !handleMessage(ctx, processor, m.Value, retryBackoff) {
			// ctx 已取消，不提交，重启后该消息会被重新投递
			log.Info("Kafka 消费者已停止")
			return
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// 重试间隔。
var (
	retryBackoff      = 500 * time.Millisecond
	fetchErrorBackoff = 2 * time.Second
)

// handleMessage 解析并处理一条消息，返回是否应提交 offset。
// 格式错误或重试耗尽的消息也会提交；只有 ctx 取消时返回 false。
func handleMessage(ctx context.Context, processor EventProcessor, value []byte, backoff time.Duration) bool {
	var event events.ScoreRecordedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	err := processWithRetry(ctx, processor, event, backoff)
	switch {
	case err == nil:
		return true
	case ctx.Err() != nil:
		return false
	default:
		log.Errorf("评分事件处理失败 %d 次，放弃: event=%s, Error: %v", maxAttempts, event.EventID, err)
		return true
	}
}

// processWithRetry 最多尝试 maxAttempts 次，第 n 次失败后等待 n*backoff。
func processWithRetry(ctx context.Context, processor EventProcessor, event events.ScoreRecordedEvent, backoff time.Duration) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = processor.Process(ctx, event); err == nil {
			return nil
		}
		log.Warnf("处理评分事件失败 (%d/%d): event=%s, Error: %v", attempt, maxAttempts, event.EventID, err)
		if attempt == maxAttempts {
			break
		}
		if !sleepCtx(ctx, time.Duration(attempt)*backoff) {
			return ctx.Err()
		}
	}
	return err
}

// sleepCtx 等待 d，ctx 先取消时返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
