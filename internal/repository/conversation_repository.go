// Package repository 提供了数据访问层的实现。
package repository

import (
	"errors"
	"sync"
	"time"

	"cora-trainer-go/internal/model"

	"github.com/google/uuid"
)

// ErrConversationNotFound 表示对话 ID 不存在于注册表中。
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository 定义了进行中对话的注册表操作接口。
type ConversationRepository interface {
	Start(mood model.Mood) string
	Append(conversationID string, message model.ChatMessage) error
	Get(conversationID string) (*model.Conversation, error)
	Close(conversationID string) error
	Count() int
}

// conversationEntry 持有单个对话，mu 只保护该对话自身的状态。
type conversationEntry struct {
	mu   sync.Mutex
	conv model.Conversation
}

// memoryConversationRepository 是进程内的对话注册表。
// 映射表由 RWMutex 保护，每个对话有独立的锁，不同对话之间互不阻塞。
type memoryConversationRepository struct {
	mu      sync.RWMutex
	entries map[string]*conversationEntry
	now     func() time.Time
}

// NewConversationRepository 创建一个新的内存对话注册表。
func NewConversationRepository() ConversationRepository {
	return &memoryConversationRepository{
		entries: make(map[string]*conversationEntry),
		now:     time.Now,
	}
}

// Start 创建一个新的对话并返回其 ID。
func (r *memoryConversationRepository) Start(mood model.Mood) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	for r.entries[id] != nil {
		id = uuid.NewString()
	}
	r.entries[id] = &conversationEntry{conv: model.Conversation{
		ID:        id,
		Mood:      mood,
		Messages:  []model.ChatMessage{},
		Status:    model.ConversationActive,
		CreatedAt: r.now().UTC(),
	}}
	return id
}

func (r *memoryConversationRepository) lookup(conversationID string) (*conversationEntry, error) {
	r.mu.RLock()
	e, ok := r.entries[conversationID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrConversationNotFound
	}
	return e, nil
}

// Append 将消息追加到对话末尾。
func (r *memoryConversationRepository) Append(conversationID string, message model.ChatMessage) error {
	e, err := r.lookup(conversationID)
	if err != nil {
		return err
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = r.now().UTC()
	}
	e.mu.Lock()
	e.conv.Messages = append(e.conv.Messages, message)
	e.mu.Unlock()
	return nil
}

// Get 返回对话的快照，调用方对返回值的修改不会影响注册表。
func (r *memoryConversationRepository) Get(conversationID string) (*model.Conversation, error) {
	e, err := r.lookup(conversationID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.conv
	snapshot.Messages = make([]model.ChatMessage, len(e.conv.Messages))
	copy(snapshot.Messages, e.conv.Messages)
	return &snapshot, nil
}

// Close 将对话标记为已结束。
func (r *memoryConversationRepository) Close(conversationID string) error {
	e, err := r.lookup(conversationID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.conv.Status = model.ConversationClosed
	e.mu.Unlock()
	return nil
}

// Count 返回注册表中的对话数量。
func (r *memoryConversationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
