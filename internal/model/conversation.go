// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationStatus 表示对话的生命周期状态。
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// TokenUsage 记录一次模型调用的 token 消耗。
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// MessageMetadata 附加在 persona 回复上的观测信息。
type MessageMetadata struct {
	AgentName string     `json:"agent_name"`
	Model     string     `json:"model"`
	Usage     TokenUsage `json:"usage"`
}

// ChatMessage 代表对话记录中的单条消息。
type ChatMessage struct {
	Role      string           `json:"role"` // "user" 或 "assistant"
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// Conversation 是一次角色扮演对话，由对话注册表独占持有。
type Conversation struct {
	ID        string             `json:"id"`
	Mood      Mood               `json:"mood"`
	Messages  []ChatMessage      `json:"messages"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// TranscriptRecord 是分析完成后归档到对象存储的对话全文。
type TranscriptRecord struct {
	ConversationID string        `json:"conversation_id"`
	UserKey        string        `json:"user_identity"`
	Mood           Mood          `json:"mood"`
	Messages       []ChatMessage `json:"messages"`
	Score          ScoreCore     `json:"score"`
	ArchivedAt     time.Time     `json:"archived_at"`
}
