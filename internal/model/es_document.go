package model

import "time"

// ScoreDocument 定义了存储在 Elasticsearch 评分分析索引中的文档结构。
type ScoreDocument struct {
	DocID             string    `json:"doc_id"` // user_key + ":" + conversation_id，重复分析时覆盖
	UserKey           string    `json:"user_key"`
	ConversationID    string    `json:"conversation_id"`
	AuthMethod        string    `json:"auth_method"`
	Mood              string    `json:"mood"`
	MessageCount      int       `json:"message_count"`
	TotalScore        int       `json:"total_score"`
	Professionalism   int       `json:"professionalism"`
	Communication     int       `json:"communication"`
	ProblemResolution int       `json:"problem_resolution"`
	Empathy           int       `json:"empathy"`
	Efficiency        int       `json:"efficiency"`
	Strengths         []string  `json:"strengths"`
	Improvements      []string  `json:"improvements"`
	OverallFeedback   string    `json:"overall_feedback"`
	CreatedAt         time.Time `json:"created_at"`
}

// ScoreSearchQuery 是管理员分析检索的过滤条件。
type ScoreSearchQuery struct {
	Text     string
	UserKey  string
	MinTotal int
	Size     int
}
