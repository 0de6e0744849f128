package model

import (
	"strings"
	"time"
)

// AuthMethod 表示评分记录归属用户的认证方式。
type AuthMethod string

const (
	AuthFederated AuthMethod = "federated"
	AuthLocal     AuthMethod = "local"
	AuthAnonymous AuthMethod = "anonymous"
)

// 评分取值范围。
const (
	MinCriterionScore = 1
	MaxCriterionScore = 5
	CriteriaCount     = 5
)

// CriteriaScores 是五项评分标准的得分，每项 1-5。
type CriteriaScores struct {
	Professionalism   int `json:"professionalism" jsonschema:"minimum=1,maximum=5"`
	Communication     int `json:"communication" jsonschema:"minimum=1,maximum=5"`
	ProblemResolution int `json:"problem_resolution" jsonschema:"minimum=1,maximum=5"`
	Empathy           int `json:"empathy" jsonschema:"minimum=1,maximum=5"`
	Efficiency        int `json:"efficiency" jsonschema:"minimum=1,maximum=5"`
}

// Sum 返回五项得分之和。
func (s CriteriaScores) Sum() int {
	return s.Professionalism + s.Communication + s.ProblemResolution + s.Empathy + s.Efficiency
}

// ScoreCore 是一次评估的结果，不包含归属信息。
type ScoreCore struct {
	Scores          CriteriaScores `json:"scores"`
	TotalScore      int            `json:"total_score"`
	Strengths       []string       `json:"strengths"`
	Improvements    []string       `json:"improvements"`
	OverallFeedback string         `json:"overall_feedback"`
}

// ScoreRecord 是持久化后的评分记录。
type ScoreRecord struct {
	UserKey        string     `json:"user_identity"`
	ConversationID string     `json:"conversation_id"`
	CreatedAt      time.Time  `json:"timestamp"`
	AuthMethod     AuthMethod `json:"auth_method,omitempty"`
	MessageCount   int        `json:"message_count"`
	ScoreCore
}

// NormalizeUserKey 返回身份字符串的小写形式，作为分区键。
func NormalizeUserKey(identity string) string {
	return strings.ToLower(identity)
}
