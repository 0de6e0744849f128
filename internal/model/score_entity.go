package model

import "time"

// ScoreEntity 是评分记录在外部存储中的扁平化行结构。
// 存储没有原生列表类型，strengths/improvements 以 JSON 文本保存。
type ScoreEntity struct {
	PartitionKey      string     `gorm:"type:varchar(255);primaryKey;column:partition_key" bson:"-" json:"partition_key"`
	RowKey            string     `gorm:"type:varchar(64);primaryKey;column:row_key" bson:"-" json:"row_key"`
	CreatedAt         *time.Time `gorm:"column:created_at;autoCreateTime:false" bson:"created_at,omitempty" json:"created_at,omitempty"`
	UserIdentity      string     `gorm:"type:varchar(255);column:user_identity" bson:"user_identity" json:"user_identity"`
	AuthMethod        string     `gorm:"type:varchar(20);column:auth_method" bson:"auth_method" json:"auth_method"`
	ConversationID    string     `gorm:"type:varchar(64);column:conversation_id" bson:"conversation_id" json:"conversation_id"`
	MessageCount      int        `gorm:"not null;default:0;column:message_count" bson:"message_count" json:"message_count"`
	TotalScore        int        `gorm:"not null;default:0;column:total_score" bson:"total_score" json:"total_score"`
	Professionalism   int        `gorm:"not null;default:0;column:professionalism" bson:"professionalism" json:"professionalism"`
	Communication     int        `gorm:"not null;default:0;column:communication" bson:"communication" json:"communication"`
	ProblemResolution int        `gorm:"not null;default:0;column:problem_resolution" bson:"problem_resolution" json:"problem_resolution"`
	Empathy           int        `gorm:"not null;default:0;column:empathy" bson:"empathy" json:"empathy"`
	Efficiency        int        `gorm:"not null;default:0;column:efficiency" bson:"efficiency" json:"efficiency"`
	Strengths         string     `gorm:"type:text;column:strengths" bson:"strengths" json:"strengths"`
	Improvements      string     `gorm:"type:text;column:improvements" bson:"improvements" json:"improvements"`
	OverallFeedback   string     `gorm:"type:text;column:overall_feedback" bson:"overall_feedback" json:"overall_feedback"`
}

// 列名常量，供分区扫描时选择字段。
const (
	FieldRowKey            = "row_key"
	FieldCreatedAt         = "created_at"
	FieldUserIdentity      = "user_identity"
	FieldAuthMethod        = "auth_method"
	FieldConversationID    = "conversation_id"
	FieldMessageCount      = "message_count"
	FieldTotalScore        = "total_score"
	FieldProfessionalism   = "professionalism"
	FieldCommunication     = "communication"
	FieldProblemResolution = "problem_resolution"
	FieldEmpathy           = "empathy"
	FieldEfficiency        = "efficiency"
	FieldStrengths         = "strengths"
	FieldImprovements      = "improvements"
	FieldOverallFeedback   = "overall_feedback"
)

// SummaryFields 是历史列表视图所需的字段。
var SummaryFields = []string{
	FieldRowKey, FieldCreatedAt, FieldTotalScore, FieldProfessionalism, FieldCommunication,
	FieldProblemResolution, FieldEmpathy, FieldEfficiency, FieldMessageCount,
}

// TableName 指定了此模型在数据库中对应的默认表名。
func (ScoreEntity) TableName() string {
	return "conversation_scores"
}
