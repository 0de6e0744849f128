package repository

import (
	"context"
	"errors"

	"cora-trainer-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns 是主键冲突时需要覆盖的列，即除主键外的全部列。
var upsertColumns = []string{
	model.FieldCreatedAt, model.FieldUserIdentity, model.FieldAuthMethod, model.FieldConversationID,
	model.FieldMessageCount, model.FieldTotalScore, model.FieldProfessionalism, model.FieldCommunication,
	model.FieldProblemResolution, model.FieldEmpathy, model.FieldEfficiency, model.FieldStrengths,
	model.FieldImprovements, model.FieldOverallFeedback,
}

// gormScoreTable 是 ScoreTable 的 GORM (MySQL) 实现，(partition_key, row_key) 为联合主键。
type gormScoreTable struct {
	db    *gorm.DB
	table string
}

// NewGormScoreTable 创建一个新的 GORM 评分表。
func NewGormScoreTable(db *gorm.DB, table string) ScoreTable {
	if table == "" {
		table = model.ScoreEntity{}.TableName()
	}
	return &gormScoreTable{db: db, table: table}
}

// MigrateGormScoreTable 在表不存在时创建评分表（幂等）。
func MigrateGormScoreTable(db *gorm.DB, table string) error {
	if table == "" {
		table = model.ScoreEntity{}.TableName()
	}
	return db.Table(table).AutoMigrate(&model.ScoreEntity{})
}

// Upsert 插入记录，主键冲突时覆盖全部非主键列。
func (t *gormScoreTable) Upsert(ctx context.Context, entity *model.ScoreEntity) error {
	return t.db.WithContext(ctx).Table(t.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "partition_key"}, {Name: "row_key"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(entity).Error
}

// QueryPartition 查询分区内全部记录，只选择指定的列。
func (t *gormScoreTable) QueryPartition(ctx context.Context, partitionKey string, fields []string) ([]model.ScoreEntity, error) {
	var rows []model.ScoreEntity
	q := t.db.WithContext(ctx).Table(t.table)
	if len(fields) > 0 {
		q = q.Select(append([]string{"partition_key"}, fields...))
	}
	err := q.Where("partition_key = ?", partitionKey).Find(&rows).Error
	return rows, err
}

// Get 按联合主键点查一条记录。
func (t *gormScoreTable) Get(ctx context.Context, partitionKey, rowKey string) (*model.ScoreEntity, error) {
	var e model.ScoreEntity
	err := t.db.WithContext(ctx).Table(t.table).
		Where("partition_key = ? AND row_key = ?", partitionKey, rowKey).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
