package repository

import (
	"context"
	"errors"

	"cora-trainer-go/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type scoreDocID struct {
	PartitionKey string `bson:"pk"`
	RowKey       string `bson:"rk"`
}

// scoreDocument 是评分行在 MongoDB 中的形态，两段式主键合并为复合 _id。
type scoreDocument struct {
	ID                scoreDocID `bson:"_id"`
	model.ScoreEntity `bson:",inline"`
}

type mongoScoreTable struct {
	coll *mongo.Collection
}

// NewMongoScoreTable 创建一个新的 MongoDB 评分表。
func NewMongoScoreTable(db *mongo.Database, table string) ScoreTable {
	if table == "" {
		table = model.ScoreEntity{}.TableName()
	}
	return &mongoScoreTable{coll: db.Collection(table)}
}

// EnsureMongoScoreIndexes 为分区扫描建立 _id.pk 索引。
func EnsureMongoScoreIndexes(ctx context.Context, db *mongo.Database, table string) error {
	if table == "" {
		table = model.ScoreEntity{}.TableName()
	}
	_, err := db.Collection(table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "_id.pk", Value: 1}},
	})
	return err
}

func (t *mongoScoreTable) Upsert(ctx context.Context, entity *model.ScoreEntity) error {
	doc := scoreDocument{
		ID:          scoreDocID{PartitionKey: entity.PartitionKey, RowKey: entity.RowKey},
		ScoreEntity: *entity,
	}
	_, err := t.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (t *mongoScoreTable) QueryPartition(ctx context.Context, partitionKey string, fields []string) ([]model.ScoreEntity, error) {
	opts := options.Find()
	if len(fields) > 0 {
		projection := bson.M{"_id": 1}
		for _, f := range fields {
			if f == model.FieldRowKey {
				continue
			}
			projection[f] = 1
		}
		opts.SetProjection(projection)
	}

	cursor, err := t.coll.Find(ctx, bson.M{"_id.pk": partitionKey}, opts)
	if err != nil {
		return nil, err
	}
	var docs []scoreDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.ScoreEntity, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toEntity())
	}
	return out, nil
}

func (t *mongoScoreTable) Get(ctx context.Context, partitionKey, rowKey string) (*model.ScoreEntity, error) {
	var doc scoreDocument
	id := scoreDocID{PartitionKey: partitionKey, RowKey: rowKey}
	err := t.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	e := doc.toEntity()
	return &e, nil
}

func (d scoreDocument) toEntity() model.ScoreEntity {
	e := d.ScoreEntity
	e.PartitionKey = d.ID.PartitionKey
	e.RowKey = d.ID.RowKey
	return e
}
