package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"cora-trainer-go/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoScoreTable(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("upsert replaces by composite id", func(mt *mtest.T) {
		table := NewMongoScoreTable(mt.DB, "scores")
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		if err := table.Upsert(context.Background(), sampleEntity("alice", "c1", 20, now)); err != nil {
			mt.Fatalf("Upsert: %v", err)
		}

		ev := mt.GetStartedEvent()
		if ev == nil || ev.CommandName != "update" {
			mt.Fatalf("expected an update command, got %+v", ev)
		}
		stmt := ev.Command.Lookup("updates").Array().Index(0).Value().Document()
		if !stmt.Lookup("upsert").Boolean() {
			mt.Errorf("replace should be sent with upsert=true: %v", stmt)
		}
		id := stmt.Lookup("q", "_id").Document()
		if id.Lookup("pk").StringValue() != "alice" || id.Lookup("rk").StringValue() != "c1" {
			mt.Errorf("filter should match the composite id, got %v", id)
		}
		doc := stmt.Lookup("u").Document()
		if doc.Lookup("total_score").AsInt64() != 20 || doc.Lookup("overall_feedback").StringValue() != "good" {
			mt.Errorf("replacement document incomplete: %v", doc)
		}
	})

	mt.Run("query partition filters and projects", func(mt *mtest.T) {
		table := NewMongoScoreTable(mt.DB, "scores")
		ns := mt.DB.Name() + ".scores"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: bson.D{{Key: "pk", Value: "alice"}, {Key: "rk", Value: "c1"}}},
				{Key: "created_at", Value: now},
				{Key: "total_score", Value: 20},
			},
			bson.D{
				{Key: "_id", Value: bson.D{{Key: "pk", Value: "alice"}, {Key: "rk", Value: "c2"}}},
				{Key: "total_score", Value: 15},
			},
		))

		rows, err := table.QueryPartition(context.Background(), "alice", model.SummaryFields)
		if err != nil {
			mt.Fatalf("QueryPartition: %v", err)
		}
		if len(rows) != 2 {
			mt.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0].PartitionKey != "alice" || rows[0].RowKey != "c1" || rows[0].TotalScore != 20 {
			mt.Errorf("first row not decoded: %+v", rows[0])
		}
		if rows[0].CreatedAt == nil || !rows[0].CreatedAt.Equal(now) {
			mt.Errorf("created_at not decoded: %v", rows[0].CreatedAt)
		}
		if rows[1].RowKey != "c2" || rows[1].CreatedAt != nil {
			mt.Errorf("second row not decoded: %+v", rows[1])
		}

		ev := mt.GetStartedEvent()
		if ev == nil || ev.CommandName != "find" {
			mt.Fatalf("expected a find command, got %+v", ev)
		}
		if ev.Command.Lookup("filter", "_id.pk").StringValue() != "alice" {
			mt.Errorf("find should filter on _id.pk: %v", ev.Command)
		}
		projection := ev.Command.Lookup("projection").Document()
		if _, err := projection.LookupErr("total_score"); err != nil {
			mt.Errorf("selected column missing from projection: %v", projection)
		}
		if _, err := projection.LookupErr("overall_feedback"); err == nil {
			mt.Errorf("unselected column should not be projected: %v", projection)
		}
		if _, err := projection.LookupErr(model.FieldRowKey); err == nil {
			mt.Errorf("row_key lives in _id and should not be projected: %v", projection)
		}
	})

	mt.Run("get missing row", func(mt *mtest.T) {
		table := NewMongoScoreTable(mt.DB, "scores")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".scores", mtest.FirstBatch))

		_, err := table.Get(context.Background(), "alice", "nope")
		if !errors.Is(err, ErrEntityNotFound) {
			mt.Errorf("expected ErrEntityNotFound, got %v", err)
		}
	})
}
