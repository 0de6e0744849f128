package service

import (
	"context"
	"errors"
	"testing"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
)

func TestSeedDemoData(t *testing.T) {
	scores := NewScoreService(repository.NewMemoryScoreTable(), config.ScoreStoreConfig{})
	results := NewAdminService(scores, nil, nil).SeedDemoData(context.Background())
	if len(results) != len(DemoUsers)*demoConversationsPerUser {
		t.Fatalf("unexpected result count %d", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("seed write failed: %+v", r)
		}
	}
	for _, u := range DemoUsers {
		history := scores.GetByUser(context.Background(), u, 10)
		if len(history) != demoConversationsPerUser {
			t.Fatalf("expected %d records for %s, got %d", demoConversationsPerUser, u, len(history))
		}
		for _, h := range history {
			rec := scores.GetOne(context.Background(), u, h.ConversationID)
			s := rec.Scores
			for _, v := range []int{s.Professionalism, s.Communication, s.ProblemResolution, s.Empathy, s.Efficiency} {
				if v < model.MinCriterionScore || v > model.MaxCriterionScore {
					t.Errorf("seeded criterion out of range: %+v", s)
				}
			}
			if rec.TotalScore != s.Sum() {
				t.Errorf("seeded total %d != sum %d", rec.TotalScore, s.Sum())
			}
		}
	}
}

func TestSeedDemoData_StoreUnavailable(t *testing.T) {
	results := NewAdminService(NewScoreService(nil, config.ScoreStoreConfig{}), nil, nil).SeedDemoData(context.Background())
	for _, r := range results {
		if r.Success {
			t.Fatalf("seed cannot succeed without a store: %+v", r)
		}
	}
}

func TestSeedDemoData_PublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	scores := NewScoreService(repository.NewMemoryScoreTable(), config.ScoreStoreConfig{})
	results := NewAdminService(scores, nil, pub).SeedDemoData(context.Background())

	if len(pub.events) != len(results) {
		t.Fatalf("expected one event per seeded record, got %d for %d", len(pub.events), len(results))
	}
	byID := map[string]SeedResult{}
	for _, r := range results {
		byID[r.ConversationID] = r
	}
	for _, e := range pub.events {
		r, ok := byID[e.Record.ConversationID]
		if !ok {
			t.Fatalf("event for unknown conversation %s", e.Record.ConversationID)
		}
		if e.Record.UserKey != r.User || e.Record.TotalScore != r.Total {
			t.Errorf("event does not match seed: %+v vs %+v", e.Record, r)
		}
		if e.Record.AuthMethod != model.AuthFederated || e.Mood != string(model.MoodNeutral) || e.EventID == "" {
			t.Errorf("unexpected event metadata: %+v", e)
		}
	}
}

func TestSeedDemoData_FailedWritesAreNotPublished(t *testing.T) {
	pub := &fakePublisher{}
	NewAdminService(NewScoreService(nil, config.ScoreStoreConfig{}), nil, pub).SeedDemoData(context.Background())
	if len(pub.events) != 0 {
		t.Fatalf("failed seed writes must not be published, got %d events", len(pub.events))
	}
}

func TestSearchScores_Disabled(t *testing.T) {
	_, _, err := NewAdminService(nil, nil, nil).SearchScores(context.Background(), model.ScoreSearchQuery{})
	if !errors.Is(err, ErrAnalyticsDisabled) {
		t.Fatalf("expected ErrAnalyticsDisabled, got %v", err)
	}
}
