package service

import (
	"context"
	"errors"
	"testing"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
)

type convFixture struct {
	repo      repository.ConversationRepository
	chat      ChatService
	conv      ConversationService
	scores    ScoreService
	archive   *fakeArchive
	publisher *fakePublisher
}

func newConvFixture(fake *fakeLLM, table repository.ScoreTable) *convFixture {
	f := &convFixture{
		repo:      repository.NewConversationRepository(),
		archive:   &fakeArchive{},
		publisher: &fakePublisher{},
	}
	f.scores = NewScoreService(table, config.ScoreStoreConfig{TimeoutSeconds: 1})
	f.chat = NewChatService(NewPersonaService(fake, testAgent, testLLMConfig), f.repo)
	f.conv = NewConversationService(f.repo, NewScoringService(fake, false), f.scores, f.archive, f.publisher)
	return f
}

func TestConversation_EndToEnd(t *testing.T) {
	f := newConvFixture(routingLLM("My router keeps dropping.", validEvaluation), repository.NewMemoryScoreTable())
	ctx := context.Background()
	principal := model.Principal{Identity: "Agent.Smith@Contoso.com", AuthMethod: model.AuthFederated}

	id, mood := f.conv.Start("FRUSTRATED")
	if mood != model.MoodFrustrated {
		t.Errorf("mood not parsed, got %s", mood)
	}
	if _, err := f.chat.SendMessage(ctx, id, "Router issue scenario", true); err != nil {
		t.Fatalf("opening: %v", err)
	}
	if _, err := f.chat.SendMessage(ctx, id, "I'm sorry to hear that, let's restart it.", false); err != nil {
		t.Fatalf("send: %v", err)
	}

	result, err := f.conv.Analyze(ctx, id, principal)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.Persisted || result.TotalScore != 20 || result.ConversationID != id {
		t.Errorf("unexpected analysis %+v", result)
	}

	history := f.scores.GetByUser(ctx, "agent.smith@contoso.com", 10)
	if len(history) != 1 || history[0].ConversationID != id || history[0].MessageCount != 3 || history[0].TotalScore != 20 {
		t.Fatalf("unexpected history %+v", history)
	}

	conv, _ := f.repo.Get(id)
	if conv.Status != model.ConversationClosed {
		t.Errorf("conversation should be closed after analysis")
	}
	if len(f.archive.records) != 1 || f.archive.records[0].UserKey != "agent.smith@contoso.com" || len(f.archive.records[0].Messages) != 3 {
		t.Errorf("unexpected archive records %+v", f.archive.records)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Mood != "frustrated" || f.publisher.events[0].Record.TotalScore != 20 {
		t.Errorf("unexpected events %+v", f.publisher.events)
	}

	msgs, err := f.conv.Messages(id)
	if err != nil || len(msgs) != 3 {
		t.Errorf("Messages = %d, %v", len(msgs), err)
	}
}

func TestConversation_AnalyzeUnknown(t *testing.T) {
	f := newConvFixture(routingLLM("x", validEvaluation), repository.NewMemoryScoreTable())
	_, err := f.conv.Analyze(context.Background(), "missing", model.Principal{Identity: "a"})
	if !errors.Is(err, repository.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if _, err := f.conv.Messages("missing"); !errors.Is(err, repository.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestConversation_AnalyzeWithoutStore(t *testing.T) {
	f := newConvFixture(routingLLM("x", validEvaluation), nil)
	id, _ := f.conv.Start("neutral")
	result, err := f.conv.Analyze(context.Background(), id, model.Principal{Identity: model.AnonymousIdentity, AuthMethod: model.AuthAnonymous})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Persisted {
		t.Error("persisted must be false when the store is unavailable")
	}
	if result.TotalScore != 20 {
		t.Errorf("score should still be returned, got %+v", result)
	}
	if len(f.archive.records) != 0 || len(f.publisher.events) != 0 {
		t.Error("side effects should only run after a successful save")
	}
}

func TestConversation_AnalyzeEvaluatorFailure(t *testing.T) {
	f := newConvFixture(failWith(errors.New("boom")), repository.NewMemoryScoreTable())
	id, _ := f.conv.Start("happy")
	result, err := f.conv.Analyze(context.Background(), id, model.Principal{Identity: "u", AuthMethod: model.AuthLocal})
	if err != nil {
		t.Fatalf("Analyze must not fail on evaluator errors: %v", err)
	}
	if result.TotalScore != 15 || result.Strengths[0] != FallbackStrength {
		t.Errorf("expected fallback score, got %+v", result)
	}
	if !result.Persisted {
		t.Error("fallback scores are still persisted")
	}
}
