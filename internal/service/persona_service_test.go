package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
)

var testAgent = config.AgentConfig{
	Name:         "Cora",
	Description:  "Simulated customer",
	SystemPrompt: "You are Cora, a customer contacting support.",
}

var testLLMConfig = config.LLMConfig{Temperature: 0.7, MaxTokens: 800}

func TestPersonaGenerate_BuildsPrompt(t *testing.T) {
	fake := replyWith("Hi, my order is late.")
	svc := NewPersonaService(fake, testAgent, testLLMConfig)

	transcript := []model.ChatMessage{
		{Role: model.RoleSystem, Content: "internal note"},
		{Role: model.RoleUser, Content: "Hello, how can I help?"},
		{Role: model.RoleAssistant, Content: "My package never arrived."},
	}
	reply, err := svc.Generate(context.Background(), transcript, model.MoodFrustrated, "Any update?", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply.Content != "Hi, my order is late." {
		t.Errorf("unexpected reply %q", reply.Content)
	}
	if reply.Metadata.AgentName != "Cora" || reply.Metadata.Model != "gpt-test" || reply.Metadata.Usage.TotalTokens != 15 {
		t.Errorf("unexpected metadata %+v", reply.Metadata)
	}

	msgs := fake.lastCall()
	wantSystem := testAgent.SystemPrompt + "\n\nCUSTOMER EMOTIONAL STATE: " + model.MoodFrustrated.Directive()
	if msgs[0].Role != model.RoleSystem || msgs[0].Content != wantSystem {
		t.Errorf("unexpected system message %q", msgs[0].Content)
	}
	// system 消息被过滤，其余按顺序重放，触发语为最后一条 user 消息
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[1].Content != "Hello, how can I help?" || msgs[2].Role != model.RoleAssistant {
		t.Errorf("transcript not replayed in order: %+v", msgs)
	}
	if last := msgs[3]; last.Role != model.RoleUser || last.Content != "Any update?" {
		t.Errorf("trigger must be the final user turn, got %+v", last)
	}

	gen := fake.gens[0]
	if gen == nil || *gen.Temperature != 0.7 || *gen.MaxTokens != 800 {
		t.Errorf("unexpected generation params %+v", gen)
	}
}

func TestPersonaGenerate_OpeningExtendsDirective(t *testing.T) {
	fake := replyWith("Hello?")
	svc := NewPersonaService(fake, testAgent, testLLMConfig)

	trigger := "You bought headphones that stopped working."
	if _, err := svc.Generate(context.Background(), nil, model.MoodConfused, trigger, true); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msgs := fake.lastCall()
	wantSuffix := model.MoodConfused.Directive() + " " + trigger + " Start the conversation naturally as a customer would when contacting support."
	if !strings.HasSuffix(msgs[0].Content, wantSuffix) {
		t.Errorf("opening directive not applied: %q", msgs[0].Content)
	}
	if len(msgs) != 1 || msgs[0].Role != model.RoleSystem {
		t.Errorf("opening must send the scenario only inside the system instruction: %+v", msgs)
	}
}

func TestPersonaGenerate_OpeningKeepsEarlierTurns(t *testing.T) {
	fake := replyWith("Hi again.")
	svc := NewPersonaService(fake, testAgent, testLLMConfig)

	transcript := []model.ChatMessage{{Role: model.RoleAssistant, Content: "Earlier line."}}
	if _, err := svc.Generate(context.Background(), transcript, model.MoodHappy, "Refund scenario", true); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msgs := fake.lastCall()
	if len(msgs) != 2 || msgs[1].Content != "Earlier line." {
		t.Errorf("opening should replay the transcript without a trailing user turn: %+v", msgs)
	}
}

func TestPersonaGenerate_UnknownMoodUsesNeutral(t *testing.T) {
	fake := replyWith("ok")
	svc := NewPersonaService(fake, testAgent, testLLMConfig)
	_, _ = svc.Generate(context.Background(), nil, model.Mood("ecstatic"), "hi", false)
	if !strings.HasSuffix(fake.lastCall()[0].Content, model.MoodNeutral.Directive()) {
		t.Errorf("unknown mood should fall back to neutral: %q", fake.lastCall()[0].Content)
	}
}

func TestPersonaGenerate_FailureIsEngineError(t *testing.T) {
	svc := NewPersonaService(failWith(errors.New("rate limited")), testAgent, testLLMConfig)
	_, err := svc.Generate(context.Background(), nil, model.MoodNeutral, "hi", false)
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
}

func TestPersonaAgentInfo(t *testing.T) {
	info := NewPersonaService(replyWith(""), testAgent, testLLMConfig).AgentInfo()
	if info.Name != "Cora" || info.Model != "gpt-test" || info.Status != "active" {
		t.Errorf("unexpected agent info %+v", info)
	}
	info = NewPersonaService(nil, testAgent, testLLMConfig).AgentInfo()
	if info.Status != "inactive" {
		t.Errorf("agent without model should be inactive, got %+v", info)
	}
}
