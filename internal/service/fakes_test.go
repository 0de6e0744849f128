package service

import (
	"context"
	"strings"
	"sync"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/events"
	"cora-trainer-go/pkg/llm"
)

// fakeLLM 记录每次调用，并由 respond 决定返回内容。
type fakeLLM struct {
	mu      sync.Mutex
	respond func(messages []llm.Message) (string, error)
	calls   [][]llm.Message
	gens    []*llm.GenerationParams
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message, gen *llm.GenerationParams) (*llm.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	f.gens = append(f.gens, gen)
	f.mu.Unlock()

	content, err := f.respond(messages)
	if err != nil {
		return nil, err
	}
	return &llm.Completion{
		Content: content,
		Model:   f.Model(),
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeLLM) Model() string { return "gpt-test" }

func (f *fakeLLM) lastCall() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func replyWith(text string) *fakeLLM {
	return &fakeLLM{respond: func([]llm.Message) (string, error) { return text, nil }}
}

func failWith(err error) *fakeLLM {
	return &fakeLLM{respond: func([]llm.Message) (string, error) { return "", err }}
}

// routingLLM 对评估请求返回 evaluation，对 persona 请求返回 persona。
func routingLLM(persona, evaluation string) *fakeLLM {
	return &fakeLLM{respond: func(messages []llm.Message) (string, error) {
		if len(messages) > 0 && strings.Contains(messages[0].Content, "quality evaluator") {
			return evaluation, nil
		}
		return persona, nil
	}}
}

const validEvaluation = `{
  "scores": {"professionalism": 4, "communication": 5, "problem_resolution": 3, "empathy": 4, "efficiency": 4},
  "total_score": 20,
  "strengths": ["Polite tone", "Clear steps"],
  "improvements": ["Confirm resolution"],
  "overall_feedback": "Solid interaction."
}`

type fakeArchive struct {
	mu      sync.Mutex
	records []model.TranscriptRecord
}

func (f *fakeArchive) Put(_ context.Context, r model.TranscriptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.ScoreRecordedEvent
}

func (f *fakePublisher) PublishScoreEvent(_ context.Context, e events.ScoreRecordedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}
