package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"cora-trainer-go/pkg/events"
)

func TestBrokers(t *testing.T) {
	cases := map[string][]string{
		"":                        nil,
		"localhost:9092":          {"localhost:9092"},
		"a:9092, b:9092,,c:9092 ": {"a:9092", "b:9092", "c:9092"},
	}
	for in, want := range cases {
		if got := Brokers(in); !reflect.DeepEqual(got, want) {
			t.Errorf("Brokers(%q) = %v, want %v", in, got, want)
		}
	}
}

// flakyProcessor 前 failures 次调用返回错误，之后成功。
type flakyProcessor struct {
	failures int
	calls    int
	onCall   func()
}

func (p *flakyProcessor) Process(context.Context, events.ScoreRecordedEvent) error {
	p.calls++
	if p.onCall != nil {
		p.onCall()
	}
	if p.calls <= p.failures {
		return errors.New("index unavailable")
	}
	return nil
}

func eventPayload(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(events.ScoreRecordedEvent{EventID: "evt-1"})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleMessage_RetriesInPlaceUntilSuccess(t *testing.T) {
	p := &flakyProcessor{failures: 2}
	if !handleMessage(context.Background(), p, eventPayload(t), 0) {
		t.Fatal("a processed event must be committed")
	}
	if p.calls != 3 {
		t.Errorf("expected 2 failures then success (3 calls), got %d", p.calls)
	}
}

func TestHandleMessage_GivesUpAfterMaxAttempts(t *testing.T) {
	p := &flakyProcessor{failures: 100}
	if !handleMessage(context.Background(), p, eventPayload(t), 0) {
		t.Fatal("an event that keeps failing is committed after the last attempt")
	}
	if p.calls != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, p.calls)
	}
}

func TestHandleMessage_MalformedIsCommittedWithoutProcessing(t *testing.T) {
	p := &flakyProcessor{}
	if !handleMessage(context.Background(), p, []byte("{not json"), 0) {
		t.Fatal("malformed messages must be committed")
	}
	if p.calls != 0 {
		t.Errorf("malformed messages must not reach the processor, got %d calls", p.calls)
	}
}

func TestHandleMessage_CancelledDuringRetryIsNotCommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &flakyProcessor{failures: 100, onCall: cancel}
	if handleMessage(ctx, p, eventPayload(t), 0) {
		t.Fatal("an event interrupted by shutdown must stay uncommitted")
	}
	if p.calls != 1 {
		t.Errorf("retries must stop once the context is cancelled, got %d calls", p.calls)
	}
}
