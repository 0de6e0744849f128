// Package events defines the messages published to Kafka.
package events

import (
	"time"

	"cora-trainer-go/internal/model"
)

// ScoreRecordedEvent is published after a score record has been persisted.
type ScoreRecordedEvent struct {
	EventID    string            `json:"event_id"`
	Mood       string            `json:"mood"`
	OccurredAt time.Time         `json:"occurred_at"`
	Record     model.ScoreRecord `json:"record"`
}

// Key returns the partitioning key; events of the same user stay ordered.
func (e ScoreRecordedEvent) Key() string {
	return e.Record.UserKey
}
