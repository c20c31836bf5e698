// Package events is the in-process event bus of the API process. The upload
// handler publishes batch.queued after it has responded; the agent manager
// subscribes to rebuild the chat agent for the new collection.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicBatchQueued carries BatchQueued events.
const TopicBatchQueued = "batch.queued"

// BatchQueued announces that an upload batch was staged, enqueued for
// ingestion, and installed as the active collection.
type BatchQueued struct {
	// BatchID is the upload batch and vector-store collection name.
	BatchID string `json:"batch_id"`
	// JobID is the ingestion job enqueued for the batch.
	JobID string `json:"job_id"`
	// FileCount is the number of files in the batch.
	FileCount int `json:"file_count"`
	// QueuedAt is when the job was enqueued.
	QueuedAt time.Time `json:"queued_at"`
}

// BatchQueuedHandler processes one BatchQueued event. Returned errors are
// logged; events are never redelivered.
type BatchQueuedHandler func(ctx context.Context, ev BatchQueued) error

// Bus is a Go-channel backed publish/subscribe bus.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    *slog.Logger
}

// NewBus returns a Bus that logs through log.
func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(log)),
		log:    log,
	}
}

// PublishBatchQueued publishes ev on TopicBatchQueued. Events published
// with no subscriber are dropped.
func (b *Bus) PublishBatchQueued(ev BatchQueued) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", TopicBatchQueued, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicBatchQueued, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", TopicBatchQueued, err)
	}
	return nil
}

// SubscribeBatchQueued delivers every BatchQueued event to fn, one at a time,
// until ctx is cancelled or the bus is closed. Delivery order across
// publishes is not guaranteed. It returns once the subscription is
// registered.
func (b *Bus) SubscribeBatchQueued(ctx context.Context, fn BatchQueuedHandler) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicBatchQueued)
	if err != nil {
		return fmt.Errorf("events: subscribe %s: %w", TopicBatchQueued, err)
	}

	go func() {
		for msg := range messages {
			b.dispatch(msg, fn)
		}
	}()
	return nil
}

// dispatch decodes msg and runs fn. Messages are always acked: a failed
// handler is logged, not retried.
func (b *Bus) dispatch(msg *message.Message, fn BatchQueuedHandler) {
	defer msg.Ack()

	var ev BatchQueued
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		b.log.Error("events: dropping malformed message",
			slog.String("topic", TopicBatchQueued),
			slog.String("message_id", msg.UUID),
			slog.Any("error", err),
		)
		return
	}
	if err := fn(msg.Context(), ev); err != nil {
		b.log.Error("events: handler failed",
			slog.String("topic", TopicBatchQueued),
			slog.String("batch_id", ev.BatchID),
			slog.Any("error", err),
		)
	}
}

// Close stops the bus and ends all subscriptions.
func (b *Bus) Close() error {
	if err := b.pubsub.Close(); err != nil {
		return fmt.Errorf("events: close: %w", err)
	}
	return nil
}
