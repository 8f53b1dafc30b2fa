// Package events streams applied diary mutations to NATS JetStream so other
// processes can follow user activity.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/liamwears/reeldiary/internal/models"
)

// Stream settings
const (
	StreamName    = "DIARY_MUTATIONS"
	SubjectPrefix = "diary.mutations"
	eventVersion  = "1.0.0"
)

// Publisher publishes mutation events
type Publisher interface {
	PublishMutation(ctx context.Context, event models.MutationEvent) error
	Close() error
}

// Envelope wraps every published event
type Envelope struct {
	Type          string               `json:"type"`
	Version       string               `json:"version"`
	OccurredAt    time.Time            `json:"occurredAt"`
	CorrelationID string               `json:"correlationId"`
	Payload       models.MutationEvent `json:"payload"`
}

// Subject returns the subject an operation is published on
func Subject(op models.Operation) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, op)
}

// NewEnvelope wraps an event for publishing
func NewEnvelope(event models.MutationEvent) Envelope {
	return Envelope{
		Type:          Subject(event.Op),
		Version:       eventVersion,
		OccurredAt:    event.At.UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       event,
	}
}

type noop struct{}

// NewNoop returns a publisher that drops every event
func NewNoop() Publisher { return noop{} }

func (noop) PublishMutation(context.Context, models.MutationEvent) error { return nil }

func (noop) Close() error { return nil }

type natsPub struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to NATS at url. An empty url, or any failure to
// reach JetStream, yields a no-op publisher.
func NewPublisher(url string, logger *log.Logger) Publisher {
	if url == "" {
		return NewNoop()
	}

	nc, err := nats.Connect(url, nats.Name("reeldiary"))
	if err != nil {
		logger.Printf("NATS connect failed, mutation events disabled: %v", err)
		return NewNoop()
	}

	js, err := nc.JetStream()
	if err != nil {
		logger.Printf("NATS JetStream unavailable, mutation events disabled: %v", err)
		nc.Close()
		return NewNoop()
	}

	if err := initStream(js); err != nil {
		logger.Printf("NATS stream setup failed, mutation events disabled: %v", err)
		nc.Close()
		return NewNoop()
	}

	return &natsPub{nc: nc, js: js}
}

func initStream(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ".*"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Discard:    nats.DiscardOld,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.StreamInfo(StreamName); err == nil {
		_, err = js.UpdateStream(cfg)
		if err != nil {
			return fmt.Errorf("failed to update %s stream: %w", StreamName, err)
		}
		return nil
	}
	if _, err := js.AddStream(cfg); err != nil {
		return fmt.Errorf("failed to create %s stream: %w", StreamName, err)
	}
	return nil
}

// PublishMutation publishes the event with its id as the JetStream message
// id, so a retried publish inside the duplicate window is dropped server side.
func (p *natsPub) PublishMutation(ctx context.Context, event models.MutationEvent) error {
	b, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("failed to encode mutation event: %w", err)
	}
	if _, err := p.js.Publish(Subject(event.Op), b, nats.Context(ctx), nats.MsgId(event.ID)); err != nil {
		return fmt.Errorf("failed to publish mutation event: %w", err)
	}
	return nil
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
