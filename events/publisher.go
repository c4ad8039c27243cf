// Package events publishes execution lifecycle events so external
// consumers (UIs, audit pipelines) can follow runs in real time.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redisWrapper "github.com/lyzr/flowd/common/redis"
)

// EventType identifies a lifecycle event
type EventType string

const (
	ExecutionStarted  EventType = "execution.started"
	ExecutionFinished EventType = "execution.finished"
	NodeStarted       EventType = "node.started"
	NodeCompleted     EventType = "node.completed"
	NodeFailed        EventType = "node.failed"
	NodeSkipped       EventType = "node.skipped"
)

// Event is one lifecycle notification
type Event struct {
	Type        EventType              `json:"type"`
	ExecutionID uuid.UUID              `json:"execution_id"`
	WorkflowID  uuid.UUID              `json:"workflow_id"`
	NodeID      string                 `json:"node_id,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
}

// Publisher emits lifecycle events. Publishing is best-effort; the
// scheduler never fails a run over a lost event.
type Publisher interface {
	Publish(ctx context.Context, event *Event)
}

// Logger interface for logging
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Noop discards all events
type Noop struct{}

// Publish does nothing
func (Noop) Publish(ctx context.Context, event *Event) {}

// RedisPublisher publishes events to a per-execution pub/sub channel
type RedisPublisher struct {
	redis  *redisWrapper.Client
	logger Logger
}

// NewRedisPublisher creates a Redis-backed publisher
func NewRedisPublisher(redis *redisWrapper.Client, logger Logger) *RedisPublisher {
	return &RedisPublisher{
		redis:  redis,
		logger: logger,
	}
}

// Channel returns the pub/sub channel for one execution
func Channel(executionID uuid.UUID) string {
	return "flowd:events:" + executionID.String()
}

// Publish serializes the event and publishes it; failures are logged
// and swallowed
func (p *RedisPublisher) Publish(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to serialize event", "type", event.Type, "error", err)
		return
	}

	if err := p.redis.Publish(ctx, Channel(event.ExecutionID), payload); err != nil {
		p.logger.Warn("failed to publish event", "type", event.Type, "error", err)
		return
	}

	p.logger.Debug("event published", "type", event.Type, "execution_id", event.ExecutionID)
}
