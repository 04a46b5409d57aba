package telemetry

import (
	"context"
	"log"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// LifecycleEmitter publishes push-channel lifecycle events (connect,
// disconnect, reconnect) for offline analysis of client connectivity.
type LifecycleEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type LifecycleEnvelope struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	OccurredAt    string           `json:"occurred_at"`
	Service       string           `json:"service"`
	Environment   string           `json:"environment"`
	Payload       LifecyclePayload `json:"payload"`
}

type LifecyclePayload struct {
	Event    string `json:"event"`
	Endpoint string `json:"endpoint"`
	Reason   string `json:"reason,omitempty"`
}

func NewLifecycleEmitter(publisher Publisher, routingKey, service, environment string) *LifecycleEmitter {
	return &LifecycleEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// ConnectionEvent satisfies the connection manager's event sink.
func (e *LifecycleEmitter) ConnectionEvent(event, endpoint, reason string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := LifecycleEnvelope{
		SchemaVersion: 1,
		EventType:     "ws_lifecycle",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload: LifecyclePayload{
			Event:    event,
			Endpoint: endpoint,
			Reason:   reason,
		},
	}

	if err := e.publisher.Publish(context.Background(), e.routingKey, envelope); err != nil {
		log.Printf("lifecycle publish failed: %v", err)
	}
}
