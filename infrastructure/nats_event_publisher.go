package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"raffle/domain/events"
	"raffle/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const sourceService = "raffle"

// EventEnvelope wraps every domain event published to NATS
type EventEnvelope struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	Timestamp     *timestamppb.Timestamp `json:"timestamp"`
	SourceService string                 `json:"source_service"`
	Payload       json.RawMessage        `json:"payload"`
}

// Publisher is the part of the NATS client the event publisher uses
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSEventPublisher implements the EventPublisher interface using NATS.
// Local handlers run in-process before the event goes out on the bus.
type NATSEventPublisher struct {
	natsClient    Publisher // nil publishes to local handlers only
	subjectMapper *EventSubjectMapper

	mu            sync.RWMutex
	localHandlers map[events.EventType][]func(context.Context, events.Event) error
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(natsClient Publisher, subjectMapper *EventSubjectMapper) *NATSEventPublisher {
	return &NATSEventPublisher{
		natsClient:    natsClient,
		subjectMapper: subjectMapper,
		localHandlers: make(map[events.EventType][]func(context.Context, events.Event) error),
	}
}

// NewLocalEventPublisher creates a publisher that only dispatches to local handlers
func NewLocalEventPublisher() *NATSEventPublisher {
	return NewNATSEventPublisher(nil, NewEventSubjectMapper())
}

// Publish publishes an event to NATS using the appropriate subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx := context.Background()
	eventType := event.Type()

	p.mu.RLock()
	handlers := p.localHandlers[eventType]
	p.mu.RUnlock()

	for _, handler := range handlers {
		log.WithFields(log.Fields{
			"eventType": eventType,
		}).Debug("Invoking local handler for event")

		if err := handler(ctx, event); err != nil {
			// local handler errors never block other handlers or the bus
			log.WithFields(log.Fields{
				"eventType": eventType,
				"error":     err,
			}).Error("Local event handler failed")
		}
	}

	if p.natsClient == nil {
		return nil
	}

	subject := p.subjectMapper.MapEventToSubject(event)

	envelope, err := NewEventEnvelope(event)
	if err != nil {
		return err
	}

	envelopeData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.natsClient.Publish(ctx, subject, envelopeData); err != nil {
		if strings.Contains(err.Error(), "no response from stream") {
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	observability.GetMetrics().RecordNATSMessagePublished(string(eventType))

	log.WithFields(log.Fields{
		"eventType": eventType,
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// NewEventEnvelope serializes an event into its envelope
func NewEventEnvelope(event events.Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     timestamppb.Now(),
		SourceService: sourceService,
		Payload:       payload,
	}, nil
}

// RegisterLocalHandler registers a handler that will be invoked locally for events
func (p *NATSEventPublisher) RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error) {
	p.mu.Lock()
	p.localHandlers[eventType] = append(p.localHandlers[eventType], handler)
	count := len(p.localHandlers[eventType])
	p.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": count,
	}).Info("Registered local event handler")
}

// EnsureDomainEventStream ensures the raffle_events stream exists with the correct subjects
func EnsureDomainEventStream(client *NATSClient, mapper *EventSubjectMapper) error {
	return client.EnsureStream("raffle_events", mapper.GetAllSubjects(), "Raffle domain events")
}
