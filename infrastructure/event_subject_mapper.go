package infrastructure

import (
	"fmt"

	"raffle/domain/events"
)

const (
	SubjectRaffleEntered         = "raffle.entered"
	SubjectRaffleWinnerRequested = "raffle.winner_requested"
	SubjectRaffleWinnerPicked    = "raffle.winner_picked"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeRaffleEnter:
		return SubjectRaffleEntered
	case events.EventTypeRequestedRaffleWinner:
		return SubjectRaffleWinnerRequested
	case events.EventTypeWinnerPicked:
		return SubjectRaffleWinnerPicked
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case SubjectRaffleEntered:
		return events.EventTypeRaffleEnter
	case SubjectRaffleWinnerRequested:
		return events.EventTypeRequestedRaffleWinner
	case SubjectRaffleWinnerPicked:
		return events.EventTypeWinnerPicked
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectRaffleEntered,
		SubjectRaffleWinnerRequested,
		SubjectRaffleWinnerPicked,
	}
}
