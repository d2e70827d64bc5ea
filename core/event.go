package core

import "github.com/google/uuid"

type IEvent interface {
	GetId() string // Returns the unique identifier of the event.
}

type EventRelayDestination int

const (
	EventRelayDestinationNextService EventRelayDestination = iota + 1 // Pass to the next handler in the pipeline.
	EventRelayDestinationTopService                                   // Re-inject at the head of the pipeline so every handler sees it.
)

type EventPacket struct {
	Event       IEvent
	Destination EventRelayDestination
	Uid         string // Unique identifier for tracking the event packet.
	Relayer     string // Identifier of the handler that relayed the event.
}

func NewEventPacket(event IEvent, destination EventRelayDestination, relayer string) *EventPacket {
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uuid.New().String(),
		Relayer:     relayer,
	}
}

// WarningEvent reports a recoverable stage failure to the top of the pipeline.
type WarningEvent struct {
	Stage string
	Error string
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}
