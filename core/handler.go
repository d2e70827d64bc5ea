package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

type IHandler interface {
	Initialize(
		InputChan <-chan *EventPacket,
		outputChan chan<- *EventPacket,
		OutputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error // Wires the handler into the pipeline.
	Start() error // Starts the handler's event loop. Must not block.
	HandleEvent(packet *EventPacket) error

	Cleanup() error // Releases resources. Called once when the pipeline stops.
	Reset() error   // Returns the handler to its initial state.
}

// BaseHandler carries the plumbing shared by every pipeline stage: channel
// wiring, the stage logger, and tracked background tasks.
type BaseHandler struct {
	Name      string
	Ctx       context.Context
	InputChan <-chan *EventPacket
	Logger    *Logger

	outputNextChan chan<- *EventPacket
	outputTopChan  chan<- *EventPacket
	tasks          *sync.WaitGroup
}

func NewBaseHandler(name string, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler{
		Name:   name,
		Logger: logger,
		tasks:  &sync.WaitGroup{},
	}
}

func (h *BaseHandler) Initialize(
	InputChan <-chan *EventPacket,
	OutputNextChan chan<- *EventPacket,
	OutputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = InputChan
	h.outputNextChan = OutputNextChan
	h.outputTopChan = OutputTopChan
	h.Ctx = ctx
	h.Logger = LoggerFromContext(ctx, h.Logger).With(map[string]any{"handler": h.Name})
	return nil
}

// StartLoop runs handle for every packet on InputChan until the pipeline
// context is cancelled.
func (h *BaseHandler) StartLoop(handle func(*EventPacket) error) {
	go func() {
		for {
			select {
			case packet := <-h.InputChan:
				if packet == nil {
					continue
				}
				if err := handle(packet); err != nil {
					h.Logger.Warn("event handling failed", "event", packet.Event.GetId(), "error", err)
				}
			case <-h.Ctx.Done():
				return
			}
		}
	}()
}

func (h *BaseHandler) Cleanup() error {
	return nil
}

func (h *BaseHandler) Reset() error {
	return nil
}

// Active reports whether the pipeline this handler belongs to is still running.
func (h *BaseHandler) Active() bool {
	return h.Ctx != nil && h.Ctx.Err() == nil
}

// SendPacket relays a packet to its destination. Packets sent after the
// pipeline stopped are dropped.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	out := h.outputNextChan
	if packet.Destination == EventRelayDestinationTopService {
		out = h.outputTopChan
	}
	if out == nil || !h.Active() {
		return
	}
	select {
	case out <- packet:
	case <-h.Ctx.Done():
	}
}

// Emit wraps event in a packet for the next handler.
func (h *BaseHandler) Emit(event IEvent) {
	h.SendPacket(NewEventPacket(event, EventRelayDestinationNextService, h.Name))
}

// Warn reports a recoverable failure to the top of the pipeline.
func (h *BaseHandler) Warn(err error) {
	h.SendPacket(NewEventPacket(&WarningEvent{Stage: h.Name, Error: err.Error()}, EventRelayDestinationTopService, h.Name))
}

// Go runs fn as a tracked task. A panic inside fn is logged instead of
// tearing down the call.
func (h *BaseHandler) Go(fn func()) {
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				h.Logger.Error("task panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// Wait blocks until every task started with Go has returned.
func (h *BaseHandler) Wait() {
	h.tasks.Wait()
}
