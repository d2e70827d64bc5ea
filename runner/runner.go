package runner

import (
	"context"
	"errors"
	"sync"

	"captionkit/core"
)

const channelBuffer = 100

var ErrNotRunning = errors.New("runner: not running")

// Runner chains handlers with buffered channels. Packets a handler relays to
// the top service are fed back into the first handler; whatever leaves the
// last handler goes to OnOutput.
type Runner struct {
	Handlers  []core.IHandler
	OnOutput  func(packet *core.EventPacket)
	OnWarning func(warning *core.WarningEvent)

	mu             sync.Mutex
	ctx            context.Context
	cancel         context.CancelFunc
	firstInputChan chan *core.EventPacket
	topOutputChan  chan *core.EventPacket
	lastOutputChan chan *core.EventPacket
	listener       sync.WaitGroup
	logger         *core.Logger
}

func NewRunner(handlers []core.IHandler) *Runner {
	return &Runner{
		Handlers: handlers,
	}
}

// Start wires and starts every handler under a child of ctx. Handlers are all
// initialized before any is started, so a device that cannot be opened fails
// Start without leaving goroutines behind.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Handlers) == 0 {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.logger = core.LoggerFromContext(ctx, nil).With(map[string]any{"component": "runner"})
	r.topOutputChan = make(chan *core.EventPacket, channelBuffer)
	r.lastOutputChan = make(chan *core.EventPacket, channelBuffer)

	inputChans := make([]chan *core.EventPacket, len(r.Handlers))
	for i := range inputChans {
		inputChans[i] = make(chan *core.EventPacket, channelBuffer)
	}
	r.firstInputChan = inputChans[0]

	for i, handler := range r.Handlers {
		var outputNextChan chan<- *core.EventPacket
		if i < len(r.Handlers)-1 {
			outputNextChan = inputChans[i+1]
		} else {
			outputNextChan = r.lastOutputChan
		}

		if err := handler.Initialize(inputChans[i], outputNextChan, r.topOutputChan, r.ctx); err != nil {
			r.abort(i + 1)
			return err
		}
	}

	for i, handler := range r.Handlers {
		if err := handler.Start(); err != nil {
			r.abort(len(r.Handlers))
			r.logger.Error("handler failed to start", "index", i, "error", err)
			return err
		}
	}

	r.listener.Add(1)
	go r.listenToOutputs(r.ctx)
	return nil
}

// abort cancels the run and cleans up the first n handlers.
func (r *Runner) abort(n int) {
	r.cancel()
	for _, handler := range r.Handlers[:n] {
		if err := handler.Cleanup(); err != nil {
			r.logger.Warn("cleanup after failed start", "error", err)
		}
	}
	r.cancel = nil
}

// Inject feeds event into the head of the pipeline, as if a handler had sent
// it to the top service. The packet then travels down the chain like any
// other, so handlers that only forward it pass it on.
func (r *Runner) Inject(event core.IEvent) error {
	r.mu.Lock()
	ctx, in := r.ctx, r.firstInputChan
	running := r.cancel != nil
	r.mu.Unlock()
	if !running || ctx.Err() != nil {
		return ErrNotRunning
	}
	select {
	case in <- core.NewEventPacket(event, core.EventRelayDestinationNextService, "Runner"):
		return nil
	case <-ctx.Done():
		return ErrNotRunning
	}
}

func (r *Runner) listenToOutputs(ctx context.Context) {
	defer r.listener.Done()
	for {
		select {
		case packet := <-r.lastOutputChan:
			r.processFinalOutput(packet)
		case packet := <-r.topOutputChan:
			r.processTopOutput(ctx, packet)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) processFinalOutput(packet *core.EventPacket) {
	if r.OnOutput != nil {
		r.OnOutput(packet)
	}
}

func (r *Runner) processTopOutput(ctx context.Context, packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *core.WarningEvent:
		r.logger.Warn("stage reported a failure", "stage", event.Stage, "error", event.Error)
		if r.OnWarning != nil {
			r.OnWarning(event)
		}
	default:
		// Re-injected packets flow downstream from the head.
		packet.Destination = core.EventRelayDestinationNextService
		select {
		case r.firstInputChan <- packet:
		case <-ctx.Done():
		}
	}
}

// Stop cancels the pipeline and cleans up every handler in order.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.cancel = nil
	r.listener.Wait()

	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) Reset() error {
	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
