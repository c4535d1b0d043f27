package hooks

import (
	"context"

	"go.uber.org/zap"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
)

// Event names the extension points of the download pipeline.
type Event string

const (
	Load               Event = "OnFileDownloadLoad"
	BeforeDirOpen      Event = "OnFileDownloadBeforeDirOpen"
	AfterDirOpen       Event = "OnFileDownloadAfterDirOpen"
	BeforeFileDownload Event = "OnFileDownloadBeforeFileDownload"
	AfterFileDownload  Event = "OnFileDownloadAfterFileDownload"
	BeforeFileUpload   Event = "OnFileDownloadBeforeFileUpload"
	AfterFileUpload    Event = "OnFileDownloadAfterFileUpload"
	BeforeFileDelete   Event = "OnFileDownloadBeforeFileDelete"
	AfterFileDelete    Event = "OnFileDownloadAfterFileDelete"
)

// Outcome is what a handler's verdict means for the operation in flight.
type Outcome int

const (
	// Continue lets the operation proceed.
	Continue Outcome = iota
	// Abort stops the operation.
	Abort
	// Skip leaves the current item out but carries on with the rest.
	Skip
)

// Payload carries the facts of the operation to the handlers.
type Payload struct {
	Hash          string
	Ctx           string
	MediaSourceID int
	Path          string
	Extended      map[string]interface{}
	Count         int64
}

// Handler inspects a payload and votes on the operation. Errors count as
// Abort.
type Handler func(ctx context.Context, event Event, payload *Payload) (Outcome, error)

// Dispatcher fans an event out to its registered handlers in order. The zero
// value is usable and always continues.
type Dispatcher struct {
	handlers map[Event][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[Event][]Handler{}}
}

func (d *Dispatcher) Register(event Event, h Handler) {
	if d.handlers == nil {
		d.handlers = map[Event][]Handler{}
	}
	d.handlers[event] = append(d.handlers[event], h)
}

// Fire runs the handlers for event. The first non-Continue verdict wins. A
// handler panic or error is logged and treated as Abort so a broken handler
// never lets an operation through.
func (d *Dispatcher) Fire(ctx context.Context, event Event, payload *Payload) Outcome {
	if d == nil {
		return Continue
	}
	for _, h := range d.handlers[event] {
		outcome := d.fireOne(ctx, event, payload, h)
		if outcome != Continue {
			return outcome
		}
	}
	return Continue
}

func (d *Dispatcher) fireOne(ctx context.Context, event Event, payload *Payload, h Handler) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger.Error("hook handler panicked",
				zap.String("event", string(event)), zap.Any("panic", r))
			outcome = Abort
		}
	}()
	outcome, err := h(ctx, event, payload)
	if err != nil {
		logging.Logger.Error("hook handler failed",
			zap.String("event", string(event)), zap.Error(err))
		return Abort
	}
	return outcome
}
