package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
)

// eventBuffer bounds how far the worker may run ahead of a slow consumer.
const eventBuffer = 256

// Event is published by a worker: any number of Progress, then exactly one Done.
type Event interface {
	isEvent()
}

// Progress is one log line from the pipeline.
type Progress struct {
	Level   logrus.Level
	Message string
	Fields  map[string]interface{}
}

// Done is the terminal event.
type Done struct {
	OK     bool
	Result *Result
	Err    error
}

func (Progress) isEvent() {}
func (Done) isEvent()     {}

// Start runs p on its own goroutine. The returned channel delivers progress in order,
// then a single Done, then closes. Cancelling ctx stops the run at the next stage
// boundary or input file and leaves no output behind.
func Start(ctx context.Context, p Pipeline, opts Options) <-chan Event {
	events := make(chan Event, eventBuffer)
	opts.Logger = runLogger(opts.Logger, &progressHook{events: events})

	go func() {
		defer close(events)
		result, err := Run(ctx, p, opts)
		events <- Done{OK: err == nil, Result: result, Err: err}
	}()
	return events
}

// Wait drains events, calling onProgress for each Progress, and returns the Done.
func Wait(events <-chan Event, onProgress func(Progress)) Done {
	var done Done
	for ev := range events {
		switch e := ev.(type) {
		case Progress:
			if onProgress != nil {
				onProgress(e)
			}
		case Done:
			done = e
		}
	}
	return done
}
