package worker

import (
	"context"
	"log/slog"

	audit "trustex/pkg/platform/audit"
)

// HandleFunc processes one dequeued event.
type HandleFunc func(ctx context.Context, event audit.Event) error

// Worker consumes audit events from a channel until the channel is closed or
// the context ends. Handler errors are logged and do not stop the loop.
type Worker struct {
	handle HandleFunc
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(handle HandleFunc, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{handle: handle, inbox: inbox, logger: logger}
}

// Run blocks until inbox is closed (returning nil) or ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
