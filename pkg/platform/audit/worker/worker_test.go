package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "trustex/pkg/platform/audit"
)

func TestWorker_DrainsUntilClosed(t *testing.T) {
	inbox := make(chan audit.Event, 3)
	var handled []string
	w := NewWorker(func(_ context.Context, e audit.Event) error {
		handled = append(handled, e.Action)
		if e.Action == "boom" {
			return errors.New("store down")
		}
		return nil
	}, inbox, nil)

	inbox <- audit.Event{Action: "a"}
	inbox <- audit.Event{Action: "boom"}
	inbox <- audit.Event{Action: "b"}
	close(inbox)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"a", "boom", "b"}, handled, "handler errors must not stop the loop")
}

func TestWorker_StopsOnContext(t *testing.T) {
	inbox := make(chan audit.Event)
	w := NewWorker(func(context.Context, audit.Event) error { return nil }, inbox, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Run(ctx), context.DeadlineExceeded)
}
