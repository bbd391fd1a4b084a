package source

import (
	"context"
	"io"
	"sync"
)

// Channel is a Source fed by Go code. Closing it lets Next drain the events
// already buffered and then report io.EOF.
type Channel struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewChannel creates a channel source with the given buffer size.
func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Send queues ev, blocking while the buffer is full.
func (c *Channel) Send(ctx context.Context, ev Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Press queues a key-down for each name in order.
func (c *Channel) Press(ctx context.Context, names ...string) error {
	for _, n := range names {
		if err := c.Send(ctx, KeyDown(n)); err != nil {
			return err
		}
	}
	return nil
}

// Release queues a key-up for each name in order.
func (c *Channel) Release(ctx context.Context, names ...string) error {
	for _, n := range names {
		if err := c.Send(ctx, KeyUp(n)); err != nil {
			return err
		}
	}
	return nil
}

// Next implements Source.
func (c *Channel) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-c.done:
		select {
		case ev := <-c.events:
			return ev, nil
		default:
			return Event{}, io.EOF
		}
	}
}

// Close ends the stream. It is safe to call more than once.
func (c *Channel) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}
