// Package lifecycle exposes the context bus as a lifecycle event source.
package lifecycle

import (
	"context"
	"sync/atomic"

	"github.com/aretw0/lifecycle"

	"github.com/Josephrp/creditnexus-sub000/pkg/bus"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// DefaultBuffer is the number of contexts held while the consumer is slow.
const DefaultBuffer = 64

// Subscriber is the subscription side of *bus.Bus.
type Subscriber interface {
	Subscribe(fn bus.Handler) (unsubscribe func())
}

// BusSource forwards every published context as a lifecycle.Event.
// Bus delivery never blocks on the consumer: contexts beyond the buffer are
// dropped and counted.
type BusSource struct {
	bus     Subscriber
	buffer  chan core.Context
	out     chan lifecycle.Event
	dropped atomic.Uint64
}

var _ lifecycle.Source = (*BusSource)(nil)

// NewSource creates a source over b. A buffer below one uses DefaultBuffer.
func NewSource(b Subscriber, buffer int) *BusSource {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &BusSource{
		bus:    b,
		buffer: make(chan core.Context, buffer),
		out:    make(chan lifecycle.Event),
	}
}

func (s *BusSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Dropped reports how many contexts were lost to a full buffer.
func (s *BusSource) Dropped() uint64 {
	return s.dropped.Load()
}

// Start subscribes to the bus until ctx is done, then closes Events.
func (s *BusSource) Start(ctx context.Context) error {
	unsubscribe := s.bus.Subscribe(func(c core.Context) {
		select {
		case s.buffer <- c:
		default:
			s.dropped.Add(1)
		}
	})

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case c := <-s.buffer:
				// core.Context implements lifecycle.Event (has String())
				select {
				case s.out <- c:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
