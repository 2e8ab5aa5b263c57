package stream

import (
	"context"
	"sync"
)

const defaultBuffer = 64

// Stream carries the event sequence of a single generation run from the
// producing pipeline to one consumer. The pipeline goroutine and the image
// resolver may both send; the mutex serializes them against Close so a
// late image arrival lands as a no-op instead of a send on a closed
// channel. Exactly one goroutine receives.
type Stream struct {
	ch chan Event

	mu     sync.Mutex
	closed bool
}

func New() *Stream {
	return &Stream{ch: make(chan Event, defaultBuffer)}
}

// Emit appends ev to the sequence. It blocks when the consumer lags behind
// the buffer, and returns false once the stream is closed or ctx is done.
func (s *Stream) Emit(ctx context.Context, ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the sequence. Safe to call twice.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Events exposes the consumer side. The channel is closed after the
// terminal event.
func (s *Stream) Events() <-chan Event {
	return s.ch
}
