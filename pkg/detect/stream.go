package detect

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed     = errors.New("detect: stream closed")
	ErrSubscribed = errors.New("detect: stream already has a consumer")
)

// Stream - ordered, single consumer queue of detection events.
// Publish blocks while the buffer is full, events are never dropped.
type Stream struct {
	ch   chan *Event
	done chan struct{}

	mu         sync.RWMutex
	closed     bool
	subscribed bool
	once       sync.Once
}

func NewStream(size int) *Stream {
	if size < 0 {
		size = 0
	}
	return &Stream{
		ch:   make(chan *Event, size),
		done: make(chan struct{}),
	}
}

// Publish waits for buffer space, ctx cancellation or stream close.
func (s *Stream) Publish(ctx context.Context, ev *Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Subscribe returns the event channel. Only the first call succeeds, the
// sequence can not be restarted. The channel is closed after Close.
func (s *Stream) Subscribe() (<-chan *Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return nil, ErrSubscribed
	}
	s.subscribed = true
	return s.ch, nil
}

// Len returns number of buffered events.
func (s *Stream) Len() int {
	return len(s.ch)
}

func (s *Stream) Close() {
	// unblock publishers first, they hold the read lock
	s.once.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
