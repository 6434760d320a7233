// Package stream implements the bounded single-producer/single-consumer
// queue that carries generated text fragments from a generation goroutine to
// the goroutine writing the HTTP response.
//
// A Stream ends with exactly one terminal item (End or Fail). The terminal
// item is sticky: once the consumer has read it, every later Next returns it
// again.
package stream

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 64

var (
	// ErrSealed is returned by Push after End or Fail succeeded.
	ErrSealed = errors.New("stream: already terminated")
	// ErrAbandoned is returned to the producer once the consumer stopped reading.
	ErrAbandoned = errors.New("stream: consumer abandoned")
)

// Kind tags a queued item.
type Kind int

const (
	KindFragment Kind = iota
	KindEnd
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "fragment"
	case KindEnd:
		return "end"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Item is one element read from a Stream.
type Item struct {
	Kind Kind
	Text string
	Err  error
}

// Terminal reports whether the item ends the stream.
func (it Item) Terminal() bool { return it.Kind != KindFragment }

// Stream is a bounded FIFO of fragments with a terminal signal.
// Push, End and Fail belong to the producer; Next and Abandon to the consumer.
type Stream struct {
	items chan Item

	mu     sync.Mutex
	sealed bool

	abandonOnce sync.Once
	abandoned   chan struct{}

	// consumer-side only
	term *Item
}

// New returns an empty stream holding at most capacity pending items.
func New(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream{
		items:     make(chan Item, capacity),
		abandoned: make(chan struct{}),
	}
}

// Push enqueues a fragment, blocking while the queue is full.
// It fails with ErrSealed after a terminal item, ErrAbandoned once the
// consumer walked away, or the context error.
func (s *Stream) Push(ctx context.Context, text string) error {
	s.mu.Lock()
	sealed := s.sealed
	s.mu.Unlock()
	if sealed {
		return ErrSealed
	}
	select {
	case <-s.abandoned:
		return ErrAbandoned
	default:
	}
	select {
	case s.items <- Item{Kind: KindFragment, Text: text}:
		return nil
	case <-s.abandoned:
		return ErrAbandoned
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End enqueues the end-of-stream signal, waiting behind queued fragments if
// the queue is full. It reports false when the stream was already terminated
// or abandoned.
func (s *Stream) End() bool {
	return s.seal(Item{Kind: KindEnd})
}

// Fail enqueues an error signal. A nil err is replaced by a generic error.
// It reports false when the stream was already terminated or abandoned.
func (s *Stream) Fail(err error) bool {
	if err == nil {
		err = errors.New("stream failed")
	}
	return s.seal(Item{Kind: KindError, Err: err})
}

func (s *Stream) seal(it Item) bool {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return false
	}
	s.sealed = true
	s.mu.Unlock()
	select {
	case s.items <- it:
		return true
	case <-s.abandoned:
		return false
	}
}

// Sealed reports whether a terminal item has been enqueued.
func (s *Stream) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// Next blocks until a fragment or the terminal item is available, or ctx is done.
func (s *Stream) Next(ctx context.Context) (Item, error) {
	if s.term != nil {
		return *s.term, nil
	}
	select {
	case it := <-s.items:
		if it.Terminal() {
			s.term = &it
		}
		return it, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Abandon tells the producer that nobody reads anymore. Pending and future
// pushes return ErrAbandoned. Safe to call more than once.
func (s *Stream) Abandon() {
	s.abandonOnce.Do(func() { close(s.abandoned) })
}

// Len returns the number of queued items.
func (s *Stream) Len() int { return len(s.items) }
