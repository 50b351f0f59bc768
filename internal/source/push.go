package source

import (
	"context"
	"sync"
)

// DefaultPushBuffer is the number of results a push source holds before Deliver blocks.
const DefaultPushBuffer = 128

// PushSource adapts callback-style detectors: each Deliver call hands over one result.
type PushSource struct {
	in chan Result

	mu        sync.Mutex
	streaming bool
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPushSource creates a push source with the given buffer size.
func NewPushSource(buffer int) *PushSource {
	if buffer < 0 {
		buffer = DefaultPushBuffer
	}
	return &PushSource{
		in:     make(chan Result, buffer),
		closed: make(chan struct{}),
	}
}

// Deliver is the result callback. It blocks while the buffer is full.
func (s *PushSource) Deliver(ctx context.Context, res Result) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrClosed
	case s.in <- res:
		return nil
	}
}

func (s *PushSource) Results(ctx context.Context) (<-chan Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}
	if s.streaming {
		return nil, ErrAlreadyStreaming
	}
	s.streaming = true

	out := make(chan Result)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case res := <-s.in:
				select {
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				case out <- res:
				}
			}
		}
	}()

	return out, nil
}

func (s *PushSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
