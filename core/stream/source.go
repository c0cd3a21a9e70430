package stream

import (
	"context"
	"io"

	"switchboard/core/provider"
)

// ChanSource adapts a channel-based transport to Source.
// The channel closing marks the end of the stream; errFn then reports whether
// it ended in failure.
type ChanSource[E any] struct {
	events  <-chan E
	closeFn func() error
	errFn   func() error
}

// FromChannel wraps events. closeFn releases the transport; errFn returns the
// transport's terminal error, if any. Either may be nil.
func FromChannel[E any](events <-chan E, closeFn, errFn func() error) *ChanSource[E] {
	return &ChanSource[E]{events: events, closeFn: closeFn, errFn: errFn}
}

func (s *ChanSource[E]) Recv(ctx context.Context) (E, error) {
	var zero E
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case event, ok := <-s.events:
		if ok {
			return event, nil
		}
		if s.errFn != nil {
			if err := s.errFn(); err != nil {
				return zero, err
			}
		}
		return zero, io.EOF
	}
}

func (s *ChanSource[E]) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// FuncSource adapts a pull-style transport (Recv until io.EOF) to Source.
// Cancellation is delivered by the transport's own request context.
type FuncSource[E any] struct {
	recv    func() (E, error)
	closeFn func() error
}

// FromFunc wraps a pull function such as an SDK stream's Recv method.
func FromFunc[E any](recv func() (E, error), closeFn func() error) *FuncSource[E] {
	return &FuncSource[E]{recv: recv, closeFn: closeFn}
}

func (s *FuncSource[E]) Recv(ctx context.Context) (E, error) {
	if err := ctx.Err(); err != nil {
		var zero E
		return zero, err
	}
	return s.recv()
}

func (s *FuncSource[E]) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Drain reads it to the end, collecting every chunk. It is meant for callers
// that do not need incremental output.
func Drain(it provider.StreamIterator) ([]provider.StreamChunk, error) {
	var out []provider.StreamChunk
	for {
		chunk, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk)
	}
}
