// Package stream turns backend-native event streams into canonical chunks.
package stream

import (
	"context"
	"errors"
	"io"

	"switchboard/core/provider"

	"github.com/rs/zerolog"
)

// Source yields backend events until io.EOF.
type Source[E any] interface {
	// Recv blocks for the next event. It returns io.EOF when the transport
	// finished cleanly, or ctx.Err() if ctx is cancelled first.
	Recv(ctx context.Context) (E, error)
	Close() error
}

// Translator maps one backend's events onto canonical chunks.
type Translator[E any] interface {
	// Translate returns the chunks for one event, in order. Returning an error
	// wrapping provider.ErrMalformedEvent drops the event; any other error ends the stream.
	Translate(event E) ([]provider.StreamChunk, error)
	// Usage returns the final token usage once the source is drained, or nil if
	// the backend reported none.
	Usage() *provider.Usage
}

// Meter prices the final usage. It runs after the last event, so routing
// signals seen during the stream are already reflected.
type Meter func(provider.Usage) float64

// Normalizer is a provider.StreamIterator over a translated source.
// It is single-consumer and not restartable.
type Normalizer[E any] struct {
	ctx     context.Context
	src     Source[E]
	tr      Translator[E]
	meter   Meter
	log     zerolog.Logger
	pending []provider.StreamChunk
	done    bool
	closed  bool
}

// New returns a normalizer reading src until EOF, error, or ctx cancellation.
func New[E any](ctx context.Context, src Source[E], tr Translator[E], meter Meter, log zerolog.Logger) *Normalizer[E] {
	return &Normalizer[E]{ctx: ctx, src: src, tr: tr, meter: meter, log: log}
}

// Next returns the next canonical chunk, io.EOF at the end of a completed
// stream, or the error that ended it.
func (n *Normalizer[E]) Next() (provider.StreamChunk, error) {
	for {
		if len(n.pending) > 0 {
			// One event can yield several chunks; none are handed out after cancellation.
			if err := n.ctx.Err(); err != nil {
				return provider.StreamChunk{}, n.abort(err)
			}
			chunk := n.pending[0]
			n.pending = n.pending[1:]
			return chunk, nil
		}
		if n.done {
			return provider.StreamChunk{}, io.EOF
		}
		if err := n.ctx.Err(); err != nil {
			return provider.StreamChunk{}, n.abort(err)
		}

		event, err := n.src.Recv(n.ctx)
		if errors.Is(err, io.EOF) {
			n.finish()
			continue
		}
		if err != nil {
			if ctxErr := n.ctx.Err(); ctxErr != nil {
				return provider.StreamChunk{}, n.abort(ctxErr)
			}
			return provider.StreamChunk{}, n.abort(err)
		}

		chunks, err := n.tr.Translate(event)
		if errors.Is(err, provider.ErrMalformedEvent) {
			n.log.Warn().Err(err).Msg("dropping stream event")
			continue
		}
		if err != nil {
			return provider.StreamChunk{}, n.abort(err)
		}
		n.pending = append(n.pending, chunks...)
	}
}

// Close releases the transport. Further calls to Next return io.EOF.
func (n *Normalizer[E]) Close() error {
	n.done = true
	n.pending = nil
	return n.closeSource()
}

// finish emits the final usage chunk after a clean end of stream.
func (n *Normalizer[E]) finish() {
	n.done = true
	if err := n.closeSource(); err != nil {
		n.log.Debug().Err(err).Msg("closing drained stream")
	}
	usage := n.tr.Usage()
	if usage == nil {
		return
	}
	chunk := provider.StreamChunk{Event: provider.EventUsage, Usage: usage}
	if n.meter != nil {
		chunk.Cost = n.meter(*usage)
	}
	n.pending = append(n.pending, chunk)
}

// abort ends the stream without a usage chunk.
func (n *Normalizer[E]) abort(err error) error {
	n.done = true
	n.pending = nil
	if cerr := n.closeSource(); cerr != nil {
		n.log.Debug().Err(cerr).Msg("closing aborted stream")
	}
	return err
}

func (n *Normalizer[E]) closeSource() error {
	if n.closed {
		return nil
	}
	n.closed = true
	return n.src.Close()
}

var _ provider.StreamIterator = (*Normalizer[int])(nil)
