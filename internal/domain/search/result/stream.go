package result

import "context"

// Stream is a lazily pulled, finite, non-restartable sequence of raw hits.
type Stream interface {
	// Next returns the next hit; ok is false once the stream is exhausted.
	Next(ctx context.Context) (hit RawHit, ok bool, err error)
	// Total returns the engine-reported total hit count.
	Total() int64
	// Consumed returns the number of hits returned so far.
	Consumed() int64
	// Envelope wraps hits with the execution metadata gathered so far.
	Envelope(hits []RawHit) Envelope
	// Close releases the server-side cursor.
	Close(ctx context.Context) error
}
