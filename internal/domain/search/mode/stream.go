package mode

import "time"

// Streamed execution defaults.
const (
	DefaultScrollThreshold = 10000
	DefaultBatchSize       = 1000
	DefaultKeepAlive       = time.Minute
)

// StreamOptions configures a streamed execution.
type StreamOptions struct {
	BatchSize int
	KeepAlive time.Duration
	// Limit stops the stream after this many hits. Zero means unbounded.
	Limit int64
	// OnBatch is called after every non-empty fetched batch with its size.
	OnBatch func(n int)
}

// WithDefaults fills unset fields.
func (o StreamOptions) WithDefaults() StreamOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	return o
}
