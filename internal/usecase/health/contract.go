package health

import "context"

// Pinger checks backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchemaCache reports how many schema snapshots are loaded.
type SchemaCache interface {
	Len() int
}
