package mode

// Mode is the execution strategy for one search request.
type Mode string

// Execution modes.
const (
	// Bounded issues a single search call.
	Bounded Mode = "bounded"
	// Streamed pulls fixed-size batches through a scroll cursor.
	Streamed Mode = "streamed"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Bounded || m == Streamed
}

// Select picks the execution mode. Requests at or above the scroll threshold
// stream unless they carry an aggregation, which needs a single response.
func Select(size int, hasAggregations bool, scrollThreshold int) Mode {
	if hasAggregations || size < scrollThreshold {
		return Bounded
	}
	return Streamed
}
