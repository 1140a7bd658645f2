package search

import (
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
)

// Failure messages reported in Status.Error.
const (
	MsgTimedOut          = "Timed out"
	MsgShardsFailed      = "Some shards failed"
	MsgExecutionFailed   = "Query execution failed"
	MsgSchemaUnavailable = "Schema unavailable"
)

// Status is the outcome of one search. Failures never surface as errors;
// Success is false and Error carries the message.
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Hits    int    `json:"hits,omitempty"`
	Total   int64  `json:"total,omitempty"`
	Took    int64  `json:"took,omitempty"`
}

// Response is a search result with its status.
type Response struct {
	Status       Status          `json:"status"`
	Mode         mode.Mode       `json:"mode,omitempty"`
	ProgressID   string          `json:"progress_id,omitempty"`
	Records      []result.Record `json:"results"`
	Aggregations map[string]any  `json:"aggregations,omitempty"`
}

// CountResponse is a count result with its status.
type CountResponse struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// Plan is the engine request a search would issue.
type Plan struct {
	Index  string           `json:"index"`
	Mode   mode.Mode        `json:"mode"`
	Bodies []map[string]any `json:"bodies"`
}

func failed(msg string) Status {
	return Status{Success: false, Error: msg}
}

// classify derives the status of an executed envelope.
func classify(env result.Envelope) Status {
	st := Status{Success: true, Hits: len(env.Hits), Total: env.Total, Took: env.ElapsedMs}
	switch {
	case env.TimedOut:
		return Status{Success: false, Error: MsgTimedOut, Took: env.ElapsedMs}
	case env.Shards.Total > 0 && env.Shards.Failed >= env.Shards.Total:
		return Status{Success: false, Error: MsgExecutionFailed, Took: env.ElapsedMs}
	case env.Shards.Failed > 0:
		st.Success = false
		st.Error = MsgShardsFailed
	}
	return st
}

// merge concatenates the envelopes of a batched search.
func merge(envs []result.Envelope) result.Envelope {
	var out result.Envelope
	for _, e := range envs {
		out.ElapsedMs = max(out.ElapsedMs, e.ElapsedMs)
		out.TimedOut = out.TimedOut || e.TimedOut
		out.Shards.Total += e.Shards.Total
		out.Shards.Successful += e.Shards.Successful
		out.Shards.Skipped += e.Shards.Skipped
		out.Shards.Failed += e.Shards.Failed
		out.Total += e.Total
		out.Hits = append(out.Hits, e.Hits...)
	}
	return out
}
