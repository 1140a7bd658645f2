package db

// SearchQuery is the input for a search call. Body carries the full request
// body, including size, from and sort.
type SearchQuery struct {
	Index string
	Body  map[string]any
}

// ShardStats reports per-shard execution outcome.
type ShardStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// TotalHits is the engine's hit count.
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// Hits is the hit section of a search response.
type Hits struct {
	Total TotalHits `json:"total"`
	Hits  []Hit     `json:"hits"`
}

// InnerHitGroup is one named inner-hit projection of a hit.
type InnerHitGroup struct {
	Hits Hits `json:"hits"`
}

// Hit is a single matched document.
type Hit struct {
	ID        string                   `json:"_id"`
	Index     string                   `json:"_index"`
	Score     float64                  `json:"_score"`
	Source    map[string]any           `json:"_source"`
	InnerHits map[string]InnerHitGroup `json:"inner_hits,omitempty"`
	Sort      []any                    `json:"sort,omitempty"`
}

// SearchResponse is the decoded output of a search or scroll call.
type SearchResponse struct {
	Took         int64          `json:"took"`
	TimedOut     bool           `json:"timed_out"`
	Shards       ShardStats     `json:"_shards"`
	Hits         Hits           `json:"hits"`
	Aggregations map[string]any `json:"aggregations,omitempty"`
	ScrollID     string         `json:"_scroll_id,omitempty"`
}

// MultiSearchItem is one response of a batched search. Err is set when that
// search failed on its own.
type MultiSearchItem struct {
	Response *SearchResponse
	Err      error
}
