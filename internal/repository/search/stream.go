package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/taxdex/internal/db"
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
)

// HitStream lazily pulls hits through a scroll cursor. It implements
// result.Stream and is not safe for concurrent use.
type HitStream struct {
	store    store
	opts     mode.StreamOptions
	scrollID string

	buf      []result.RawHit
	pos      int
	consumed int64
	done     bool

	total    int64
	elapsed  int64
	timedOut bool
	shards   result.Shards
}

var _ result.Stream = (*HitStream)(nil)

func newHitStream(s store, first *db.SearchResponse, opts mode.StreamOptions) *HitStream {
	hs := &HitStream{store: s, opts: opts}
	hs.absorb(first)
	hs.total = first.Hits.Total.Value
	hs.shards = toShards(first.Shards)
	return hs
}

func (hs *HitStream) absorb(resp *db.SearchResponse) {
	if resp.ScrollID != "" {
		hs.scrollID = resp.ScrollID
	}
	hs.elapsed += resp.Took
	hs.timedOut = hs.timedOut || resp.TimedOut
	hs.buf = toHits(resp.Hits.Hits)
	hs.pos = 0
	if len(hs.buf) == 0 {
		hs.done = true
	}
	if hs.opts.OnBatch != nil && len(hs.buf) > 0 {
		hs.opts.OnBatch(len(hs.buf))
	}
}

// Next returns the next hit. ok is false once the stream is exhausted or the
// limit is reached. Cancellation of ctx is reported as ctx.Err().
func (hs *HitStream) Next(ctx context.Context) (hit result.RawHit, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return result.RawHit{}, false, err
	}
	if hs.opts.Limit > 0 && hs.consumed >= hs.opts.Limit {
		return result.RawHit{}, false, nil
	}
	if hs.pos >= len(hs.buf) {
		if hs.done {
			return result.RawHit{}, false, nil
		}
		resp, err := hs.store.Scroll(ctx, hs.scrollID, hs.opts.KeepAlive)
		if err != nil {
			return result.RawHit{}, false, fmt.Errorf("scroll: %w", err)
		}
		hs.absorb(resp)
		if hs.done {
			return result.RawHit{}, false, nil
		}
	}
	hit = hs.buf[hs.pos]
	hs.pos++
	hs.consumed++
	return hit, true, nil
}

// Total returns the total hit count reported by the engine.
func (hs *HitStream) Total() int64 { return hs.total }

// Consumed returns the number of hits returned so far.
func (hs *HitStream) Consumed() int64 { return hs.consumed }

// Envelope returns the accumulated execution metadata with hits attached.
func (hs *HitStream) Envelope(hits []result.RawHit) result.Envelope {
	return result.Envelope{
		ElapsedMs: hs.elapsed,
		TimedOut:  hs.timedOut,
		Shards:    hs.shards,
		Total:     hs.total,
		Hits:      hits,
	}
}

// Close releases the scroll cursor. It uses a detached context so that a
// cancelled request still frees server-side resources.
func (hs *HitStream) Close(ctx context.Context) error {
	if hs.scrollID == "" {
		return nil
	}
	id := hs.scrollID
	hs.scrollID = ""
	hs.done = true
	if err := hs.store.ClearScroll(context.WithoutCancel(ctx), id); err != nil {
		return fmt.Errorf("clear scroll: %w", err)
	}
	return nil
}
