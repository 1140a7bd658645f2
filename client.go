package taxdex

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taxdex/internal/app"
	"github.com/kailas-cloud/taxdex/internal/config"
	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

// ErrSearchFailed is returned when a search did not complete cleanly.
// The accompanying Result may still carry partial records.
var ErrSearchFailed = errors.New("taxdex: search failed")

// ErrNotFound is returned for unknown progress ids.
var ErrNotFound = domain.ErrNotFound

// Client is the taxdex library entry point.
type Client struct {
	app    *app.App
	cfg    config.Config
	cancel context.CancelFunc
}

// New connects to Elasticsearch and returns a Client. Cached schemas are
// refreshed in the background until Close.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}
	if len(cc.cfg.Elasticsearch.Addrs) == 0 {
		return nil, errors.New("taxdex: elasticsearch address required (use WithElasticsearch)")
	}
	cc.cfg.ApplyDefaults()
	if cc.logger == nil {
		cc.logger = zap.NewNop()
	}

	a, err := app.New(ctx, cc.cfg, cc.logger)
	if err != nil {
		return nil, fmt.Errorf("taxdex: %w", err)
	}
	c := wireClient(a, cc.cfg)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	a.Start(runCtx)
	return c, nil
}

func wireClient(a *app.App, cfg config.Config) *Client {
	return &Client{app: a, cfg: cfg, cancel: func() {}}
}

// Close stops background refresh and releases connections.
func (c *Client) Close() {
	c.cancel()
	c.app.Close()
}

// Ping checks cluster connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.app.Engine.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search runs query and returns normalized records. A failed or degraded
// search returns ErrSearchFailed together with whatever records were read.
// Cancelling ctx during a streamed search returns the records read so far.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*Result, error) {
	req, err := c.request(query, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	res := fromResponse(c.app.Search.Search(ctx, &req))
	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrSearchFailed, res.Error)
	}
	return res, nil
}

// Count returns the number of records matching query.
func (c *Client) Count(ctx context.Context, query string, opts *SearchOptions) (int64, error) {
	req, err := c.request(query, opts)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	resp := c.app.Search.Count(ctx, &req)
	if !resp.Status.Success {
		return 0, fmt.Errorf("count: %w: %s", ErrSearchFailed, resp.Status.Error)
	}
	return resp.Count, nil
}

// Progress reports a streamed search started with SearchOptions.ProgressID.
func (c *Client) Progress(ctx context.Context, id string) (Progress, error) {
	st, err := c.app.Search.Progress(ctx, id)
	if err != nil {
		return Progress{}, fmt.Errorf("progress: %w", err)
	}
	return Progress{Current: st.Current, Total: st.Total, Complete: st.Complete, Percent: st.Percent()}, nil
}

// Explain returns the Elasticsearch request query compiles to without
// running it.
func (c *Client) Explain(ctx context.Context, query string, opts *SearchOptions) (*Plan, error) {
	req, err := c.request(query, opts)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	plan, err := c.app.Search.Explain(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return fromPlan(plan), nil
}

func (c *Client) request(query string, opts *SearchOptions) (request.Request, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	p := opts.params()
	p.Query = query
	if p.Taxonomy == "" {
		p.Taxonomy = c.cfg.Index.DefaultTaxonomy
	}
	if p.Size == 0 {
		p.Size = c.cfg.Search.DefaultSize
	}
	req, err := request.New(p)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return req, nil
}
