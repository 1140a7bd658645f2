package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxdex/internal/domain/progress"
	"github.com/kailas-cloud/taxdex/internal/domain/query"
	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/filter"
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
	"github.com/kailas-cloud/taxdex/internal/logger"
	"github.com/kailas-cloud/taxdex/internal/metrics"
)

// DefaultProgressInterval is how many streamed hits pass between progress writes.
const DefaultProgressInterval = 1000

// Config tunes execution.
type Config struct {
	ScrollThreshold  int
	BatchSize        int
	KeepAlive        time.Duration
	ProgressInterval int64
}

func (c Config) withDefaults() Config {
	if c.ScrollThreshold <= 0 {
		c.ScrollThreshold = mode.DefaultScrollThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = mode.DefaultBatchSize
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = mode.DefaultKeepAlive
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	return c
}

// Service compiles, executes and normalizes searches.
type Service struct {
	schemas  SchemaResolver
	repo     Repository
	progress ProgressStore
	cfg      Config
	logger   *zap.Logger
	newID    func() string
}

// New creates a search service.
func New(schemas SchemaResolver, repo Repository, progress ProgressStore, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		schemas:  schemas,
		repo:     repo,
		progress: progress,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// prepared is a compiled, assembled search ready to execute.
type prepared struct {
	attributes *domschema.Set
	compiled   *query.Compiled
	bodies     []filter.Body
}

// prepare resolves schemas, compiles the query and assembles engine bodies.
// The returned status is set when preparation failed.
func (s *Service) prepare(ctx context.Context, req *request.Request) (*prepared, *Status) {
	log := s.log(ctx)
	attrs, err := s.schemas.Resolve(ctx, req.Category(), req.Taxonomy(), domschema.Attributes)
	if err != nil {
		log.Error("Attribute schema unavailable", zap.String("category", req.Category()), zap.Error(err))
		st := failed(MsgSchemaUnavailable)
		return nil, &st
	}
	idSets, err := s.schemas.ResolveAll(ctx, []string{req.Category()}, req.Taxonomy(), domschema.Identifiers)
	if err != nil {
		log.Error("Identifier schema unavailable", zap.String("category", req.Category()), zap.Error(err))
		st := failed(MsgSchemaUnavailable)
		return nil, &st
	}
	ids := idSets[req.Category()]

	compiled, err := query.NewCompiler(req.Category(), attrs, ids).Compile(req.Query())
	if err != nil {
		log.Debug("Query rejected", zap.String("query", req.Query()), zap.Error(err))
		st := failed(err.Error())
		return nil, &st
	}

	asm := filter.NewAssembler(req.Category(), attrs, ids)
	var bodies []filter.Body
	if compiled.IsMultiTerm() {
		bodies, err = asm.AssembleBatch(req, compiled)
	} else {
		var body filter.Body
		body, err = asm.Assemble(req, compiled)
		bodies = []filter.Body{body}
	}
	if err != nil {
		log.Debug("Query rejected", zap.String("query", req.Query()), zap.Error(err))
		st := failed(err.Error())
		return nil, &st
	}
	return &prepared{attributes: attrs, compiled: compiled, bodies: bodies}, nil
}

// Search runs req and returns normalized records. Failures are reported in
// the status; cancellation of ctx truncates the results without failing.
func (s *Service) Search(ctx context.Context, req *request.Request) *Response {
	start := time.Now()
	p, st := s.prepare(ctx, req)
	if st != nil {
		metrics.SearchRequestsTotal.WithLabelValues(req.Category(), "none", "invalid").Inc()
		return &Response{Status: *st, Records: []result.Record{}}
	}

	m := mode.Bounded
	if !p.compiled.IsMultiTerm() {
		m = mode.Select(req.Size(), req.HasAggregations(), s.cfg.ScrollThreshold)
	}
	resp := &Response{Mode: m, Records: []result.Record{}}

	var (
		env       result.Envelope
		cancelled bool
		err       error
	)
	switch {
	case p.compiled.IsMultiTerm():
		var envs []result.Envelope
		envs, err = s.repo.MultiSearch(ctx, req.Category(), req.Taxonomy(), p.bodies)
		env = merge(envs)
	case m == mode.Streamed:
		resp.ProgressID = req.ProgressID()
		if resp.ProgressID == "" {
			resp.ProgressID = s.newID()
		}
		env, cancelled, err = s.stream(ctx, req, p.bodies[0], resp.ProgressID)
	default:
		env, err = s.repo.Search(ctx, req.Category(), req.Taxonomy(), p.bodies[0])
	}

	modeLabel := string(m)
	defer func() {
		metrics.SearchDuration.WithLabelValues(req.Category(), modeLabel).Observe(time.Since(start).Seconds())
	}()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.log(ctx).Debug("Search cancelled", zap.String("category", req.Category()))
			metrics.SearchRequestsTotal.WithLabelValues(req.Category(), modeLabel, "cancelled").Inc()
			resp.Status = Status{Success: true}
			return resp
		}
		s.log(ctx).Error("Search execution failed",
			zap.String("category", req.Category()),
			zap.String("mode", modeLabel),
			zap.Error(err),
		)
		metrics.SearchRequestsTotal.WithLabelValues(req.Category(), modeLabel, "error").Inc()
		resp.Status = failed(MsgExecutionFailed)
		return resp
	}

	resp.Status = classify(env)
	if !resp.Status.Success {
		s.log(ctx).Warn("Search degraded",
			zap.String("category", req.Category()),
			zap.String("reason", resp.Status.Error),
			zap.Int("failed_shards", env.Shards.Failed),
		)
	}
	if env.TimedOut {
		metrics.SearchRequestsTotal.WithLabelValues(req.Category(), modeLabel, "timeout").Inc()
		return resp
	}
	if resp.Status.Error == MsgExecutionFailed {
		metrics.SearchRequestsTotal.WithLabelValues(req.Category(), modeLabel, "error").Inc()
		return resp
	}

	resp.Records = result.NormalizeAll(env, result.Options{
		Fields:           outputFields(req, p.compiled),
		Attributes:       p.attributes,
		SummaryValues:    req.SummaryValues(),
		IncludeRawValues: req.IncludeRawValues(),
		LCA:              req.LCA(),
	})
	resp.Aggregations = env.Aggregations

	status := "ok"
	switch {
	case cancelled:
		status = "cancelled"
	case !resp.Status.Success:
		status = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(req.Category(), modeLabel, status).Inc()
	metrics.SearchHitsTotal.WithLabelValues(req.Category(), modeLabel).Add(float64(len(resp.Records)))
	return resp
}

// stream pulls hits through a scroll cursor, writing progress under id.
// A cancelled stream deletes its progress entry and returns the hits
// consumed so far with cancelled set. An expired deadline is an error.
func (s *Service) stream(
	ctx context.Context, req *request.Request, body filter.Body, id string,
) (result.Envelope, bool, error) {
	ctx = logger.With(ctx, s.logger, zap.String("progress_id", id))
	log := s.log(ctx)
	limit := int64(req.Size())

	hs, err := s.repo.Stream(ctx, req.Category(), req.Taxonomy(), body, mode.StreamOptions{
		BatchSize: s.cfg.BatchSize,
		KeepAlive: s.cfg.KeepAlive,
		Limit:     limit,
		OnBatch: func(int) {
			metrics.ScrollBatchesTotal.WithLabelValues(req.Category()).Inc()
		},
	})
	if err != nil {
		return result.Envelope{}, false, fmt.Errorf("open stream: %w", err)
	}
	defer func() {
		if err := hs.Close(ctx); err != nil {
			log.Warn("Failed to release scroll", zap.Error(err))
		}
	}()

	total := min(hs.Total(), limit)
	s.writeProgress(ctx, id, progress.State{Total: total})

	hits := make([]result.RawHit, 0, min(total, int64(s.cfg.BatchSize)))
	for {
		hit, ok, err := hs.Next(ctx)
		if err != nil {
			s.clearProgress(ctx, id)
			if errors.Is(ctx.Err(), context.Canceled) {
				log.Debug("Stream cancelled", zap.Int("consumed", len(hits)))
				return hs.Envelope(hits), true, nil
			}
			return result.Envelope{}, false, fmt.Errorf("stream: %w", err)
		}
		if !ok {
			break
		}
		hits = append(hits, hit)
		if int64(len(hits))%s.cfg.ProgressInterval == 0 {
			s.writeProgress(ctx, id, progress.State{Current: int64(len(hits)), Total: total})
		}
	}

	s.writeProgress(ctx, id, progress.State{Current: int64(len(hits)), Total: total, Complete: true})
	return hs.Envelope(hits), false, nil
}

func (s *Service) writeProgress(ctx context.Context, id string, st progress.State) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Set(ctx, id, st); err != nil {
		s.log(ctx).Warn("Failed to write progress", zap.Error(err))
	}
}

func (s *Service) clearProgress(ctx context.Context, id string) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Delete(context.WithoutCancel(ctx), id); err != nil {
		s.log(ctx).Warn("Failed to clear progress", zap.Error(err))
	}
}

// Count returns the number of records matching req.
func (s *Service) Count(ctx context.Context, req *request.Request) *CountResponse {
	p, st := s.prepare(ctx, req)
	if st != nil {
		return &CountResponse{Status: *st}
	}
	var total int64
	for _, body := range p.bodies {
		n, err := s.repo.Count(ctx, req.Category(), req.Taxonomy(), body.Query())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return &CountResponse{Status: Status{Success: true}}
			}
			s.log(ctx).Error("Count failed", zap.String("category", req.Category()), zap.Error(err))
			return &CountResponse{Status: failed(MsgExecutionFailed)}
		}
		total += n
	}
	return &CountResponse{Status: Status{Success: true, Total: total}, Count: total}
}

// Progress returns the state of a streamed search. Unknown ids return
// domain.ErrNotFound.
func (s *Service) Progress(ctx context.Context, id string) (progress.State, error) {
	if s.progress == nil {
		return progress.State{}, fmt.Errorf("progress %s: %w", id, errNoProgressStore)
	}
	st, err := s.progress.Get(ctx, id)
	if err != nil {
		return progress.State{}, fmt.Errorf("progress %s: %w", id, err)
	}
	return st, nil
}

var errNoProgressStore = errors.New("progress tracking disabled")

// Explain returns the engine request req would issue without running it.
func (s *Service) Explain(ctx context.Context, req *request.Request) (*Plan, error) {
	p, st := s.prepare(ctx, req)
	if st != nil {
		return nil, errors.New(st.Error)
	}
	m := mode.Bounded
	if !p.compiled.IsMultiTerm() {
		m = mode.Select(req.Size(), req.HasAggregations(), s.cfg.ScrollThreshold)
	}
	plan := &Plan{Index: s.repo.Index(req.Category(), req.Taxonomy()), Mode: m}
	for _, b := range p.bodies {
		if m == mode.Streamed {
			b = b.Without("from", "aggs").With("size", s.cfg.BatchSize)
		}
		plan.Bodies = append(plan.Bodies, b)
	}
	return plan, nil
}

// outputFields lists the fields to normalize: requested, optional, bare
// query fields and conditioned fields, first occurrence wins.
func outputFields(req *request.Request, c *query.Compiled) []string {
	var out []string
	for _, f := range slices.Concat(req.Fields(), req.OptionalFields(), c.Fields, c.Attributes.Fields()) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// log prefers the request-scoped logger installed by the transport.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
