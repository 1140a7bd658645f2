package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxdex/internal/domain/progress"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	"github.com/kailas-cloud/taxdex/internal/metrics"
	healthuc "github.com/kailas-cloud/taxdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/taxdex/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// Searcher runs searches and reports streamed progress.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) *searchuc.Response
	Count(ctx context.Context, req *request.Request) *searchuc.CountResponse
	Progress(ctx context.Context, id string) (progress.State, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options configures the HTTP surface.
type Options struct {
	APIKeys        []string
	AllowedOrigins []string
	// MaxSize caps the size parameter. Zero leaves the request limit.
	MaxSize int
	// DefaultSize and DefaultTaxonomy apply when a request omits them.
	DefaultSize     int
	DefaultTaxonomy string
}

// Server serves the search API.
type Server struct {
	search Searcher
	health HealthChecker
	opts   Options
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, health: health, opts: opts, logger: logger}
}

// Handler returns the routed API with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(CORS(s.opts.AllowedOrigins))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware())

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/search", s.SearchGet)
		r.Post("/search", s.SearchPost)
		r.Get("/count", s.CountGet)
		r.Post("/count", s.CountPost)
		r.Get("/progress/{id}", s.GetProgress)
	})
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// SearchGet handles GET /api/v2/search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requestFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.search.Search(r.Context(), &req))
}

// SearchPost handles POST /api/v2/search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requestFromBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.search.Search(r.Context(), &req))
}

// CountGet handles GET /api/v2/count.
func (s *Server) CountGet(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requestFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.search.Count(r.Context(), &req))
}

// CountPost handles POST /api/v2/count.
func (s *Server) CountPost(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requestFromBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.search.Count(r.Context(), &req))
}

// ProgressResponse reports a streamed search's position.
type ProgressResponse struct {
	ProgressID string  `json:"progress_id"`
	Current    int64   `json:"current"`
	Total      int64   `json:"total"`
	Complete   bool    `json:"complete"`
	Percent    float64 `json:"percent"`
}

// GetProgress handles GET /api/v2/progress/{id}.
func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.search.Progress(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProgressResponse{
		ProgressID: id,
		Current:    st.Current,
		Total:      st.Total,
		Complete:   st.Complete,
		Percent:    st.Percent(),
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
	TookMs int64                           `json:"took_ms"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status: report.Status,
		Checks: report.Checks,
		TookMs: report.Took.Milliseconds(),
	})
}

func (s *Server) requestFromQuery(w http.ResponseWriter, r *http.Request) (request.Request, bool) {
	params, err := bindSearchParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return request.Request{}, false
	}
	return s.validate(w, params)
}

func (s *Server) requestFromBody(w http.ResponseWriter, r *http.Request) (request.Request, bool) {
	var params SearchParams
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return request.Request{}, false
	}
	return s.validate(w, params)
}

func (s *Server) validate(w http.ResponseWriter, params SearchParams) (request.Request, bool) {
	req, err := params.toRequest(s.opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return request.Request{}, false
	}
	return req, true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger
	if id := chiMiddleware.GetReqID(r.Context()); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Debug("domain error", zap.Error(err))
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
