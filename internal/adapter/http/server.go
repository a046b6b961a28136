package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

// DocumentSource renders the served sitemap documents.
type DocumentSource interface {
	sharedobs.ReadinessChecker
	Index(ctx context.Context) ([]byte, error)
	Main() []byte
	Categories(ctx context.Context) ([]byte, error)
	Country(ctx context.Context, slug string, part int) ([]byte, error)
	CountryFile(ctx context.Context, name string) ([]byte, error)
	Robots() []byte
}

// Server exposes the sitemap documents alongside health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	docs       DocumentSource
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server for docs.
func NewServer(addr string, docs DocumentSource, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      accessLog(logger, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		docs:    docs,
		logger:  logger,
		metrics: metrics,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(docs))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /robots.txt", s.handleRobots)
	mux.HandleFunc("GET /"+sitemap.RootIndexFile, s.handleIndex)
	mux.HandleFunc("GET /"+sitemap.IndexFile, s.handleIndex)
	mux.HandleFunc("GET /"+sitemap.MainFile, s.handleMain)
	mux.HandleFunc("GET /"+sitemap.CategoriesFile, s.handleCategories)
	mux.HandleFunc("GET /sitemap-country.xml", s.handleCountryQuery)
	mux.HandleFunc("GET /{file}", s.handleCountryFile)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRobots(w http.ResponseWriter, _ *http.Request) {
	s.write(w, "robots", "text/plain; charset=utf-8", s.docs.Robots())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Index(r.Context())
	s.respond(w, r, "index", doc, err)
}

func (s *Server) handleMain(w http.ResponseWriter, _ *http.Request) {
	s.write(w, "main", sitemap.ContentType, s.docs.Main())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Categories(r.Context())
	s.respond(w, r, "categories", doc, err)
}

// handleCountryQuery serves /sitemap-country.xml?country=<slug>&part=<k>.
func (s *Server) handleCountryQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slug := q.Get("country")
	if slug == "" {
		s.respond(w, r, "country", nil, &domain.InvalidParameterError{Param: "country", Value: slug, Reason: "required"})
		return
	}
	part, err := sitemap.ParsePart(q.Get("part"))
	if err != nil {
		s.respond(w, r, "country", nil, err)
		return
	}
	doc, err := s.docs.Country(r.Context(), slug, part)
	s.respond(w, r, "country", doc, err)
}

// handleCountryFile serves /sitemap-country-<slug>[-<k>].xml.
func (s *Server) handleCountryFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !strings.HasPrefix(name, "sitemap-country-") {
		http.NotFound(w, r)
		return
	}
	doc, err := s.docs.CountryFile(r.Context(), name)
	s.respond(w, r, "country", doc, err)
}

// respond writes a rendered document, or maps err onto a status code.
// Documents are fully rendered before the first byte is sent, so a failure
// never produces a truncated 200.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, kind string, doc []byte, err error) {
	if err == nil {
		s.write(w, kind, sitemap.ContentType, doc)
		return
	}

	var perr *domain.InvalidParameterError
	if errors.As(err, &perr) {
		s.count(kind, http.StatusBadRequest)
		http.Error(w, perr.Error(), http.StatusBadRequest)
		return
	}

	attrs := []any{"kind", kind, "path", r.URL.Path, "error", err}
	if country := r.URL.Query().Get("country"); country != "" {
		attrs = append(attrs, "country", country, "part", r.URL.Query().Get("part"))
	}
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		s.logger.Error("gazetteer unavailable", attrs...)
	case errors.Is(err, domain.ErrStreamFailure):
		s.logger.Error("partition stream failed", attrs...)
	default:
		s.logger.Error("render document failed", attrs...)
	}
	s.count(kind, http.StatusInternalServerError)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Server) write(w http.ResponseWriter, kind, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	s.count(kind, http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) count(kind string, status int) {
	s.metrics.DocumentRequests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}
