// Package server assembles the HTTP service: router, middleware, the
// payment routes behind the authentication gates, and the published API
// description.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chr1sbest/payment-api/internal/auth"
	"github.com/chr1sbest/payment-api/internal/config"
	"github.com/chr1sbest/payment-api/internal/metrics"
	"github.com/chr1sbest/payment-api/internal/model"
	"github.com/chr1sbest/payment-api/internal/openapi"
	"github.com/chr1sbest/payment-api/internal/payment"
)

// Documentation endpoints.
const (
	DocsJSONPath = "/swagger/v1/swagger.json"
	DocsYAMLPath = "/swagger/v1/swagger.yaml"
)

// Server is the assembled service.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *model.Registry
	doc      *openapi.Document
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	tracer   trace.TracerProvider
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithTracerProvider sets the provider request spans are created with.
// Without it the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp }
}

// New wires the service over store. The description is built here, once,
// from the same registry the gates consult.
func New(cfg *config.Config, store payment.Store, log *zap.Logger, opts ...Option) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	routes := payment.Routes(payment.NewHandler(store, log.Named("payment")), cfg.Auth.Enabled)
	reg, err := registryFor(routes)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  metrics.New(promReg),
		gatherer: promReg,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Docs.Enabled {
		s.doc, err = openapi.Build(info(cfg), reg, payment.Schemas())
		if err != nil {
			return nil, fmt.Errorf("build description: %w", err)
		}
	}

	gate, err := s.gate()
	if err != nil {
		return nil, err
	}
	s.handler = s.routes(routes, gate)
	return s, nil
}

// Describe builds the API description for cfg without opening a store.
func Describe(cfg *config.Config) (*openapi.Document, *model.Registry, error) {
	reg, err := registryFor(payment.Routes(payment.NewHandler(nil, nil), cfg.Auth.Enabled))
	if err != nil {
		return nil, nil, err
	}
	doc, err := openapi.Build(info(cfg), reg, payment.Schemas())
	if err != nil {
		return nil, nil, fmt.Errorf("build description: %w", err)
	}
	return doc, reg, nil
}

func registryFor(routes []model.Route) (*model.Registry, error) {
	endpoints := make([]model.Endpoint, 0, len(routes))
	for _, rt := range routes {
		endpoints = append(endpoints, rt.Endpoint)
	}
	reg, err := model.NewRegistry(endpoints...)
	if err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}
	return reg, nil
}

func info(cfg *config.Config) openapi.Info {
	return openapi.Info{
		Title:       cfg.Docs.Title,
		Version:     cfg.Docs.Version,
		Description: cfg.Docs.Description,
	}
}

func (s *Server) gate() (*auth.Gate, error) {
	opts := []auth.GateOption{
		auth.WithPolicies(payment.Policies()),
		auth.WithLogger(s.log.Named("auth")),
		auth.WithRecorder(s.metrics),
	}
	if !s.cfg.Auth.Enabled {
		return auth.NewGate(nil, auth.RouteResolver(s.registry), append(opts, auth.Disabled())...), nil
	}

	rules, err := auth.NewRules(s.cfg.RulesConfig())
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	return auth.NewGate(auth.NewValidator(rules), auth.RouteResolver(s.registry), opts...), nil
}

func (s *Server) routes(routes []model.Route, gate *auth.Gate) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLog(s.log.Named("http")))
	r.Use(Instrument(s.metrics))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler)

	// Gates run per route so the matched pattern is available to them.
	gated := r.With(gate.Authenticate, gate.Authorize)
	for _, rt := range routes {
		gated.Method(rt.Method, rt.Path, rt.Handler)
	}

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.doc != nil {
		r.Get(DocsJSONPath, s.serveDoc(openapi.FormatJSON, "application/json"))
		r.Get(DocsYAMLPath, s.serveDoc(openapi.FormatYAML, "application/yaml"))
	}

	// Spans start with the method only; Instrument renames them to the
	// route pattern once routing is done.
	otelOpts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	}
	if s.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(s.tracer))
	}
	return otelhttp.NewHandler(r, "paymentapi", otelOpts...)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the declared endpoints.
func (s *Server) Registry() *model.Registry {
	return s.registry
}

// Description returns the published description, or nil when docs are off.
func (s *Server) Description() *openapi.Document {
	return s.doc
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) serveDoc(format, contentType string) http.HandlerFunc {
	body, err := openapi.Encode(s.doc, format)
	return func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			s.log.Error("encode description", zap.String("format", format), zap.Error(err))
			http.Error(w, "description unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down within server.shutdown_timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down server")
		if s.cfg.Server.ShutdownTimeout <= 0 {
			return srv.Close()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
