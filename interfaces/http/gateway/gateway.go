// Package gateway is the single-port HTTP front door: request ids, health
// endpoints, permissive CORS, body capping and dispatch to the registered
// AWS service front-ends.
package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"localcloud/pkg/observability"
)

// serverHeader identifies the emulator on every response.
const serverHeader = "LocalCloud"

// Version is reported by the health endpoint.
const Version = "1.0.0"

// healthPaths are the recognized health endpoints, including LocalStack
// compatibility paths.
var healthPaths = []string{
	"/_localstack/health",
	"/health",
	"/_health",
	"/_localcloud/health",
}

// ServiceHandler is one AWS service front-end mounted on the gateway.
type ServiceHandler interface {
	Name() string
	// Match reports whether this service claims the request. Services are
	// consulted in registration order; S3 is the catch-all.
	Match(r *http.Request) bool
	http.Handler
}

// Gateway multiplexes the registered services on one port.
type Gateway struct {
	services    []ServiceHandler
	logger      *zap.Logger
	metrics     *observability.Collector
	maxBodySize int64
}

// New builds a gateway over the services, consulted in declaration order.
func New(services []ServiceHandler, maxBodySize int64, logger *zap.Logger, metrics *observability.Collector) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		services:    services,
		logger:      logger,
		metrics:     metrics,
		maxBodySize: maxBodySize,
	}
}

// Handler assembles the router with the gateway middleware stack.
func (g *Gateway) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.Recoverer)
	router.Use(g.requestID)
	router.Use(g.commonHeaders)
	router.Use(g.logging)

	// Gateway-level permissive CORS: preflights are answered here so that
	// browser clients work against any bucket; OPTIONS requests without
	// Access-Control-Request-Method pass through to the services, where the
	// S3 front-end applies the bucket's CORS rules.
	router.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"ETag", "x-amz-request-id", "x-amz-version-id", "x-amz-delete-marker"},
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	for _, path := range healthPaths {
		router.Get(path, g.healthCheck)
	}
	if g.metrics != nil {
		router.Handle("/_localcloud/metrics", g.metrics.Handler())
	}

	router.HandleFunc("/*", g.dispatch)
	router.HandleFunc("/", g.dispatch)
	return router
}

// dispatch routes the request to the first matching service.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request) {
	if g.maxBodySize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBodySize)
	}
	start := time.Now()
	for _, service := range g.services {
		if !service.Match(r) {
			continue
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		service.ServeHTTP(recorder, r)
		if g.metrics != nil {
			g.metrics.ObserveRequest(service.Name(), r.Method,
				strconv.Itoa(recorder.status), time.Since(start))
		}
		return
	}
	http.NotFound(w, r)
}

// requestID assigns the per-request id used across logs and responses.
func (g *Gateway) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("x-amz-request-id", requestID)
		w.Header().Set("x-amz-id-2", requestID)
		next.ServeHTTP(w, r)
	})
}

// commonHeaders stamps the gateway identity on every response.
func (g *Gateway) commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverHeader)
		next.ServeHTTP(w, r)
	})
}

// logging records each request at debug level.
func (g *Gateway) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("host", r.Host),
			zap.Duration("duration", time.Since(start)))
	})
}

// healthCheck reports the enabled services and the fixed "running" status.
func (g *Gateway) healthCheck(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{}
	for _, service := range g.services {
		services[service.Name()] = "running"
	}
	payload := map[string]any{
		"services": services,
		"edition":  "community",
		"version":  Version,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(payload)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(data)
}
