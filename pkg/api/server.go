package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const (
	metricsUpdateInterval = 30 * time.Second
	shutdownTimeout       = 10 * time.Second
)

// NewRouter builds the HTTP routes for s. Metrics registered with reg are
// served unauthenticated at /metrics.
func NewRouter(s *Server, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	m := s.metrics
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.config.APIKey, m))

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))

		// Chunk file
		r.Get("/chunks", m.InstrumentHandler("GET", "/api/v1/chunks", s.handleListChunks))
		r.Get("/chunks/{tag}", m.InstrumentHandler("GET", "/api/v1/chunks/{tag}", s.handleGetChunk))
		r.Post("/chunks/{tag}", m.InstrumentHandler("POST", "/api/v1/chunks/{tag}", s.handleAppendChunk))
		r.Delete("/chunks/{tag}", m.InstrumentHandler("DELETE", "/api/v1/chunks/{tag}", s.handleDeleteChunk))

		// Codec
		r.Get("/tags/{tag}", m.InstrumentHandler("GET", "/api/v1/tags/{tag}", s.handleGetTag))
		r.Post("/decode", m.InstrumentHandler("POST", "/api/v1/decode", s.handleDecode))

		// Archive
		r.Get("/archive", m.InstrumentHandler("GET", "/api/v1/archive", s.handleListArchive))
		r.Post("/archive/{tag}", m.InstrumentHandler("POST", "/api/v1/archive/{tag}", s.handleArchiveChunk))
		r.Get("/archive/id/{id}", m.InstrumentHandler("GET", "/api/v1/archive/id/{id}", s.handleGetArchived))
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", s.handleSwagger)

	return r
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/swagger/", "/swagger/index.html":
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerUI))
	case "/swagger/swagger.json":
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			s.logger.Error("failed to generate swagger doc", "error", err)
			http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	default:
		http.NotFound(w, r)
	}
}

const swaggerUI = `<!DOCTYPE html>
<html>
<head>
	<title>pngchunk API Documentation</title>
	<link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	<div id="swagger-ui"></div>
	<script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	<script>
	  window.onload = function() {
	    SwaggerUIBundle({url: '/swagger/swagger.json', dom_id: '#swagger-ui'});
	  };
	</script>
</body>
</html>`

// NewRegistry returns a Prometheus registry with the Go runtime and process
// collectors registered
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// StartServer serves the API until ctx is cancelled, then shuts down
// gracefully
func StartServer(ctx context.Context, chunks IChunkStore, archive IChunkArchive, config ServerConfig) error {
	reg := NewRegistry()
	metrics := NewMetrics(reg)
	server := NewServer(chunks, archive, config, metrics)

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	if SwaggerInfo != nil {
		SwaggerInfo.Host = addr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start background metrics updater
	go server.startMetricsUpdater(ctx, metricsUpdateInterval)

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("starting pngchunk REST API server", "addr", addr,
			"metrics", fmt.Sprintf("http://%s/metrics", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	server.logger.Info("shutting down pngchunk REST API server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
