package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/xscopehub/healthapp/internal/config"
	"github.com/xscopehub/healthapp/internal/dataset"
	"github.com/xscopehub/healthapp/internal/limiter"
	"github.com/xscopehub/healthapp/internal/metrics"
)

const (
	indexTemplate = "index.html"
	chartTemplate = "d3_chart.html"
)

// Server wraps the HTTP engine and configuration.
type Server struct {
	engine *gin.Engine
	cfg    config.Config
	logger *slog.Logger
}

// page is the view model handed to every template.
type page struct {
	Title     string
	DataURL   string
	StaticURL string
}

// New creates a server with the page, data, health and metrics routes.
func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	s := &Server{cfg: cfg, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Telemetry.Enabled {
		r.Use(otelgin.Middleware(cfg.Telemetry.Service))
	}
	r.Use(requestLogger(logger), metrics.Middleware())
	r.Use(limiter.New(limiter.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}).Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes := map[string]gin.HandlerFunc{
		"/":         s.handlePage(indexTemplate, "Health Risk Explorer"),
		"/data":     s.handleData,
		"/d3_chart": s.handlePage(chartTemplate, "Health Risk Scatter Plot"),
	}
	for path, h := range routes {
		r.GET(path, h)
		r.HEAD(path, h)
	}
	if cfg.Web.Static != "" {
		r.Static("/static", cfg.Web.Static)
	}

	s.engine = r
	return s
}

// Handler exposes the HTTP handler for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// handleData reads the dataset from disk on every call and returns its rows
// as a JSON array in file order.
func (s *Server) handleData(c *gin.Context) {
	tbl, err := dataset.LoadFile(s.cfg.Data.Path)
	if err != nil {
		metrics.ObserveDatasetLoad(0, err)
		s.fail(c, err)
		return
	}
	metrics.ObserveDatasetLoad(len(tbl.Rows), nil)
	s.logger.Debug("dataset loaded", "path", s.cfg.Data.Path, "rows", len(tbl.Rows), "columns", len(tbl.Columns))
	c.JSON(http.StatusOK, tbl.Records())
}

// handlePage parses the named template on each request so edits on disk are
// picked up without a restart. Output is buffered so execution failures
// still produce a 500.
func (s *Server) handlePage(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tmpl, err := template.ParseFiles(filepath.Join(s.cfg.Web.Templates, name))
		if err != nil {
			s.fail(c, fmt.Errorf("load template: %w", err))
			return
		}
		var buf bytes.Buffer
		err = tmpl.ExecuteTemplate(&buf, name, page{
			Title:     title,
			DataURL:   "/data",
			StaticURL: "/static",
		})
		if err != nil {
			s.fail(c, fmt.Errorf("render %s: %w", name, err))
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// Run starts the HTTP server until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Server.Listen == "" {
		return fmt.Errorf("server listen address not configured")
	}
	srv := &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr, "data", s.cfg.Data.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
