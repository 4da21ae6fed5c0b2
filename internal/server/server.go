// Package server provides the HTTP query server core implementation,
// handling route setup, request routing, and the construct -> Initialize ->
// Start/Shutdown lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrel-search/kestrel/internal/config"
	"github.com/kestrel-search/kestrel/internal/indexcore"
	"github.com/kestrel-search/kestrel/internal/query"
)

// Server wires the loaded index, the query engine, and the HTTP transport
// together, following a construct -> Initialize -> Start/Shutdown
// lifecycle.
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	engine      *query.Engine
	header      *indexcore.Header
	router      *gin.Engine
	transport   TransportStarter
	initialized bool
}

// NewServer creates a new Server instance with the provided configuration
// and logger. The server is not started, and the index is not loaded, until
// Initialize() is called.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return &Server{
		config:    cfg,
		logger:    logger,
		transport: transport,
	}, nil
}

// Initialize loads the on-disk index and builds the query engine and HTTP
// router. This should be called before Start().
func (s *Server) Initialize(ctx context.Context) error {
	if s.initialized {
		return fmt.Errorf("server already initialized")
	}

	s.logger.Info("loading index", "dir", s.config.IndexDir)

	header, err := indexcore.LoadHeader(indexcore.Paths{Root: s.config.IndexDir})
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	s.header = header
	s.engine = query.NewEngine(header, s.config.ConcurrentPostingLoads)

	s.logger.Info("index loaded",
		"docs", header.Docs.Count(),
		"terms", header.Dictionary.Len(),
		"created_at", header.Meta.CreatedAt)
	if header.Meta.SmoothedIDF {
		s.logger.Warn("index was built with smoothed IDF; query-time IDF is always unsmoothed")
	}

	s.router = s.buildRouter()
	s.initialized = true
	return nil
}

// Start starts the HTTP server and begins listening for requests. This is a
// blocking call that runs until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	if !s.initialized {
		return fmt.Errorf("server not initialized, call Initialize() first")
	}

	s.logger.Info("starting server", "transport", s.transport.Type(), "addr", s.config.ListenAddr)

	if err := s.transport.Start(ctx, s.router); err != nil {
		s.logger.Error("server error", "error", err)
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.transport.Shutdown(ctx); err != nil {
		s.logger.Error("error during shutdown", "error", err)
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// buildRouter assembles the gin router with request-id and CORS middleware
// and the search/doc/admin routes.
func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestIDMiddleware())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())

	r.GET("/search", s.handleSearch)
	r.GET("/doc/:doc_id", s.handleGetDoc)
	r.POST("/admin/index/batch", s.handleAdminAuth, s.handleAdminIndexBatch)
	r.POST("/admin/index/commit", s.handleAdminAuth, s.handleAdminIndexCommit)

	return r
}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns a UUID to every request (reusing one supplied
// by the client in X-Request-ID) and echoes it back on the response.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}

// corsMiddleware allows cross-origin requests from the configured origins.
// An empty CORSOrigins list disables CORS headers entirely.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(s.config.CORSOrigins))
	for _, origin := range s.config.CORSOrigins {
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// handleAdminAuth rejects requests whose X-ADMIN-TOKEN header doesn't match
// the configured admin token, or where no admin token is configured at all.
func (s *Server) handleAdminAuth(c *gin.Context) {
	if s.config.AdminToken == "" || c.GetHeader("X-ADMIN-TOKEN") != s.config.AdminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// handleSearch implements GET /search?q=&k=.
func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter is required"})
		return
	}

	k := s.config.DefaultK
	if kParam := c.Query("k"); kParam != "" {
		parsed, err := strconv.Atoi(kParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be an integer"})
			return
		}
		k = parsed
	}

	resp, err := s.engine.Search(c.Request.Context(), q, k)
	if err != nil {
		s.logger.Error("search failed", "query", q, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleGetDoc implements GET /doc/:doc_id. Matching the documented quirk,
// an unknown doc id returns 200 with an error body rather than 404.
func (s *Server) handleGetDoc(c *gin.Context) {
	docIDParam := c.Param("doc_id")

	parsed, err := strconv.ParseUint(docIDParam, 10, 32)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "not found"})
		return
	}
	docID := indexcore.DocID(parsed)

	meta, ok := s.header.Docs.Get(docID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"error": "not found"})
		return
	}

	textBytes, err := os.ReadFile(filepath.Join(s.header.Paths.Root, meta.TextPath))
	if err != nil {
		s.logger.Error("failed to read doc text", "doc_id", docID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doc_id": docID,
		"title":  meta.Title,
		"url":    meta.URL,
		"text":   string(textBytes),
	})
}

// handleAdminIndexBatch implements POST /admin/index/batch. Incremental
// indexing is not yet implemented; this stub exists so the route and its
// auth gate are in place ahead of the feature.
func (s *Server) handleAdminIndexBatch(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
}

// handleAdminIndexCommit implements POST /admin/index/commit.
func (s *Server) handleAdminIndexCommit(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
}
