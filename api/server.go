// Package api serves the read-only status dashboard: current weights,
// relationship summary, decision history and a websocket stream of live
// decisions. JSON only; rendering is the dashboard's problem.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"goldclose/engine"
	"goldclose/logger"
	"goldclose/relation"
	"goldclose/store"
)

// Server HTTP API server
type Server struct {
	router     *gin.Engine
	engine     *engine.Engine
	rel        *relation.Store
	store      *store.Store
	hub        *Hub
	httpServer *http.Server
	port       int
	startedAt  time.Time
}

// NewServer creates the API server
func NewServer(eng *engine.Engine, rel *relation.Store, st *store.Store, port int) *Server {
	// Set to Release mode (reduce log output)
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(corsMiddleware())

	s := &Server{
		router:    router,
		engine:    eng,
		rel:       rel,
		store:     st,
		hub:       NewHub(),
		port:      port,
		startedAt: time.Now().UTC(),
	}
	s.setupRoutes()
	return s
}

// Hub exposes the decision broadcast hub so the host loop can publish
func (s *Server) Hub() *Hub {
	return s.hub
}

// corsMiddleware CORS middleware
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.Any("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/weights", s.handleWeights)
		api.GET("/relationships", s.handleRelationships)
		api.GET("/decision/latest", s.handleLatestDecision)
		api.GET("/decisions", s.handleRecentDecisions)
	}
	s.router.GET("/ws", s.hub.HandleWS)
}

// Start runs the HTTP server until the context is canceled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	logger.Infof("✅ API server listening on :%d", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	stats, err := s.store.Decision().Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	realized, err := s.store.Outcome().TotalProfit()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cycles":          stats,
		"realized_profit": realized,
		"relationships":   s.rel.Summarize(),
		"weights_version": s.engine.Weights().Version,
		"uptime":          time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleWeights(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Weights())
}

func (s *Server) handleRelationships(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"summary":           s.rel.Summarize(),
		"active_pairs":      s.rel.ActivePairs(),
		"balance_positions": s.rel.BalancePositions(),
		"active_groups":     s.rel.ActiveGroups(),
	})
}

func (s *Server) handleLatestDecision(c *gin.Context) {
	record, err := s.store.Decision().Latest()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decisions yet"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleRecentDecisions(c *gin.Context) {
	n := 50
	if v := c.Query("limit"); v != "" {
		fmt.Sscanf(v, "%d", &n)
		if n < 1 || n > 500 {
			n = 50
		}
	}
	records, err := s.store.Decision().Recent(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}
