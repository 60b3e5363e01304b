// Package server exposes the comparison run over HTTP for the web UI.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guarzo/pricegap/internal/compare"
	"github.com/guarzo/pricegap/internal/model"
)

// Comparer runs one comparison batch. Satisfied by compare.Orchestrator.
type Comparer interface {
	Run(ctx context.Context, keyword string) (*compare.RunResult, error)
}

// Server is the HTTP front door.
type Server struct {
	comparer Comparer
	router   *gin.Engine
}

// New builds the router. The server owns no comparison logic; it only
// translates HTTP to orchestrator calls and errors to status codes.
func New(comparer Comparer) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{comparer: comparer}

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/healthz", s.health)
	router.POST("/api/compare", s.compare)
	router.OPTIONS("/api/compare", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	s.router = router
	return s
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricegap",
	})
}

type compareRequest struct {
	Keyword string `json:"keyword"`
}

func (s *Server) compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a keyword field"})
		return
	}

	run, err := s.comparer.Run(c.Request.Context(), req.Keyword)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case model.IsValidation(err):
			status = http.StatusBadRequest
		case model.IsAuth(err), model.IsUpstream(err):
			status = http.StatusBadGateway
		}
		// Error messages carry reasons and status codes, never credential
		// values.
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}
