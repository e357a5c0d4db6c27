package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tattler-io/tattler/pkg/dispatch"
	"github.com/tattler-io/tattler/pkg/errors"
	"github.com/tattler-io/tattler/pkg/logger"
)

// Server is the HTTP boundary of the dispatch service.
type Server struct {
	orchestrator *dispatch.Orchestrator
	router       *gin.Engine
	logger       logger.Logger
}

// New builds the HTTP server around an orchestrator.
func New(orchestrator *dispatch.Orchestrator, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		orchestrator: orchestrator,
		router:       router,
		logger:       log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/status", s.statusHandler)

	n := s.router.Group("/notification")
	n.GET("/", s.scopesHandler)
	n.GET("/:scope/", s.eventsHandler)
	n.GET("/:scope/:event/vectors/", s.vectorsHandler)
	n.POST("/:scope/:event/", s.sendHandler)
}

// Handler exposes the routing table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("Serving notification API", "address", addr)
	return s.router.Run(addr)
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) scopesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.Templates().AvailableScopes())
}

func (s *Server) eventsHandler(c *gin.Context) {
	events, err := s.orchestrator.Templates().AvailableEvents(c.Param("scope"), false)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) vectorsHandler(c *gin.Context) {
	scope, event := c.Param("scope"), c.Param("event")
	if !s.orchestrator.Templates().HasScope(scope) {
		s.renderError(c, errors.Newf(errors.ErrScopeNotFound, "unknown scope '%s'", scope))
		return
	}
	c.JSON(http.StatusOK, s.orchestrator.Templates().AvailableVectors(scope, event))
}

func (s *Server) sendHandler(c *gin.Context) {
	recipient := c.Query("user")
	if recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing mandatory parameter 'user'"})
		return
	}

	req := dispatch.Request{
		Scope:         c.Param("scope"),
		Event:         c.Param("event"),
		RecipientID:   recipient,
		Mode:          c.Query("mode"),
		CorrelationID: c.Query("correlationId"),
		Language:      c.Query("language"),
	}
	if vectors := c.Query("vector"); vectors != "" {
		req.Vectors = strings.Split(vectors, ",")
	}
	if c.Query("priority") != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be passed in the request body"})
		return
	}
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		var body struct {
			Priority int                    `json:"priority"`
			Context  map[string]interface{} `json:"context"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
			return
		}
		req.Priority = body.Priority
		req.Context = body.Context
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	results, err := s.orchestrator.Dispatch(ctx, req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no deliverable vector for recipient '" + recipient + "'"})
		return
	}
	c.JSON(http.StatusOK, results)
}

// renderError maps error categories to HTTP statuses.
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.CategoryOf(errors.CodeOf(err)) {
	case errors.NotFoundCategory:
		status = http.StatusNotFound
	case errors.ValidationCategory:
		status = http.StatusBadRequest
	}
	s.logger.Error("Request failed", "status", status, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}
