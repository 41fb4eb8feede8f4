// Package httpserver implements the ten external HTTP endpoints of
// spec §6 on top of gin, grounded on the teacher's server/server.go
// (config-driven Server struct, NewServer/Start) and routes.go
// (gin.Context handlers, c.JSON(status, gin.H{...}) response style).
package httpserver

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vulbsti/loanmatchmaker/catalogue"
	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/log"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/orchestrator"
	"github.com/vulbsti/loanmatchmaker/ratelimiter"
	"github.com/vulbsti/loanmatchmaker/scoring"
	"github.com/vulbsti/loanmatchmaker/store"
	"github.com/vulbsti/loanmatchmaker/tracker"
)

// sessionIDPattern validates path-param session IDs as UUIDv4 (spec §6).
var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Deps collects the Server's collaborators.
type Deps struct {
	Store        store.SessionStore
	Orchestrator *orchestrator.Orchestrator
	Tracker      *tracker.ParameterTracker
	Scoring      *scoring.Engine
	Catalogue    *catalogue.LenderCatalogue
	Limiter      *ratelimiter.Limiter
	Gateway      *llmgateway.Gateway
	CORSOrigins  []string
	MaxBodyBytes int64
	MatchTopK    int
}

// Server wires the HTTP transport over the loan-advisor domain services.
type Server struct {
	router       *gin.Engine
	store        store.SessionStore
	orchestrator *orchestrator.Orchestrator
	tracker      *tracker.ParameterTracker
	scoring      *scoring.Engine
	catalogue    *catalogue.LenderCatalogue
	limiter      *ratelimiter.Limiter
	gateway      *llmgateway.Gateway
	corsOrigins  []string
	maxBodyBytes int64
	matchTopK    int
	startedAt    time.Time
}

// New builds a Server and registers its routes.
func New(d Deps) *Server {
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 10 << 20
	}
	if d.MatchTopK <= 0 {
		d.MatchTopK = 5
	}

	s := &Server{
		store:        d.Store,
		orchestrator: d.Orchestrator,
		tracker:      d.Tracker,
		scoring:      d.Scoring,
		catalogue:    d.Catalogue,
		limiter:      d.Limiter,
		gateway:      d.Gateway,
		corsOrigins:  d.CORSOrigins,
		maxBodyBytes: d.MaxBodyBytes,
		matchTopK:    d.MatchTopK,
		startedAt:    time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLoggerMiddleware(), s.corsMiddleware(), s.bodyLimitMiddleware())
	s.router = router
	s.registerRoutes()
	return s
}

// Start runs the HTTP server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	log.Log.Infof("[httpserver] listening on %s", addr)
	return s.router.Run(addr)
}

// Handler exposes the underlying gin.Engine for tests (httptest.Server).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Log.Infof("[httpserver] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return false
	}
	for _, o := range s.corsOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) bodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
		c.Next()
	}
}

// clientKey returns the rate-limiter key for a request: sessionId when
// known, else the client IP (spec §4.9).
func clientKey(c *gin.Context, sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return c.ClientIP()
}

func fingerprintFrom(c *gin.Context) *model.Fingerprint {
	return &model.Fingerprint{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	}
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// reqContext returns the request's context, used for LLM/store calls that
// accept cancellation (spec §5).
func reqContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
