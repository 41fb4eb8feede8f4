package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vulbsti/loanmatchmaker/agents"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/ratelimiter"
)

// serverVersion is surfaced by the health endpoint (spec §6).
const serverVersion = "1.0.0"

// fail writes the shared error envelope, mapping a domain error's Kind to
// an HTTP status per spec §7.
func fail(c *gin.Context, err error) {
	var status int
	kind := model.KindOf(err)
	switch kind {
	case model.KindValidation:
		status = http.StatusBadRequest
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindExpired:
		status = http.StatusUnauthorized
	case model.KindRateLimited:
		status = http.StatusTooManyRequests
	case model.KindUpstreamUnavailable:
		status = http.StatusServiceUnavailable
	case model.KindUpstreamDegraded:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	env := envelope{Success: false, Error: err.Error()}
	var derr *model.Error
	if errors.As(err, &derr) && derr.Bucket != "" {
		env.Message = "rate limit bucket: " + derr.Bucket
	}
	c.JSON(status, env)
}

// createSessionRequest is intentionally empty: session creation carries no
// required body, only the optional client fingerprint from headers.
type createSessionRequest struct{}

func (s *Server) handleCreateSession(c *gin.Context) {
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, "")); err != nil {
		fail(c, err)
		return
	}
	session, err := s.store.Open(fingerprintFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"sessionId": session.SessionID,
		"expiresAt": session.ExpiresAt,
		"message":   agents.FallbackPrompt(model.RequiredFieldOrder),
	})
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, model.NewValidationError("body", err.Error()))
		return
	}
	if !validSessionID(req.SessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassChat, clientKey(c, req.SessionID)); err != nil {
		fail(c, err)
		return
	}

	result, err := s.orchestrator.HandleTurn(reqContext(c), req.SessionID, req.Message)
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"sessionId":            result.SessionID,
		"response":             result.Reply,
		"action":               result.Action,
		"matches":              result.Matches,
		"completionPercentage": result.CompletionPercent,
	})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !validSessionID(sessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, sessionID)); err != nil {
		fail(c, err)
		return
	}

	snapshot, err := s.store.Load(sessionID)
	if err != nil {
		fail(c, err)
		return
	}

	durationMinutes := int(snapshot.Session.UpdatedAt.Sub(snapshot.Session.CreatedAt) / time.Minute)
	ok(c, http.StatusOK, gin.H{
		"sessionId": sessionID,
		"messages":  snapshot.History,
		"summary": gin.H{
			"messageCount":        len(snapshot.History),
			"durationMinutes":     durationMinutes,
			"parametersCollected": snapshot.Tracking.Collected(),
			"lastActivity":        snapshot.Session.UpdatedAt,
		},
	})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !validSessionID(sessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, sessionID)); err != nil {
		fail(c, err)
		return
	}
	if err := s.store.Close(sessionID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sessionId": sessionID, "status": "ended"})
}

func (s *Server) handleLoanStatus(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !validSessionID(sessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, sessionID)); err != nil {
		fail(c, err)
		return
	}

	params, tracking, err := s.tracker.Get(sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"sessionId":            sessionID,
		"completionPercentage": tracking.CompletionPercent(),
		"collectedParameters":  params,
		"missingParameters":    tracking.Missing(),
		"tracking":             tracking,
		"isComplete":           tracking.IsComplete(),
	})
}

type loanMatchRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (s *Server) handleLoanMatch(c *gin.Context) {
	var req loanMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, model.NewValidationError("body", err.Error()))
		return
	}
	if !validSessionID(req.SessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassMatching, clientKey(c, req.SessionID)); err != nil {
		fail(c, err)
		return
	}

	params, tracking, err := s.tracker.Get(req.SessionID)
	if err != nil {
		fail(c, err)
		return
	}
	if !tracking.IsComplete() {
		fail(c, model.NewValidationError("parameters", "required parameters are not yet complete"))
		return
	}

	matches := s.scoring.Score(s.catalogue.List(), params, s.matchTopK)
	if err := s.store.WithSessionLock(req.SessionID, func() error {
		return s.store.ReplaceMatches(req.SessionID, matches)
	}); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"sessionId":    req.SessionID,
		"matches":      matches,
		"totalMatches": len(matches),
		"calculatedAt": time.Now(),
		"parameters":   params,
	})
}

func (s *Server) handleLoanResults(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !validSessionID(sessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, sessionID)); err != nil {
		fail(c, err)
		return
	}

	matches, err := s.store.GetMatches(sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sessionId": sessionID, "matches": matches})
}

type setParameterRequest struct {
	Parameter string `json:"parameter" binding:"required"`
	Value     any    `json:"value" binding:"required"`
}

func (s *Server) handleSetParameter(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !validSessionID(sessionID) {
		fail(c, model.NewValidationError("sessionId", "must be a UUIDv4"))
		return
	}
	var req setParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, model.NewValidationError("body", err.Error()))
		return
	}
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, sessionID)); err != nil {
		fail(c, err)
		return
	}

	params, tracking, err := s.tracker.Set(sessionID, model.Field(req.Parameter), req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"sessionId":            sessionID,
		"parameters":           params,
		"completionPercentage": tracking.CompletionPercent(),
		"tracking":             tracking,
	})
}

func (s *Server) handleListLenders(c *gin.Context) {
	if err := s.limiter.Allow(ratelimiter.ClassGeneral, clientKey(c, "")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"lenders": s.catalogue.List()})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := reqContext(c)

	dbHealthy := s.store.Ping(ctx) == nil
	llmHealthy := s.gateway == nil || s.gateway.HealthCheck(ctx)
	overall := "ok"
	if !dbHealthy || !llmHealthy {
		overall = "degraded"
	}

	// Degraded health is reported in the body, not via 5xx: a responding
	// but degraded dependency is not a server error (spec §7).
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data: gin.H{
			"status": overall,
			"services": gin.H{
				"database": healthyLabel(dbHealthy),
				"llm":      healthyLabel(llmHealthy),
			},
			"uptime":  time.Since(s.startedAt).String(),
			"version": serverVersion,
		},
	})
}

func healthyLabel(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "down"
}
