package httpserver

import "github.com/gin-gonic/gin"

// registerRoutes wires the ten endpoints from spec §6 under /api.
func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	chat := api.Group("/chat")
	chat.POST("/session", s.handleCreateSession)
	chat.POST("/message", s.handleSendMessage)
	chat.GET("/history/:sessionId", s.handleGetHistory)
	chat.DELETE("/session/:sessionId", s.handleDeleteSession)

	loan := api.Group("/loan")
	loan.GET("/status/:sessionId", s.handleLoanStatus)
	loan.POST("/match", s.handleLoanMatch)
	loan.GET("/results/:sessionId", s.handleLoanResults)
	loan.PUT("/parameters/:sessionId", s.handleSetParameter)
	loan.GET("/lenders", s.handleListLenders)

	api.GET("/health", s.handleHealth)
}

// envelope is the shared response shape for every endpoint (spec §6).
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func okMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: true, Message: message})
}
