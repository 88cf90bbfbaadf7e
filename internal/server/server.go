// Package server exposes the decoy conversation API over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/decoynet/decoyd/internal/engine"
	"github.com/decoynet/decoyd/internal/session"
	"github.com/decoynet/decoyd/pkg/observability"
)

// Server routes inbound honeypot traffic to the engine.
type Server struct {
	engine *engine.Engine
	apiKey string
	router *gin.Engine
}

// messageBody is the inbound message envelope. Timestamps arrive as
// epoch milliseconds.
type messageBody struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type honeypotRequest struct {
	SessionID           string         `json:"sessionId"`
	Message             messageBody    `json:"message"`
	ConversationHistory []messageBody  `json:"conversationHistory"`
	Metadata            map[string]any `json:"metadata"`
}

// New builds the HTTP surface around eng. Every route except /health
// requires the x-api-key header to match apiKey.
func New(eng *engine.Engine, apiKey string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: eng, apiKey: apiKey, router: gin.New()}

	s.router.Use(gin.Recovery(), s.metrics())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	authed := s.router.Group("/", s.auth())
	authed.POST("/honeypot", s.handleMessage)
	authed.GET("/session/:id", s.getSession)
	authed.DELETE("/session/:id", s.deleteSession)

	return s
}

// Router returns the underlying gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("x-api-key") != s.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Unauthorized - Invalid API key",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observability.RecordHTTPRequest(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func (s *Server) handleMessage(c *gin.Context) {
	var req honeypotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request format",
		})
		return
	}

	replyText, err := s.engine.HandleMessage(c.Request.Context(), engine.Inbound{
		SessionID: req.SessionID,
		Sender:    req.Message.Sender,
		Text:      req.Message.Text,
		Timestamp: fromMillis(req.Message.Timestamp),
		History:   seedTurns(req.ConversationHistory),
	})
	switch {
	case errors.Is(err, engine.ErrMissingSessionID):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing sessionId"})
		return
	case errors.Is(err, engine.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing message text"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "reply": replyText})
}

func (s *Server) getSession(c *gin.Context) {
	snap, err := s.engine.Inspect(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"session": gin.H{
			"sessionId":          snap.ID,
			"turnCount":          snap.TurnCount,
			"scamDetected":       snap.ScamConfirmed,
			"confidence":         snap.Confidence,
			"intentSignals":      snap.IntentSignals,
			"artifacts":          snap.Artifacts,
			"conversationLength": len(snap.History),
		},
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.engine.Evict(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func seedTurns(history []messageBody) []session.Turn {
	turns := make([]session.Turn, 0, len(history))
	for _, m := range history {
		if m.Text == "" {
			continue
		}
		speaker := m.Sender
		if speaker == "" {
			speaker = session.SpeakerScammer
		}
		turns = append(turns, session.Turn{
			Speaker:   speaker,
			Text:      m.Text,
			Timestamp: fromMillis(m.Timestamp),
		})
	}
	return turns
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
