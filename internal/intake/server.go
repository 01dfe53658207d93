// Package intake receives document change notifications over HTTP and
// feeds them to the trigger dispatcher. The transport delivers
// at-least-once with no ordering guarantee; the engine is built for
// exactly that, so the endpoint just validates and enqueues.
package intake

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SimonWorku1/PrayerBuddy/internal/engine"
	"github.com/SimonWorku1/PrayerBuddy/internal/store"
)

type Server struct {
	log        *slog.Logger
	dispatcher *engine.Dispatcher
	router     *gin.Engine
	intakeKey  string
}

type changePayload struct {
	Kind   string         `json:"kind" binding:"required"`
	Path   string         `json:"path" binding:"required"`
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
}

func NewServer(log *slog.Logger, d *engine.Dispatcher, intakeKey string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:        log,
		dispatcher: d,
		router:     gin.New(),
		intakeKey:  intakeKey,
	}

	r := s.router
	r.Use(gin.Recovery())

	r.POST("/v1/changes", s.authMiddleware(), s.postChange)
	r.GET("/healthz", s.health)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) postChange(c *gin.Context) {
	var p changePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := store.ChangeKind(p.Kind)
	switch kind {
	case store.ChangeCreated, store.ChangeUpdated, store.ChangeDeleted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be created, updated or deleted"})
		return
	}

	s.dispatcher.Enqueue(store.Change{
		Kind:   kind,
		Path:   p.Path,
		Before: p.Before,
		After:  p.After,
		At:     time.Now(),
	})
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "queue_depth": s.dispatcher.QueueDepth()})
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.intakeKey == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-Intake-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.intakeKey)) != 1 {
			s.log.Warn("intake_auth_rejected", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
