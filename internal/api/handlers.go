package api

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatrelay/internal/auth"
	"chatrelay/internal/config"
	"chatrelay/internal/metrics"
	"chatrelay/internal/models"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/relay"
	"chatrelay/internal/store"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Handler wires HTTP routes to the relay orchestrator and the conversation
// store.
type Handler struct {
	store        *store.Store
	orchestrator *relay.Orchestrator
	limiter      ratelimit.Limiter
	clientKey    string
	adminKey     string
	limits       relay.Limits
	development  bool
	metrics      *metrics.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(st *store.Store, orch *relay.Orchestrator, limiter ratelimit.Limiter, cfg *config.Config, m *metrics.Metrics) *Handler {
	return &Handler{
		store:        st,
		orchestrator: orch,
		limiter:      limiter,
		clientKey:    cfg.Auth.ClientKey,
		adminKey:     cfg.Auth.AdminKey,
		limits: relay.Limits{
			MaxSessionChars: cfg.Chat.MaxSessionChars,
			MaxMessageChars: cfg.Chat.MaxMessageChars,
		},
		development: cfg.IsDevelopment(),
		metrics:     m,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID())
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	chat := api.Group("/chat")
	chat.Use(auth.RateLimit(h.limiter, h.metrics.RateLimitRejected), auth.RequireClient(h.clientKey))
	chat.POST("", h.chat)
	chat.POST("/stream", h.chatStream)

	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin(h.adminKey))
	admin.GET("/conversations", h.listConversations)
	admin.GET("/conversations/:id", h.getThread)
}

const requestIDContextKey = "request_id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDContextKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	if id, ok := c.Get(requestIDContextKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseChat binds and validates the submission body; on failure it has
// already written the 400 response.
func (h *Handler) parseChat(c *gin.Context) (relay.ChatTurn, bool) {
	var req relay.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return relay.ChatTurn{}, false
	}
	turn, err := req.Validate(h.limits)
	if err != nil {
		body := gin.H{"error": "invalid request"}
		if h.development {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusBadRequest, body)
		return relay.ChatTurn{}, false
	}
	return turn, true
}

func (h *Handler) chatStream(c *gin.Context) {
	started := time.Now()
	turn, ok := h.parseChat(c)
	if !ok {
		h.metrics.ObserveRequest("chat_stream", "invalid")
		return
	}

	ew, err := relay.NewEventWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": relay.GenericErrorMessage})
		return
	}

	if err := h.orchestrator.Stream(c.Request.Context(), turn, ew); err != nil {
		log.Printf("chat stream [%s]: %v", requestIDFrom(c), err)
		if !ew.Started() {
			c.JSON(http.StatusInternalServerError, gin.H{"error": relay.GenericErrorMessage})
		}
		h.metrics.ObserveRequest("chat_stream", "error")
		return
	}
	h.metrics.ObserveRequest("chat_stream", "ok")
	h.metrics.ObserveDuration(time.Since(started).Seconds())
}

func (h *Handler) chat(c *gin.Context) {
	started := time.Now()
	turn, ok := h.parseChat(c)
	if !ok {
		h.metrics.ObserveRequest("chat", "invalid")
		return
	}

	conversationID, message, err := h.orchestrator.Complete(c.Request.Context(), turn)
	if err != nil {
		log.Printf("chat [%s]: %v", requestIDFrom(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": relay.GenericErrorMessage})
		h.metrics.ObserveRequest("chat", "error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversationId": conversationID,
		"message":        message,
	})
	h.metrics.ObserveRequest("chat", "ok")
	h.metrics.ObserveDuration(time.Since(started).Seconds())
}

func (h *Handler) listConversations(c *gin.Context) {
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	conversations, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		log.Printf("list conversations [%s]: %v", requestIDFrom(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": relay.GenericErrorMessage})
		return
	}
	total, err := h.store.Count(c.Request.Context())
	if err != nil {
		log.Printf("count conversations [%s]: %v", requestIDFrom(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": relay.GenericErrorMessage})
		return
	}
	if conversations == nil {
		conversations = make([]models.Conversation, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"total":         total,
	})
}

func (h *Handler) getThread(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	conversation, messages, err := h.store.Thread(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		log.Printf("get thread [%s]: %v", requestIDFrom(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": relay.GenericErrorMessage})
		return
	}
	if messages == nil {
		messages = make([]*models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conversation,
		"messages":     messages,
	})
}
