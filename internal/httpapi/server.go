package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"metalwatch/internal/assistant"
	"metalwatch/internal/metrics"
)

const maxQuestionChars = 500

// Asker is the question pipeline served over HTTP.
type Asker interface {
	Ask(ctx context.Context, text string) (assistant.Reply, error)
	AskStream(ctx context.Context, text string) (assistant.StreamReply, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the chat API.
type Handler struct {
	asker  Asker
	health Pinger
	logger zerolog.Logger
}

type chatRequest struct {
	Question string `json:"question"`
}

// NewRouter builds the gin engine. health may be nil.
func NewRouter(asker Asker, health Pinger, logger zerolog.Logger) *gin.Engine {
	h := &Handler{
		asker:  asker,
		health: health,
		logger: logger.With().Str("component", "http").Logger(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.observe)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/chat", h.Chat)
		api.POST("/chat/stream", h.ChatStream)
	}
	return r
}

func (h *Handler) observe(c *gin.Context) {
	done := metrics.Recorder{}.RequestStarted()
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	done(c.Request.Method, route, status)
	h.logger.Debug().
		Str("method", c.Request.Method).
		Str("route", route).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("request served")
}

func (h *Handler) question(c *gin.Context) (string, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return "", false
	}
	text := strings.TrimSpace(req.Question)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return "", false
	}
	if len([]rune(text)) > maxQuestionChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is too long"})
		return "", false
	}
	return text, true
}

func (h *Handler) fail(c *gin.Context, requestID string, err error) {
	if errors.Is(err, assistant.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "request_id": requestID})
		return
	}
	h.logger.Error().Err(err).Str("request_id", requestID).Msg("unexpected ask failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "request_id": requestID})
}

// Chat answers one question as JSON.
func (h *Handler) Chat(c *gin.Context) {
	text, ok := h.question(c)
	if !ok {
		return
	}
	reply, err := h.asker.Ask(c.Request.Context(), text)
	if err != nil {
		h.fail(c, reply.RequestID, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ChatStream answers one question as server-sent events: a meta event,
// delta events carrying text, then done. A client disconnect cancels the
// request context and ends the stream.
func (h *Handler) ChatStream(c *gin.Context) {
	text, ok := h.question(c)
	if !ok {
		return
	}
	stream, err := h.asker.AskStream(c.Request.Context(), text)
	if err != nil {
		h.fail(c, stream.RequestID, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("meta", gin.H{
		"request_id": stream.RequestID,
		"intent":     stream.Intent,
		"as_of":      stream.AsOf,
		"evidence":   stream.Evidence,
	})
	c.Writer.Flush()

	for d := range stream.Deltas {
		c.SSEvent("delta", gin.H{"text": d.Text, "source": d.Source})
		c.Writer.Flush()
	}
	if c.Request.Context().Err() != nil {
		return
	}
	c.SSEvent("done", gin.H{"request_id": stream.RequestID})
	c.Writer.Flush()
}

// Healthz reports whether the price store is reachable.
func (h *Handler) Healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
