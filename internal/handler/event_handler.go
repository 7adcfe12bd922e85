package handler

import (
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/sse"
	"github.com/ivspro/tariff-import/internal/utils"
)

// EventHandler streams run progress over Server-Sent Events.
type EventHandler struct {
	hub    *sse.Hub
	apiKey string
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(hub *sse.Hub, apiKey string) *EventHandler {
	return &EventHandler{hub: hub, apiKey: apiKey}
}

// Stream handles GET /v1/events?token=<api-key>
// EventSource API cannot set custom headers, so the key is passed via
// query param.
func (h *EventHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.Error(c, 401, "UNAUTHORIZED", "Missing token query parameter")
		return
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
		utils.Error(c, 401, "INVALID_TOKEN", "Invalid token")
		return
	}

	clientID := fmt.Sprintf("ui-%s-%d", c.ClientIP(), time.Now().UnixNano())

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	client := h.hub.Register(clientID)
	defer h.hub.Unregister(clientID)

	// Send initial connected event
	c.SSEvent("connected", gin.H{
		"clientId":  clientID,
		"message":   "SSE connection established",
		"timestamp": time.Now().Format(time.RFC3339),
	})
	c.Writer.Flush()

	log.Info().Str("client_id", clientID).Msg("Run event stream started")

	// Stream events
	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent("run", string(data))
			return true
		case <-time.After(30 * time.Second):
			c.SSEvent("ping", gin.H{"timestamp": time.Now().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
