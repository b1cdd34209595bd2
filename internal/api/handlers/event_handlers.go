package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/r0gig0r/double-take/internal/server/sse"
)

// StreamEvents streams tag/train events to the review UI over SSE.
func (h *ReviewHandler) StreamEvents(c *gin.Context) {
	client := make(sse.Client, 10)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
