package response

import (
	"github.com/gin-gonic/gin"
)

// Error is the envelope every failed request carries. Message is the
// status-level text, Details the machine-readable specifics, URL the
// request path that produced the failure.
type Error struct {
	Message string `json:"message"`
	Details any    `json:"details"`
	URL     string `json:"url"`
}

// WriteError emits the error envelope and aborts the handler chain.
func WriteError(c *gin.Context, status int, message string, details any) {
	c.AbortWithStatusJSON(status, Error{
		Message: message,
		Details: details,
		URL:     c.Request.URL.Path,
	})
}
