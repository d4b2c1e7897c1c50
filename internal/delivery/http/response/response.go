package response

import (
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the per-request correlation id
const RequestIDKey = "RequestID"

// Response is the envelope every JSON endpoint answers with
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Error     any    `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func Success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(RequestIDKey),
	})
}

// Error writes a failure envelope. detail is omitted when nil.
func Error(c *gin.Context, code int, message string, detail any) {
	c.JSON(code, Response{
		Success:   false,
		Message:   message,
		Error:     detail,
		RequestID: c.GetString(RequestIDKey),
	})
}

// Abort writes a failure envelope and stops the handler chain
func Abort(c *gin.Context, code int, message string) {
	Error(c, code, message, nil)
	c.Abort()
}
