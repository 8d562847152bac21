package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware/requestutil"
)

// maxRequestIDLen bounds a client supplied request id.
const maxRequestIDLen = 64

// RequestID returns a middleware that adds a unique request ID to each request.
// A well-formed incoming X-Request-ID is kept, otherwise a ULID is generated.
// The id is set on the response header and stored in the gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestutil.HeaderXRequestID)
		if !validRequestID(requestID) {
			requestID = ulid.Make().String()
		}

		c.Header(requestutil.HeaderXRequestID, requestID)
		c.Set(requestutil.ContextKeyRequestID, requestID)
		c.Next()
	}
}

// validRequestID accepts short ids made of [A-Za-z0-9._-] so that the value
// is safe to echo and log.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
