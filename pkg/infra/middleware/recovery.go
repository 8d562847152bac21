package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware/requestutil"
	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// Recovery returns a middleware that turns a panic into a 500 response.
// The stack trace is logged, never returned to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"panic", fmt.Sprint(r),
					"stack_trace", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", requestutil.GetRequestID(c),
				)
				// 流式响应已经开始时无法再改写状态码
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Fail(c, errors.ErrInternal)
			}
		}()
		c.Next()
	}
}
