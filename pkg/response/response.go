// Package response provides the unified JSON envelope for portfolio-rag endpoints.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware/requestutil"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp"`
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// Err creates an error response from an Errno. The cause is never rendered.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:    e.Code,
		Message: e.MessageEN,
	}
}

// OK writes a 200 response with data.
func OK(c *gin.Context, data any) {
	write(c, http.StatusOK, Success(data))
}

// Accepted writes a 202 response with data.
func Accepted(c *gin.Context, data any) {
	write(c, http.StatusAccepted, Success(data))
}

// Fail writes the Errno as an error response and aborts the chain.
func Fail(c *gin.Context, e *errors.Errno) {
	if cause := e.Unwrap(); cause != nil {
		logger.Warnw("request failed",
			"code", e.Code,
			"path", c.Request.URL.Path,
			"request_id", requestutil.GetRequestID(c),
			"error", cause.Error(),
		)
	}
	resp := Err(e)
	resp.RequestID = requestutil.GetRequestID(c)
	resp.Timestamp = time.Now().UnixMilli()
	c.AbortWithStatusJSON(e.HTTPStatus(), resp)
}

// FailWithError converts err to an Errno and writes it.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

func write(c *gin.Context, status int, resp *Response) {
	resp.RequestID = requestutil.GetRequestID(c)
	resp.Timestamp = time.Now().UnixMilli()
	c.JSON(status, resp)
}
