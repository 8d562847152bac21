// Package handler provides the HTTP handlers of the portfolio service.
package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware/requestutil"
	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// StreamErrorTail terminates a stream whose generation failed midway.
const StreamErrorTail = "\n\n[error] response interrupted"

// Retriever finds the context for a question. *biz.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (*biz.RetrievalResult, error)
}

// Responder streams an answer. *biz.Responder satisfies it.
type Responder interface {
	ShouldDecline(query string, retrieval *biz.RetrievalResult) bool
	Respond(ctx context.Context, query string, history []model.Turn, retrieval *biz.RetrievalResult) <-chan biz.Fragment
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string       `json:"message" binding:"required"`
	History []model.Turn `json:"history" binding:"omitempty,dive"`
}

// ChatHandler answers questions about the portfolio owner.
type ChatHandler struct {
	retriever Retriever
	responder Responder
	metrics   *metrics.Metrics
}

// NewChatHandler creates a ChatHandler. Passing a nil retriever or responder
// leaves the endpoint answering 503 until the service is configured.
func NewChatHandler(retriever Retriever, responder Responder, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{
		retriever: retriever,
		responder: responder,
		metrics:   m,
	}
}

// Chat streams the answer as text/plain fragments.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ChatRequest(metrics.OutcomeInvalid)
		response.Fail(c, errors.ErrInvalidParam.WithMessage(bindMessage(err)))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.metrics.ChatRequest(metrics.OutcomeInvalid)
		response.Fail(c, errors.ErrInvalidParam.WithMessage("message must not be blank"))
		return
	}

	if h.retriever == nil || h.responder == nil {
		h.metrics.ChatRequest(metrics.OutcomeNotConfigured)
		response.Fail(c, errors.ErrChatNotConfigured)
		return
	}

	ctx := c.Request.Context()
	retrieval, err := h.retriever.Retrieve(ctx, req.Message)
	if err != nil {
		if stderrors.Is(err, biz.ErrQueryEmbedding) {
			h.metrics.ChatRequest(metrics.OutcomeEmbedFailed)
			response.Fail(c, errors.ErrEmbedQuery)
			return
		}
		h.metrics.ChatRequest(metrics.OutcomeStreamFailed)
		response.Fail(c, errors.ErrChatFailed.WithCause(err))
		return
	}

	declined := h.responder.ShouldDecline(req.Message, retrieval)
	fragments := h.responder.Respond(ctx, req.Message, req.History, retrieval)

	// 首个片段到达前尚未写出响应，此时的失败仍可返回 JSON 错误
	first, ok := <-fragments
	if ok && first.Err != nil {
		h.metrics.ChatRequest(metrics.OutcomeStreamFailed)
		response.Fail(c, errors.ErrChatFailed.WithCause(first.Err))
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if !ok {
		c.Writer.WriteHeaderNow()
		h.recordAnswer(declined)
		return
	}

	h.write(c, first.Text)
	for frag := range fragments {
		if frag.Err != nil {
			logger.Warnw("chat stream interrupted",
				"request_id", requestutil.GetRequestID(c),
				"error", frag.Err.Error(),
			)
			h.write(c, StreamErrorTail)
			h.metrics.ChatRequest(metrics.OutcomeStreamFailed)
			return
		}
		h.write(c, frag.Text)
	}
	h.recordAnswer(declined)
}

func (h *ChatHandler) recordAnswer(declined bool) {
	if declined {
		h.metrics.ChatRequest(metrics.OutcomeDeclined)
		return
	}
	h.metrics.ChatRequest(metrics.OutcomeAnswered)
}

func (h *ChatHandler) write(c *gin.Context, text string) {
	if _, err := c.Writer.WriteString(text); err != nil {
		logger.Debugw("chat client went away", "request_id", requestutil.GetRequestID(c), "error", err.Error())
		return
	}
	c.Writer.Flush()
}

// bindMessage renders binding errors without leaking decoder internals.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return "request body must be JSON with a message field"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// ChatRequest.History[0].Role -> history[0].role
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		field = strings.ToLower(field)
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
