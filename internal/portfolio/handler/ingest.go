package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware"
	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// Ingestion starts and reports knowledge base rebuilds. *biz.Ingestor satisfies it.
type Ingestion interface {
	Trigger(ctx context.Context) (*biz.Run, error)
	Status(ctx context.Context) (biz.Status, error)
}

// TriggerResponse is returned when a run was scheduled.
type TriggerResponse struct {
	Status biz.State `json:"status"`
	RunID  string    `json:"run_id"`
}

// IngestHandler exposes the admin ingestion endpoints.
type IngestHandler struct {
	ingestion Ingestion
}

// NewIngestHandler creates an IngestHandler. A nil ingestion answers 503.
func NewIngestHandler(ingestion Ingestion) *IngestHandler {
	return &IngestHandler{ingestion: ingestion}
}

// Trigger schedules a background run and returns immediately.
func (h *IngestHandler) Trigger(c *gin.Context) {
	if h.ingestion == nil {
		response.Fail(c, errors.ErrChatNotConfigured)
		return
	}
	run, err := h.ingestion.Trigger(c.Request.Context())
	switch {
	case err == nil:
	case stderrors.Is(err, biz.ErrIngestionRunning):
		response.Fail(c, errors.ErrIngestRunning)
		return
	case stderrors.Is(err, biz.ErrSubmitFailed):
		response.Fail(c, errors.ErrIngestSubmit.WithCause(err))
		return
	default:
		response.Fail(c, errors.ErrInternal.WithCause(err))
		return
	}

	logger.Infow("ingestion triggered", "run_id", run.ID, "admin", middleware.AdminEmail(c))
	response.Accepted(c, TriggerResponse{Status: biz.StateRunning, RunID: run.ID})
}

// Status reports the current ingestion status.
func (h *IngestHandler) Status(c *gin.Context) {
	if h.ingestion == nil {
		response.Fail(c, errors.ErrChatNotConfigured)
		return
	}
	status, err := h.ingestion.Status(c.Request.Context())
	if err != nil {
		response.Fail(c, errors.ErrInternal.WithCause(err))
		return
	}
	response.OK(c, status)
}
