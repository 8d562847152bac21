package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/collector"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

const tracerName = "github.com/smaxiso/portfolio-rag/internal/portfolio/biz"

// DefaultBatchSize is the number of records per upsert call.
const DefaultBatchSize = 50

// ErrSubmitFailed is returned when a background run could not be scheduled.
var ErrSubmitFailed = errors.New("failed to schedule ingestion")

// Submitter schedules background work. *pool.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}

// IngestorConfig 构建配置。
type IngestorConfig struct {
	// Index 目标索引，不存在时创建。
	Index store.IndexSpec
	// BatchSize 每次 upsert 的记录数。
	BatchSize int
}

// Ingestor 负责知识库构建：采集、嵌入、批量写入。
type Ingestor struct {
	index      store.VectorIndex
	embedder   *Embedder
	collectors []collector.Collector
	status     StatusStore
	submitter  Submitter
	config     IngestorConfig
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewIngestor creates an Ingestor. Collectors run concurrently but their
// output is consumed in the order given here.
func NewIngestor(
	index store.VectorIndex,
	embedder *Embedder,
	collectors []collector.Collector,
	status StatusStore,
	submitter Submitter,
	config IngestorConfig,
	m *metrics.Metrics,
) *Ingestor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if status == nil {
		status = NewMemoryStatusStore()
	}
	return &Ingestor{
		index:      index,
		embedder:   embedder,
		collectors: collectors,
		status:     status,
		submitter:  submitter,
		config:     config,
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
}

// Run is a scheduled ingestion. Done is closed when it finishes.
type Run struct {
	ID string

	done   chan struct{}
	status Status
	err    error
}

// Done is closed once the run reached completed or failed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the terminal status and run error. Only valid after Done.
func (r *Run) Result() (Status, error) {
	return r.status, r.err
}

// Trigger moves the status to running and schedules the run in the background.
// It returns ErrIngestionRunning if a run is already in progress and
// ErrSubmitFailed if the task could not be scheduled.
func (i *Ingestor) Trigger(ctx context.Context) (*Run, error) {
	id := ulid.Make().String()
	running, err := i.status.Begin(ctx, id, i.now())
	if err != nil {
		return nil, err
	}

	run := &Run{ID: id, done: make(chan struct{})}
	// 后台任务不随请求结束而取消
	bg := context.WithoutCancel(ctx)
	submitErr := i.submitter.Submit(func() {
		defer close(run.done)
		run.status, run.err = i.execute(bg, running)
	})
	if submitErr != nil {
		failed := finish(running, 0, fmt.Errorf("%w: %v", ErrSubmitFailed, submitErr), i.now())
		if err := i.status.Set(ctx, failed); err != nil {
			logger.Errorw("failed to record ingestion status", "run_id", id, "error", err.Error())
		}
		i.metrics.IngestionRun(string(StateFailed), 0)
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, submitErr)
	}

	logger.Infow("ingestion scheduled", "run_id", id)
	return run, nil
}

// Run performs one ingestion synchronously, recording status like Trigger.
// The returned error is the run-level failure, if any.
func (i *Ingestor) Run(ctx context.Context) (Status, error) {
	running, err := i.status.Begin(ctx, ulid.Make().String(), i.now())
	if err != nil {
		return running, err
	}
	return i.execute(ctx, running)
}

// Status returns the current ingestion status.
func (i *Ingestor) Status(ctx context.Context) (Status, error) {
	return i.status.Get(ctx)
}

func (i *Ingestor) execute(ctx context.Context, running Status) (final Status, runErr error) {
	start := i.now()
	written := 0

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("ingestion panic: %v", r)
		}
		final = finish(running, written, runErr, i.now())
		if err := i.status.Set(context.WithoutCancel(ctx), final); err != nil {
			logger.Errorw("failed to record ingestion status", "run_id", running.RunID, "error", err.Error())
		}
		i.metrics.IngestionRun(string(final.State), i.now().Sub(start))

		if runErr != nil {
			logger.Errorw("ingestion failed", "run_id", running.RunID, "vectors", written, "error", runErr.Error())
			return
		}
		logger.Infow("ingestion completed", "run_id", running.RunID, "vectors", written, "duration", i.now().Sub(start).String())
	}()

	logger.Infow("ingestion started", "run_id", running.RunID, "index", i.config.Index.Name)
	written, runErr = i.Ingest(ctx)
	return final, runErr
}

// Ingest rebuilds the index content: ensure the index, collect all sources,
// embed every chunk and upsert in batches. Chunks whose embedding fails are
// skipped. It returns the number of vectors written.
func (i *Ingestor) Ingest(ctx context.Context) (int, error) {
	ctx, span := i.tracer.Start(ctx, "ingestion.ingest",
		trace.WithAttributes(attribute.String("index", i.config.Index.Name)))
	defer span.End()

	written, err := i.ingest(ctx, span)
	span.SetAttributes(attribute.Int("vectors", written))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return written, err
}

func (i *Ingestor) ingest(ctx context.Context, span trace.Span) (int, error) {
	created, err := store.EnsureIndex(ctx, i.index, i.config.Index)
	if err != nil {
		return 0, err
	}
	if created {
		logger.Infow("vector index created", "index", i.config.Index.Name)
	}

	chunks := dedupe(i.collect(ctx))
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	logger.Infow("chunks collected", "total", len(chunks))

	var (
		written int
		skipped int
		batch   = make([]model.VectorRecord, 0, i.config.BatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.index.Upsert(ctx, i.config.Index.Name, batch); err != nil {
			return fmt.Errorf("upsert %d vectors: %w", len(batch), err)
		}
		written += len(batch)
		i.metrics.VectorsUpserted(len(batch))
		logger.Debugw("batch upserted", "size", len(batch), "written", written)
		batch = batch[:0]
		return nil
	}

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if c.Text == "" {
			skipped++
			continue
		}

		vec, ok := i.embedder.Embed(ctx, c.Text, llm.TaskDocument)
		if !ok {
			skipped++
			continue
		}
		if dim := i.config.Index.Dimension; dim > 0 && len(vec) != dim {
			logger.Warnw("embedding dimension mismatch, chunk skipped", "id", c.ID, "got", len(vec), "want", dim)
			skipped++
			continue
		}

		batch = append(batch, model.NewVectorRecord(c, vec))
		if len(batch) >= i.config.BatchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	if skipped > 0 {
		logger.Warnw("chunks skipped", "skipped", skipped, "written", written)
	}
	return written, nil
}

// collect runs every collector concurrently. A failing or panicking
// collector contributes no chunks; the others are unaffected.
func (i *Ingestor) collect(ctx context.Context) []model.Chunk {
	results := make([][]model.Chunk, len(i.collectors))

	var g errgroup.Group
	for idx, c := range i.collectors {
		g.Go(func() error {
			ctx, span := i.tracer.Start(ctx, "ingestion.collect",
				trace.WithAttributes(attribute.String("collector", c.Name())))
			defer span.End()
			// recover 只作用于当前 goroutine，execute 中的兜底覆盖不到这里
			defer func() {
				if r := recover(); r != nil {
					span.SetStatus(codes.Error, "collector panicked")
					logger.Errorw("collector panicked", "collector", c.Name(), "panic", fmt.Sprint(r))
					results[idx] = nil
				}
			}()

			start := time.Now()
			chunks, err := c.Collect(ctx)
			if err != nil {
				span.RecordError(err)
				logger.Errorw("collector failed", "collector", c.Name(), "error", err.Error())
				return nil
			}
			span.SetAttributes(attribute.Int("chunks", len(chunks)))
			logger.Infow("collector finished", "collector", c.Name(), "chunks", len(chunks), "duration", time.Since(start).String())
			results[idx] = chunks
			return nil
		})
	}
	_ = g.Wait()

	var all []model.Chunk
	for _, chunks := range results {
		all = append(all, chunks...)
	}
	return all
}

// dedupe keeps the first chunk for each id.
func dedupe(chunks []model.Chunk) []model.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ID]; ok {
			logger.Warnw("duplicate chunk id dropped", "id", c.ID)
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
