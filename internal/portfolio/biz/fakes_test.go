package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

var errBoom = errors.New("boom")

var testVocab = []string{"go", "python", "demo", "sumit", "kafka", "java"}

// keywordProvider embeds text as keyword counts over testVocab.
type keywordProvider struct {
	failOn string

	mu    sync.Mutex
	tasks []llm.EmbedOptions
}

func (k *keywordProvider) EmbedWithTask(_ context.Context, text string, opts llm.EmbedOptions) ([]float32, error) {
	k.mu.Lock()
	k.tasks = append(k.tasks, opts)
	k.mu.Unlock()

	if k.failOn != "" && strings.Contains(text, k.failOn) {
		return nil, errBoom
	}
	vec := make([]float32, len(testVocab))
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for i, w := range testVocab {
			if tok == w {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (k *keywordProvider) Name() string { return "keyword" }

func newTestEmbedder(p *keywordProvider) *Embedder {
	return NewEmbedder(p, len(testVocab), nil)
}

func testIndexSpec() store.IndexSpec {
	return store.IndexSpec{Name: "portfolio-rag", Dimension: len(testVocab), Metric: store.MetricCosine}
}

// staticCollector returns fixed chunks, optionally after wait is closed.
type staticCollector struct {
	name   string
	chunks []model.Chunk
	err    error
	wait   <-chan struct{}
}

func (s *staticCollector) Name() string { return s.name }

func (s *staticCollector) Collect(ctx context.Context) ([]model.Chunk, error) {
	if s.wait != nil {
		select {
		case <-s.wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.chunks, s.err
}

// recordingIndex wraps a MemoryIndex and records upsert batches.
type recordingIndex struct {
	*store.MemoryIndex
	upsertErr error

	mu      sync.Mutex
	batches [][]string
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{MemoryIndex: store.NewMemoryIndex()}
}

func (r *recordingIndex) Upsert(ctx context.Context, index string, records []model.VectorRecord) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	r.mu.Lock()
	r.batches = append(r.batches, ids)
	r.mu.Unlock()
	return r.MemoryIndex.Upsert(ctx, index, records)
}

func (r *recordingIndex) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sizes := make([]int, len(r.batches))
	for i, b := range r.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (r *recordingIndex) upsertedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, b := range r.batches {
		ids = append(ids, b...)
	}
	return ids
}

// goSubmitter runs each task on its own goroutine.
type goSubmitter struct{}

func (goSubmitter) Submit(task func()) error {
	go task()
	return nil
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Submit(func()) error { return errBoom }

// fakeGenerator streams fixed fragments then returns err.
type fakeGenerator struct {
	fragments []string
	err       error

	mu      sync.Mutex
	calls   int
	prompts []string
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, prompt string, fn llm.FragmentFunc) error {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	for _, f := range g.fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return g.err
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func textChunk(id, text string) model.Chunk {
	return model.Chunk{
		ID:   id,
		Text: text,
		Metadata: model.Metadata{
			Source: model.SourceDatabase,
			Type:   model.TypeProject,
			Title:  id,
		},
	}
}

func drain(ch <-chan Fragment) (text string, errs []error) {
	var b strings.Builder
	for f := range ch {
		if f.Err != nil {
			errs = append(errs, f.Err)
			continue
		}
		b.WriteString(f.Text)
	}
	return b.String(), errs
}
