package biz

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

// Responder defaults.
const (
	DefaultHistoryTurns   = 6
	DefaultGreetingMaxLen = 10
)

// DeclineMessage is streamed instead of a generated answer when the question
// matched nothing in the knowledge base.
const DeclineMessage = "I can only answer questions about Sumit's work and background. " +
	"Try asking about one of the projects or skills listed in the portfolio."

const promptTemplate = `You are 'AI Sumit', a virtual assistant for Sumit Kumar's portfolio.
Your goal is to answer questions about Sumit's skills, projects, experience, and background based on the provided context.

Rules:
- If the user asks about something NOT in the context (like "Who is Messi?" or "Write me code"), politely refuse and say you can only discuss Sumit's work.
- If the answer is in the context, answer clearly and professionally.
- Be concise. Keep answers under 4-5 sentences unless asked for details.
- Use a friendly, professional tone.
- Use Markdown for emphasis (bold, lists) where appropriate.

Context:
{context}

Conversation History:
{history}

User Question: {question}

Answer:
`

// ResponderConfig 回答生成配置。
type ResponderConfig struct {
	// HistoryTurns 提示词中保留的最近对话轮数。
	HistoryTurns int
	// GreetingMaxLen 短于该长度的问题视为寒暄，总是交给模型。
	GreetingMaxLen int
	// DeclineWithoutContext 无相关上下文时直接返回拒答文案。
	DeclineWithoutContext bool
}

// Fragment is one piece of a streamed answer. A Fragment with Err set is
// the last one sent.
type Fragment struct {
	Text string
	Err  error
}

// Responder 组装提示词并流式生成回答。
type Responder struct {
	generator llm.GenerationProvider
	config    ResponderConfig
	tracer    trace.Tracer
}

// NewResponder 创建 Responder。
func NewResponder(generator llm.GenerationProvider, config ResponderConfig) *Responder {
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = DefaultHistoryTurns
	}
	if config.GreetingMaxLen <= 0 {
		config.GreetingMaxLen = DefaultGreetingMaxLen
	}
	return &Responder{
		generator: generator,
		config:    config,
		tracer:    otel.Tracer(tracerName),
	}
}

// ShouldDecline reports whether the fixed refusal replaces generation.
func (r *Responder) ShouldDecline(query string, retrieval *RetrievalResult) bool {
	if !r.config.DeclineWithoutContext {
		return false
	}
	if retrieval != nil && retrieval.HasRelevantContext {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(query)) >= r.config.GreetingMaxLen
}

// BuildPrompt renders the instruction prompt. Only the most recent
// HistoryTurns turns are included, oldest first.
func (r *Responder) BuildPrompt(query string, history []model.Turn, contextText string) string {
	return strings.NewReplacer(
		"{context}", contextText,
		"{history}", r.formatHistory(history),
		"{question}", query,
	).Replace(promptTemplate)
}

func (r *Responder) formatHistory(history []model.Turn) string {
	if len(history) > r.config.HistoryTurns {
		history = history[len(history)-r.config.HistoryTurns:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, strings.ToUpper(string(t.Role))+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// Respond streams the answer. The channel is closed when generation ends;
// cancelling ctx stops generation and closes the channel without an error
// fragment.
func (r *Responder) Respond(ctx context.Context, query string, history []model.Turn, retrieval *RetrievalResult) <-chan Fragment {
	out := make(chan Fragment)

	if r.ShouldDecline(query, retrieval) {
		go func() {
			defer close(out)
			select {
			case out <- Fragment{Text: DeclineMessage}:
			case <-ctx.Done():
			}
		}()
		return out
	}

	contextText := ""
	if retrieval != nil {
		contextText = retrieval.Context
	}
	prompt := r.BuildPrompt(query, history, contextText)

	go func() {
		defer close(out)

		ctx, span := r.tracer.Start(ctx, "chat.generate", trace.WithAttributes(
			attribute.String("provider", r.generator.Name()),
			attribute.Int("prompt_chars", len(prompt)),
		))
		defer span.End()

		fragments := 0
		err := r.generator.GenerateStream(ctx, prompt, func(text string) error {
			select {
			case out <- Fragment{Text: text}:
				fragments++
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		span.SetAttributes(attribute.Int("fragments", fragments))

		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			logger.Debugw("generation cancelled", "fragments", fragments)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Errorw("generation failed", "fragments", fragments, "error", err.Error())
		select {
		case out <- Fragment{Err: err}:
		case <-ctx.Done():
		}
	}()
	return out
}
