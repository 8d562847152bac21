package biz

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

func TestBuildPromptKeepsRecentHistory(t *testing.T) {
	r := NewResponder(&fakeGenerator{}, ResponderConfig{})
	var history []model.Turn
	for i := 0; i < 8; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		history = append(history, model.Turn{Role: role, Content: fmt.Sprintf("turn-%d", i)})
	}

	prompt := r.BuildPrompt("Does Sumit know Go?", history, "---\nctx\n---")

	assert.NotContains(t, prompt, "turn-0")
	assert.NotContains(t, prompt, "turn-1")
	assert.Contains(t, prompt, "USER: turn-2\nASSISTANT: turn-3")
	assert.Contains(t, prompt, "ASSISTANT: turn-7")
	assert.Contains(t, prompt, "Context:\n---\nctx\n---")
	assert.Contains(t, prompt, "User Question: Does Sumit know Go?")
	assert.True(t, strings.HasPrefix(prompt, "You are 'AI Sumit'"))
}

func TestRespondStreamsFragmentsInOrder(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"Sumit ", "knows ", "Go."}}
	r := NewResponder(gen, ResponderConfig{})

	text, errs := drain(r.Respond(context.Background(), "Does Sumit know Go?", nil,
		&RetrievalResult{Context: "x", HasRelevantContext: true}))

	assert.Equal(t, "Sumit knows Go.", text)
	assert.Empty(t, errs)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context:\nx")
}

func TestRespondSurfacesGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"partial"}, err: errBoom}
	r := NewResponder(gen, ResponderConfig{})

	text, errs := drain(r.Respond(context.Background(), "q", nil, nil))

	assert.Equal(t, "partial", text)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errBoom)
}

func TestRespondDeclinesWithoutContext(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"generated"}}
	r := NewResponder(gen, ResponderConfig{DeclineWithoutContext: true})

	text, errs := drain(r.Respond(context.Background(), "Who won the world cup in 2022?", nil,
		&RetrievalResult{}))

	assert.Equal(t, DeclineMessage, text)
	assert.Empty(t, errs)
	assert.Equal(t, 0, gen.callCount())
}

func TestRespondLetsGreetingsThrough(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"Hello!"}}
	r := NewResponder(gen, ResponderConfig{DeclineWithoutContext: true})

	text, _ := drain(r.Respond(context.Background(), "Hi", nil, &RetrievalResult{}))

	assert.Equal(t, "Hello!", text)
	assert.Equal(t, 1, gen.callCount())
}

func TestShouldDecline(t *testing.T) {
	r := NewResponder(&fakeGenerator{}, ResponderConfig{DeclineWithoutContext: true, GreetingMaxLen: 10})
	relevant := &RetrievalResult{HasRelevantContext: true}

	assert.False(t, r.ShouldDecline("thanks", &RetrievalResult{}))
	assert.True(t, r.ShouldDecline("tell me about football", &RetrievalResult{}))
	assert.False(t, r.ShouldDecline("tell me about football", relevant))

	off := NewResponder(&fakeGenerator{}, ResponderConfig{})
	assert.False(t, off.ShouldDecline("tell me about football", nil))
}

func TestRespondStopsWhenCancelled(t *testing.T) {
	fragments := make([]string, 100)
	for i := range fragments {
		fragments[i] = "x"
	}
	gen := &fakeGenerator{fragments: fragments}
	r := NewResponder(gen, ResponderConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := r.Respond(ctx, "q", nil, nil)
	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			assert.NoError(t, f.Err, "cancellation is not reported as a failure")
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}
