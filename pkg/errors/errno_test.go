package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service  int
		category int
		sequence int
		expected int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1001},
		{0, 6, 1, 6001},
		{30, 5, 1, 3005001},
		{30, 12, 1, 3012001},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeCode(tt.service, tt.category, tt.sequence))

			service, category, sequence := ParseCode(tt.expected)
			assert.Equal(t, tt.service, service)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.sequence, sequence)
		})
	}
}

func TestErrnoHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimitExceeded.HTTPStatus())
	assert.Equal(t, http.StatusConflict, ErrIngestRunning.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, ErrChatNotConfigured.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Errno{Code: 1}).HTTPStatus())
}

func TestErrnoWithCauseKeepsIdentity(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := ErrChatFailed.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrChatFailed))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrChatFailed.MessageEN, err.MessageEN)
	assert.Nil(t, ErrChatFailed.Unwrap(), "original must not be mutated")
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("handler: %w", ErrIngestRunning)
	assert.Equal(t, ErrIngestRunning.Code, FromError(wrapped).Code)
	assert.True(t, IsCode(wrapped, ErrIngestRunning.Code))

	plain := stderrors.New("boom")
	got := FromError(plain)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.False(t, IsCode(plain, ErrInternal.Code))
}

func TestMessageLanguage(t *testing.T) {
	assert.Equal(t, "AI 服务未配置", ErrChatNotConfigured.Message("zh-CN"))
	assert.Equal(t, "AI services not configured", ErrChatNotConfigured.Message("en"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Errno{Code: ErrBadRequest.Code, MessageEN: "dup"})
	})
	got, ok := Lookup(ErrBadRequest.Code)
	assert.True(t, ok)
	assert.Equal(t, "Bad request", got.MessageEN)
}
