package embed

import (
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", DefaultTextModel)
	require.Error(t, err)
	assert.True(t, ierrors.IsFatal(err))
}

func TestNewOpenAIEmbedder_DimensionsPerModel(t *testing.T) {
	large, err := NewOpenAIEmbedder("sk-test", "text-embedding-3-large")
	require.NoError(t, err)
	assert.Equal(t, TextDimensions, large.Dimensions())

	small, err := NewOpenAIEmbedder("sk-test", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, 1536, small.Dimensions())
}

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		status int
		code   string
		fatal  bool
	}{
		{401, ierrors.ErrCodeProviderAuth, true},
		{403, ierrors.ErrCodeProviderAuth, true},
		{429, ierrors.ErrCodeProviderRateLimit, false},
		{500, ierrors.ErrCodeProviderNetwork, false},
	}

	for _, tt := range tests {
		apiErr := &openai.APIError{HTTPStatusCode: tt.status, Message: "boom"}
		classified := classifyOpenAIError("embed", fmt.Errorf("request: %w", apiErr))

		var ie *ierrors.IndexError
		require.True(t, errors.As(classified, &ie), "status %d", tt.status)
		assert.Equal(t, tt.code, ie.Code, "status %d", tt.status)
		assert.Equal(t, tt.fatal, ierrors.IsFatal(classified), "status %d", tt.status)
	}
}

func TestClassifyOpenAIError_PlainErrorIsNetwork(t *testing.T) {
	classified := classifyOpenAIError("embed", errors.New("dial tcp: refused"))
	assert.False(t, ierrors.IsAuthFailure(classified))
	assert.True(t, ierrors.IsRetryable(classified))
}
