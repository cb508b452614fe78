package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_ValidatesParameters(t *testing.T) {
	_, err := NewChunker(0, 0)
	require.Error(t, err)

	_, err = NewChunker(10, -1)
	require.Error(t, err)

	_, err = NewChunker(10, 10)
	require.Error(t, err)

	_, err = NewChunker(10, 9)
	require.NoError(t, err)
}

func TestChunker_SplitShortTextReturnsSinglePiece(t *testing.T) {
	chunker, err := NewChunker(250, 50)
	require.NoError(t, err)

	text := "This text fits comfortably within a single chunk."
	chunks := chunker.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_SplitEmptyText(t *testing.T) {
	chunker, err := NewChunker(250, 50)
	require.NoError(t, err)

	assert.Nil(t, chunker.Split(""))
}

func TestChunker_SplitRespectsSizeAndOverlap(t *testing.T) {
	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)

	// "word "は1トークンなので十分な長さのテキストを作る
	text := strings.TrimSpace(strings.Repeat("word ", 100))
	chunks := chunker.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		count := chunker.TokenCount(chunk)
		assert.LessOrEqual(t, count, 20, "chunk %d exceeds chunk size", i)
		if i < len(chunks)-1 {
			assert.Equal(t, 20, count, "non-final chunk %d should be full", i)
		}
	}
}

func TestChunker_SplitIsDeterministic(t *testing.T) {
	chunker, err := NewChunker(15, 3)
	require.NoError(t, err)

	text := strings.Repeat("golang worker pipeline retrieval ", 30)
	first := chunker.Split(text)
	second := chunker.Split(text)
	assert.Equal(t, first, second)
}
