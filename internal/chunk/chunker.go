// Package chunk splits raw text into overlapping token-bounded
// segments for embedding.
package chunk

import (
	"strings"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

// Default window parameters. With size 800 and overlap 100 the window
// advances 700 tokens per step.
const (
	DefaultSize    = 800
	DefaultOverlap = 100
)

// Chunker produces overlapping token windows over tokenized text.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. The overlap must be strictly less than the
// chunk size: with overlap >= size the window never advances, so the
// combination is rejected as a configuration error rather than
// silently looping.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, ierrors.New(ierrors.ErrCodeChunkOverlap, "chunk size must be positive", nil)
	}
	if overlap < 0 || overlap >= size {
		return nil, ierrors.New(ierrors.ErrCodeChunkOverlap, "chunk overlap must be non-negative and strictly less than chunk size", nil)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// MustDefault returns a chunker with the default window parameters.
func MustDefault() *Chunker {
	c, err := New(DefaultSize, DefaultOverlap)
	if err != nil {
		panic(err)
	}
	return c
}

// Tokenize splits text into tokens with a fixed, deterministic rule:
// maximal runs of non-whitespace characters. Chunk output is decoded
// by joining tokens with single spaces, so tokenizing is stable under
// re-chunking.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Chunk slides a window of size tokens across the token sequence,
// advancing size-overlap tokens per step, and decodes each window
// back to text. Chunks that are empty after stripping surrounding
// whitespace are dropped. Text that fits in a single window produces
// exactly one chunk; longer text keeps striding until the next start
// would land past the end, so a window ending exactly at the token
// count is still followed by the trailing overlap window.
func (c *Chunker) Chunk(text string) []string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	if len(tokens) <= c.size {
		decoded := strings.TrimSpace(strings.Join(tokens, " "))
		if decoded == "" {
			return nil
		}
		return []string{decoded}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}

		decoded := strings.TrimSpace(strings.Join(tokens[start:end], " "))
		if decoded != "" {
			chunks = append(chunks, decoded)
		}
	}
	return chunks
}

// Size returns the configured window size in tokens.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }
